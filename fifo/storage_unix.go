//go:build linux || darwin || freebsd || netbsd || openbsd

package fifo

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

func mapAnon(size int) ([]byte, error) {
	if size <= 0 {
		return nil, errors.Errorf("fifo: invalid storage size %d", size)
	}
	mem, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, errors.Wrapf(err, "fifo: mmap %d bytes", size)
	}
	return mem, nil
}

func unmapAnon(mem []byte) error {
	return errors.Wrap(unix.Munmap(mem), "fifo: munmap")
}
