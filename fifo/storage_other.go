//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package fifo

func mapAnon(int) ([]byte, error) { return nil, ErrMapUnsupported }

func unmapAnon([]byte) error { return nil }
