package fifo

import "errors"

// ErrMapUnsupported is returned by MapStorage on platforms without anonymous
// memory mappings.
var ErrMapUnsupported = errors.New("fifo: mapped storage not supported on this platform")

// Region is a block of memory mapped outside the Go heap. It is meant as
// ring buffer storage that never moves and is never scanned by the GC.
// The owner must keep the Region open for as long as any RingBuffer uses it.
type Region struct {
	mem []byte
}

// MapStorage maps size bytes of zeroed anonymous memory. Nothing is backed by
// a file, so contents do not outlive the process.
func MapStorage(size int) (*Region, error) {
	mem, err := mapAnon(size)
	if err != nil {
		return nil, err
	}
	return &Region{mem: mem}, nil
}

// Bytes returns the mapped memory, or nil once the region is closed.
func (r *Region) Bytes() []byte {
	return r.mem
}

// Close unmaps the region. Calling it more than once is harmless.
func (r *Region) Close() error {
	if r.mem == nil {
		return nil
	}
	mem := r.mem
	r.mem = nil
	return unmapAnon(mem)
}
