// Package crc8 computes running 8-bit CRCs, MSB first, over single bytes,
// byte slices or the contents of a fifo.RingBuffer.
package crc8

import "github.com/jangala-dev/tinygo-fifo/fifo"

// Well known polynomials.
const (
	PolyDefault  uint8 = 0x07
	PolyCDMA2000 uint8 = 0x9B
	PolyDARC     uint8 = 0x39
	PolyDVBS2    uint8 = 0xD5
	PolyEBU      uint8 = 0x1D
	PolyICode    uint8 = 0x1D
	PolyITU      uint8 = 0x07
	PolyMaxim    uint8 = 0x31
	PolyROHC     uint8 = 0x07
	PolyWCDMA    uint8 = 0x9B
)

// CRC holds a running CRC value. The zero value is not usable; use New.
type CRC struct {
	value uint8
	poly  uint8
}

// Option configures a CRC.
type Option func(*CRC)

// WithPoly sets the generator polynomial (PolyDefault if not given).
func WithPoly(poly uint8) Option {
	return func(c *CRC) { c.poly = poly }
}

// WithInit sets the initial CRC value (0 if not given).
func WithInit(v uint8) Option {
	return func(c *CRC) { c.value = v }
}

// New returns a CRC calculator.
func New(opts ...Option) *CRC {
	c := &CRC{poly: PolyDefault}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UpdateByte folds b into the CRC and returns the new value.
func (c *CRC) UpdateByte(b byte) uint8 {
	c.value ^= b
	for i := 0; i < 8; i++ {
		if c.value&0x80 != 0 {
			c.value = c.value<<1 ^ c.poly
		} else {
			c.value <<= 1
		}
	}
	return c.value
}

// Update folds p into the CRC and returns the new value.
func (c *CRC) Update(p []byte) uint8 {
	for _, b := range p {
		c.UpdateByte(b)
	}
	return c.value
}

// Write implements io.Writer. It never fails.
func (c *CRC) Write(p []byte) (int, error) {
	c.Update(p)
	return len(p), nil
}

// Sum8 returns the current CRC value.
func (c *CRC) Sum8() uint8 { return c.value }

// Reset sets the CRC value to v; the polynomial is kept.
func (c *CRC) Reset(v uint8) { c.value = v }

// Drain folds every byte buffered in rb into the CRC and consumes it. The
// bytes are processed in place, one contiguous block at a time. It must be
// called from the ring buffer's reader side. It returns the number of bytes
// consumed.
func (c *CRC) Drain(rb *fifo.RingBuffer) int {
	n := 0
	for {
		block := rb.ReadBlock()
		if len(block) == 0 {
			return n
		}
		c.Update(block)
		rb.Consume(len(block))
		n += len(block)
	}
}
