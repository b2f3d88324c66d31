// Package uartx models an interrupt-driven UART on top of fifo ring buffers.
// The interrupt side feeds received bytes with Receive and drains queued
// output with Transmit; the main loop side uses the non-blocking Read and
// TryWrite, or the context-aware helpers that wait on the coalesced
// Readable and Writable notifications.
package uartx

import (
	"errors"
	"sync"
	"time"

	"github.com/jangala-dev/tinygo-fifo/fifo"
)

// ErrBufferEmpty is returned by ReadByte when no data is buffered.
var ErrBufferEmpty = errors.New("UART buffer empty")

// ErrBufferFull is returned by WriteByte when the TX buffer has no space.
var ErrBufferFull = errors.New("UART TX buffer full")

// ErrClosed is returned by the waiting helpers once Close has been called.
var ErrClosed = errors.New("UART closed")

// DefaultBufferSize is the storage allocated for each direction when Config
// leaves it nil.
const DefaultBufferSize = 512

// Config holds the UART setup. Zero fields get defaults.
type Config struct {
	// BaudRate is used to pace Flush. Defaults to 115200.
	BaudRate uint32
	// RxStorage backs the receive ring buffer. Usable space is len-1.
	RxStorage []byte
	// TxStorage backs the transmit ring buffer. Usable space is len-1.
	TxStorage []byte
}

// UART is one serial port. Receive and Transmit belong to the interrupt
// context, everything else to a single main loop context.
type UART struct {
	Buffer   *fifo.RingBuffer // RX, written by Receive
	TxBuffer *fifo.RingBuffer // TX, read by Transmit

	baud uint32

	notify   chan struct{} // RX readiness, coalesced
	txNotify chan struct{} // TX progress, coalesced
	closed   chan struct{}
	once     sync.Once

	stats stats
}

// New returns a UART using the storage given in cfg.
func New(cfg Config) *UART {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 115200
	}
	if cfg.RxStorage == nil {
		cfg.RxStorage = make([]byte, DefaultBufferSize)
	}
	if cfg.TxStorage == nil {
		cfg.TxStorage = make([]byte, DefaultBufferSize)
	}
	return &UART{
		Buffer:   fifo.New(cfg.RxStorage),
		TxBuffer: fifo.New(cfg.TxStorage),
		baud:     cfg.BaudRate,
		notify:   make(chan struct{}, 1),
		txNotify: make(chan struct{}, 1),
		closed:   make(chan struct{}),
	}
}

// Readable returns a coalesced notification for RX readiness. Callers must
// re-check state after waking.
func (u *UART) Readable() <-chan struct{} { return u.notify }

// Writable returns a coalesced notification sent whenever Transmit frees TX
// space. Callers must re-check state after waking.
func (u *UART) Writable() <-chan struct{} { return u.txNotify }

// ---------- interrupt side ----------

// Receive inserts one byte into the RX buffer and signals Readable. The byte
// is dropped and counted if the buffer is full.
func (u *UART) Receive(data byte) {
	if !u.Buffer.Put(data) {
		u.dbgOnPut(0, 1)
		return
	}
	u.dbgOnPut(1, 0)
	u.tryNotify()
}

// ReceiveBytes inserts as much of p as fits, as an interrupt handler draining
// a hardware FIFO would, and signals Readable once. It returns the number of
// bytes accepted; the rest is dropped and counted.
func (u *UART) ReceiveBytes(p []byte) int {
	if len(p) == 0 {
		return 0
	}
	n := u.Buffer.Write(p)
	u.dbgOnPut(n, len(p)-n)
	if n > 0 {
		u.tryNotify()
	}
	return n
}

// tryNotify wakes at most one waiter without blocking the caller.
func (u *UART) tryNotify() {
	select {
	case u.notify <- struct{}{}:
		u.dbgNotify(true)
	default:
		u.dbgNotify(false)
	}
}

func (u *UART) tryNotifyTx() {
	select {
	case u.txNotify <- struct{}{}:
	default:
	}
}

// ---------- main loop side, non-blocking ----------

// Read copies up to len(p) buffered bytes. It never blocks; 0 means no data.
func (u *UART) Read(p []byte) (int, error) {
	return u.Buffer.Read(p), nil
}

// TryRead is Read without the error result.
func (u *UART) TryRead(p []byte) int {
	return u.Buffer.Read(p)
}

// ReadByte returns the next buffered byte or ErrBufferEmpty.
func (u *UART) ReadByte() (byte, error) {
	b, ok := u.Buffer.Get()
	if !ok {
		return 0, ErrBufferEmpty
	}
	return b, nil
}

// Buffered returns the number of bytes waiting in the RX buffer.
func (u *UART) Buffered() int { return u.Buffer.Used() }

// TryWrite queues as much of p as fits in the TX buffer and returns the
// count. It never blocks; 0 means no space.
func (u *UART) TryWrite(p []byte) int {
	return u.TxBuffer.Write(p)
}

// WriteByte queues one byte or returns ErrBufferFull.
func (u *UART) WriteByte(c byte) error {
	if !u.TxBuffer.Put(c) {
		return ErrBufferFull
	}
	return nil
}

// TxFree returns the remaining TX buffer space in bytes.
func (u *UART) TxFree() int { return u.TxBuffer.Free() }

// TxBuffered returns the number of bytes queued for transmission.
func (u *UART) TxBuffered() int { return u.TxBuffer.Used() }

// drainTick returns the Flush polling interval: about two character times at
// 8N1, with a lower bound.
func (u *UART) drainTick() time.Duration {
	if u.baud == 0 {
		return 50 * time.Microsecond
	}
	perBit := time.Second / time.Duration(u.baud)
	t := 2 * 10 * perBit
	if t < 20*time.Microsecond {
		t = 20 * time.Microsecond
	}
	return t
}
