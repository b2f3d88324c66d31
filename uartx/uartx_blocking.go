package uartx

import (
	"context"
	"time"
)

// WaitReadable blocks until RX data is buffered, ctx is done or the UART is
// closed.
func (u *UART) WaitReadable(ctx context.Context) error {
	for {
		if u.Buffered() > 0 {
			return nil
		}
		u.dbgReadWait()
		select {
		case <-u.notify:
			// re-check; an empty buffer here is a spurious (coalesced) wake
			if u.Buffered() == 0 {
				u.dbgSpuriousWake()
			}
		case <-u.closed:
			return ErrClosed
		case <-ctx.Done():
			u.dbgTimeout()
			return ctx.Err()
		}
	}
}

// ReadBlocking waits for at least one byte, then reads up to len(p).
func (u *UART) ReadBlocking(ctx context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	var n int
	err := u.readUntil(ctx, func() bool {
		n = u.TryRead(p)
		return n > 0
	})
	return n, err
}

// ReadFullBlocking fills p. On error the count covers the bytes already
// copied.
func (u *UART) ReadFullBlocking(ctx context.Context, p []byte) (int, error) {
	read := 0
	err := u.readUntil(ctx, func() bool {
		read += u.TryRead(p[read:])
		return read == len(p)
	})
	return read, err
}

func (u *UART) ReadByteBlocking(ctx context.Context) (byte, error) {
	var b byte
	var ok bool
	err := u.readUntil(ctx, func() bool {
		b, ok = u.Buffer.Get()
		return ok
	})
	return b, err
}

// ReadWithTimeout gives up after d with context.DeadlineExceeded.
func (u *UART) ReadWithTimeout(p []byte, d time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return u.ReadBlocking(ctx, p)
}

// readUntil retries done after every RX wake-up until it reports true.
func (u *UART) readUntil(ctx context.Context, done func() bool) error {
	for !done() {
		if err := u.WaitReadable(ctx); err != nil {
			return err
		}
	}
	return nil
}

// WriteContext queues all of p, waiting for Transmit to free space when the
// TX buffer is full. It returns the number of bytes queued.
func (u *UART) WriteContext(ctx context.Context, p []byte) (int, error) {
	sent := 0
	for sent < len(p) {
		if n := u.TryWrite(p[sent:]); n > 0 {
			sent += n
			continue
		}
		select {
		case <-u.txNotify:
		case <-u.closed:
			return sent, ErrClosed
		case <-ctx.Done():
			return sent, ctx.Err()
		}
	}
	return sent, nil
}

// Flush blocks until Transmit has drained the TX buffer. Transmit wakes it
// through Writable; a short tick covers a drain that raced the wait.
func (u *UART) Flush(ctx context.Context) error {
	tick := time.NewTicker(u.drainTick())
	defer tick.Stop()
	for {
		if u.TxBuffered() == 0 {
			return nil
		}
		select {
		case <-u.txNotify:
		case <-tick.C:
		case <-u.closed:
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close releases every waiter. Calling it more than once is harmless.
func (u *UART) Close() error {
	u.once.Do(func() { close(u.closed) })
	return nil
}
