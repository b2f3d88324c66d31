package uartx

import (
	"bytes"
	"context"
	"errors"
	"io"
	"runtime"
	"testing"
	"time"
)

// newTestUART returns a UART with small buffers so tests can hit the edges.
func newTestUART() *UART {
	return New(Config{
		RxStorage: make([]byte, 16),
		TxStorage: make([]byte, 8),
	})
}

func TestRead_NonBlockingSemantics(t *testing.T) {
	u := newTestUART()
	buf := make([]byte, 8)

	if n, err := u.Read(buf); err != nil || n != 0 {
		t.Fatalf("Read on empty: n=%d err=%v; want 0,nil", n, err)
	}

	u.Receive('A')
	u.Receive('B')
	u.Receive('C')

	n, err := u.Read(buf)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if n != 3 || string(buf[:n]) != "ABC" {
		t.Fatalf("got n=%d data=%q; want 3, \"ABC\"", n, string(buf[:n]))
	}

	if n, _ := u.Read(buf); n != 0 {
		t.Fatalf("expected empty after drain, got n=%d", n)
	}
	if _, err := u.ReadByte(); !errors.Is(err, ErrBufferEmpty) {
		t.Fatalf("ReadByte on empty: err=%v; want ErrBufferEmpty", err)
	}
}

func TestReceive_DropsWhenFull(t *testing.T) {
	u := newTestUART()
	for i := 0; i < 20; i++ {
		u.Receive(byte(i))
	}
	if got := u.Buffered(); got != 15 {
		t.Fatalf("Buffered=%d; want 15", got)
	}
	s := u.Stats()
	if s.RingPuts != 15 || s.RingDrops != 5 || s.RingMaxUsed != 15 {
		t.Fatalf("unexpected stats: %+v", s)
	}

	// The oldest bytes are kept.
	b, err := u.ReadByte()
	if err != nil || b != 0 {
		t.Fatalf("ReadByte: b=%d err=%v; want 0,nil", b, err)
	}

	u.ResetStats()
	if s := u.Stats(); s != (Stats{}) {
		t.Fatalf("stats not reset: %+v", s)
	}
}

func TestReceiveBytes_Partial(t *testing.T) {
	u := newTestUART()
	if n := u.ReceiveBytes(bytes.Repeat([]byte{'x'}, 10)); n != 10 {
		t.Fatalf("first burst accepted %d; want 10", n)
	}
	if n := u.ReceiveBytes(bytes.Repeat([]byte{'y'}, 10)); n != 5 {
		t.Fatalf("second burst accepted %d; want 5", n)
	}
	if s := u.Stats(); s.RingDrops != 5 {
		t.Fatalf("RingDrops=%d; want 5", s.RingDrops)
	}
	got := make([]byte, 32)
	n := u.TryRead(got)
	if want := "xxxxxxxxxxyyyyy"; string(got[:n]) != want {
		t.Fatalf("got %q want %q", got[:n], want)
	}
}

// The ISR only refills after the main loop has emptied the buffer, so the
// high-water mark can never exceed one burst, even while drains race it.
func TestStats_MaxUsedUnderConcurrentDrain(t *testing.T) {
	const bursts = 20000
	u := newTestUART()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	go func() {
		for i := 0; i < bursts && ctx.Err() == nil; {
			if u.Buffered() != 0 {
				runtime.Gosched()
				continue
			}
			u.ReceiveBytes([]byte{byte(i), byte(i + 1)})
			i += 2
		}
	}()

	for i := 0; i < bursts; i++ {
		b, err := u.ReadByteBlocking(ctx)
		if err != nil {
			t.Fatalf("byte %d: %v", i, err)
		}
		if b != byte(i) {
			t.Fatalf("byte %d: got %d want %d", i, b, byte(i))
		}
	}
	if s := u.Stats(); s.RingMaxUsed > 2 || s.RingDrops != 0 {
		t.Fatalf("RingMaxUsed=%d RingDrops=%d; want <=2, 0", s.RingMaxUsed, s.RingDrops)
	}
}

func TestReadByteBlocking_UnblocksOnNotify(t *testing.T) {
	u := newTestUART()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	var got byte
	var err error

	go func() {
		defer close(done)
		got, err = u.ReadByteBlocking(ctx)
	}()

	time.Sleep(20 * time.Millisecond)

	u.Receive('Z')

	select {
	case <-done:
	case <-time.After(300 * time.Millisecond):
		t.Fatal("timeout waiting for ReadByteBlocking")
	}

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 'Z' {
		t.Fatalf("got %q want %q", got, 'Z')
	}
}

func TestReadBlocking_ReadsSomeBytes(t *testing.T) {
	u := newTestUART()

	ctx, cancel := context.WithTimeout(context.Background(), 800*time.Millisecond)
	defer cancel()

	buf := make([]byte, 8)
	done := make(chan struct{})
	var n int
	var err error

	go func() {
		defer close(done)
		n, err = u.ReadBlocking(ctx, buf)
	}()

	time.Sleep(10 * time.Millisecond)

	u.ReceiveBytes([]byte("xyz"))

	select {
	case <-done:
	case <-time.After(400 * time.Millisecond):
		t.Fatal("timeout waiting for ReadBlocking")
	}

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n <= 0 || string(buf[:n]) != "xyz"[:n] {
		t.Fatalf("unexpected data: n=%d data=%q", n, string(buf[:n]))
	}
}

func TestReadFullBlocking_ReadsExactLen(t *testing.T) {
	u := newTestUART()

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	want := []byte("HELLO")
	got := make([]byte, len(want))

	done := make(chan struct{})
	var n int
	var err error

	go func() {
		defer close(done)
		n, err = u.ReadFullBlocking(ctx, got)
	}()

	time.Sleep(10 * time.Millisecond)

	for i := range want {
		u.Receive(want[i])
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-done:
	case <-time.After(600 * time.Millisecond):
		t.Fatal("timeout waiting for ReadFullBlocking")
	}

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != len(want) || string(got) != string(want) {
		t.Fatalf("got %q (n=%d), want %q", string(got), n, string(want))
	}
}

func TestReadWithTimeout_Expires(t *testing.T) {
	u := newTestUART()
	n, err := u.ReadWithTimeout(make([]byte, 4), 20*time.Millisecond)
	if n != 0 || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("n=%d err=%v; want 0, DeadlineExceeded", n, err)
	}
	if s := u.Stats(); s.Timeouts != 1 || s.ReadWaits == 0 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}

func TestReadFullBlocking_ReturnsPartialOnClose(t *testing.T) {
	u := newTestUART()
	u.Receive('a')
	u.Receive('b')

	go func() {
		time.Sleep(20 * time.Millisecond)
		u.Close()
	}()

	got := make([]byte, 4)
	n, err := u.ReadFullBlocking(context.Background(), got)
	if n != 2 || !errors.Is(err, ErrClosed) {
		t.Fatalf("n=%d err=%v; want 2, ErrClosed", n, err)
	}
	if string(got[:n]) != "ab" {
		t.Fatalf("got %q want %q", got[:n], "ab")
	}

	if _, err := u.ReadByteBlocking(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("ReadByteBlocking after Close: err=%v; want ErrClosed", err)
	}
}

func TestWaitReadable_RespectsClose(t *testing.T) {
	u := newTestUART()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- u.WaitReadable(ctx) }()

	u.Close()
	u.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("got %v; want ErrClosed", err)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for WaitReadable to return after close")
	}
}

func TestNonBlockingReadAfterMultipleNotifies(t *testing.T) {
	u := newTestUART()
	u.tryNotify()
	u.tryNotify()
	u.tryNotify() // no data
	if n, err := u.Read(make([]byte, 4)); err != nil || n != 0 {
		t.Fatalf("Read on empty after notifies: n=%d err=%v", n, err)
	}
	if s := u.Stats(); s.NotifySent != 1 || s.NotifyDropped != 2 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}

// shortWriter accepts at most max bytes per call.
type shortWriter struct {
	w   io.Writer
	max int
}

func (s *shortWriter) Write(p []byte) (int, error) {
	if len(p) > s.max {
		p = p[:s.max]
	}
	return s.w.Write(p)
}

func TestTransmit_ShortWriteKeepsRest(t *testing.T) {
	u := newTestUART()
	u.TryWrite([]byte("abcdef"))
	n, err := u.Transmit(&shortWriter{w: io.Discard, max: 2})
	if n != 2 || !errors.Is(err, io.ErrShortWrite) {
		t.Fatalf("n=%d err=%v; want 2, ErrShortWrite", n, err)
	}
	if u.TxBuffered() != 4 {
		t.Fatalf("TxBuffered=%d; want 4", u.TxBuffered())
	}
}

func TestTransmit_DrainsAcrossWrap(t *testing.T) {
	u := newTestUART()
	var line bytes.Buffer

	if n := u.TryWrite([]byte("abcdef")); n != 6 {
		t.Fatalf("TryWrite=%d; want 6", n)
	}
	// Send five, leaving one byte queued near the end of storage.
	if n, _ := u.Transmit(&shortWriter{w: &line, max: 5}); n != 5 {
		t.Fatalf("Transmit=%d; want 5", n)
	}
	if err := u.WriteByte('g'); err != nil {
		t.Fatal(err)
	}
	if n := u.TryWrite([]byte("hijklmn")); n != 5 {
		t.Fatalf("TryWrite=%d; want 5", n)
	}
	if err := u.WriteByte('!'); !errors.Is(err, ErrBufferFull) {
		t.Fatalf("WriteByte on full: %v; want ErrBufferFull", err)
	}
	if u.TxFree() != 0 {
		t.Fatalf("TxFree=%d; want 0", u.TxFree())
	}

	if n, err := u.Transmit(&line); err != nil || n != 7 {
		t.Fatalf("Transmit: n=%d err=%v", n, err)
	}
	if got := line.String(); got != "abcdefghijkl" {
		t.Fatalf("line=%q", got)
	}
	if u.TxBuffered() != 0 {
		t.Fatalf("TxBuffered=%d; want 0", u.TxBuffered())
	}
	if s := u.Stats(); s.TxBytes != 12 {
		t.Fatalf("TxBytes=%d; want 12", s.TxBytes)
	}
}

func TestWriteContextAndFlush(t *testing.T) {
	u := newTestUART()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var line bytes.Buffer
	stop := make(chan struct{})
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for {
			select {
			case <-stop:
				return
			default:
			}
			u.Transmit(&line)
			time.Sleep(time.Millisecond)
		}
	}()

	msg := []byte("a message longer than the tx buffer")
	n, err := u.WriteContext(ctx, msg)
	if err != nil || n != len(msg) {
		t.Fatalf("WriteContext: n=%d err=%v", n, err)
	}
	if err := u.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	close(stop)
	<-drained

	if line.String() != string(msg) {
		t.Fatalf("line=%q want %q", line.String(), msg)
	}
}

func TestWriteContext_Cancelled(t *testing.T) {
	u := newTestUART()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	n, err := u.WriteContext(ctx, bytes.Repeat([]byte{'q'}, 20))
	if n != 7 || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("n=%d err=%v; want 7, DeadlineExceeded", n, err)
	}
	if err := u.Flush(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Flush: %v; want DeadlineExceeded", err)
	}
}

func TestDefaults(t *testing.T) {
	u := New(Config{})
	if u.Buffer.Size() != DefaultBufferSize || u.TxBuffer.Size() != DefaultBufferSize {
		t.Fatalf("sizes %d/%d", u.Buffer.Size(), u.TxBuffer.Size())
	}
	if tick := u.drainTick(); tick < 20*time.Microsecond || tick > time.Millisecond {
		t.Fatalf("drainTick=%v", tick)
	}
}
