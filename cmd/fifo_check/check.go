package main

import (
	"context"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/jangala-dev/tinygo-fifo/crc8"
	"github.com/jangala-dev/tinygo-fifo/fifo"
	"github.com/jangala-dev/tinygo-fifo/task"
	"github.com/jangala-dev/tinygo-fifo/uartx"
	"github.com/jangala-dev/tinygo-fifo/uptime"
)

// pattern is the deterministic byte stream; consecutive bytes differ and the
// period is 256.
func pattern(i int) byte { return byte((i*31 + 0x55) & 0xFF) }

type result struct {
	Bytes   int
	CRC     uint8
	Elapsed time.Duration
	Uptime  string
	Stats   uartx.Stats
}

func run(ctx context.Context, cfg config, logger *zap.Logger) (result, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	storage, release, err := rxStorage(cfg)
	if err != nil {
		return result{}, err
	}
	defer release()

	u := uartx.New(uartx.Config{RxStorage: storage})
	defer u.Close()

	logger.Info("starting",
		zap.String("bytes", humanize.IBytes(uint64(cfg.Bytes))),
		zap.Int("rx_size", cfg.RxSize),
		zap.Int("chunk", cfg.Chunk),
		zap.Bool("mmap", cfg.Mmap))

	sent := make(chan uint8, 1)
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		produce(ctx, u, cfg, sent)
	}()
	// The producer must be gone before the storage is released.
	defer func() {
		cancel()
		<-exited
	}()

	clock := uptime.Monotonic()
	up := uptime.New(clock)
	var opts []task.Option
	if cfg.ReportMs == 0 {
		opts = append(opts, task.Disabled())
	}
	report := task.New(cfg.ReportMs, opts...)

	crc := crc8.New()
	buf := make([]byte, cfg.RxSize)
	got := 0
	for got < cfg.Bytes {
		if err := ctx.Err(); err != nil {
			return result{}, errors.Wrapf(err, "after %d bytes", got)
		}
		n, err := u.ReadBlocking(ctx, buf[:min(len(buf), cfg.Bytes-got)])
		if err != nil {
			return result{}, errors.Wrapf(err, "after %d bytes", got)
		}
		for i, b := range buf[:n] {
			if want := pattern(got + i); b != want {
				return result{}, errors.Errorf("mismatch at byte %d: got 0x%02x want 0x%02x", got+i, b, want)
			}
		}
		crc.Update(buf[:n])
		got += n

		up.Loop()
		if report.Scheduled(clock()) {
			logger.Info("progress",
				zap.String("received", humanize.IBytes(uint64(got))),
				zap.Int("buffered", u.Buffered()),
				zap.Stringer("uptime", up))
		}
	}

	var want uint8
	select {
	case want = <-sent:
	case <-ctx.Done():
		return result{}, errors.Wrap(ctx.Err(), "waiting for producer")
	}
	if crc.Sum8() != want {
		return result{}, errors.Errorf("crc mismatch: got 0x%02x want 0x%02x", crc.Sum8(), want)
	}

	up.Loop()
	res := result{
		Bytes:   got,
		CRC:     crc.Sum8(),
		Elapsed: up.Duration(),
		Uptime:  up.String(),
		Stats:   u.Stats(),
	}
	if res.Elapsed <= 0 {
		res.Elapsed = time.Millisecond
	}
	logger.Debug("uart stats", zap.Any("stats", res.Stats))
	if res.Stats.RingDrops != 0 {
		return res, errors.Errorf("%d bytes dropped", res.Stats.RingDrops)
	}
	return res, nil
}

// produce plays the receive interrupt. It never offers more than the free
// space, as RTS flow control would, so no byte is dropped. The CRC of the
// whole stream is sent on done.
func produce(ctx context.Context, u *uartx.UART, cfg config, done chan<- uint8) {
	crc := crc8.New()
	chunk := make([]byte, cfg.Chunk)
	for sent := 0; sent < cfg.Bytes; {
		if ctx.Err() != nil {
			return
		}
		n := min(cfg.Chunk, cfg.Bytes-sent, u.Buffer.Free())
		if n == 0 {
			runtime.Gosched()
			continue
		}
		for i := range chunk[:n] {
			chunk[i] = pattern(sent + i)
		}
		crc.Update(chunk[:n])
		sent += u.ReceiveBytes(chunk[:n])
	}
	done <- crc.Sum8()
}

func rxStorage(cfg config) ([]byte, func(), error) {
	if !cfg.Mmap {
		return make([]byte, cfg.RxSize), func() {}, nil
	}
	region, err := fifo.MapStorage(cfg.RxSize)
	if err != nil {
		return nil, nil, errors.Wrap(err, "mapping rx storage")
	}
	return region.Bytes(), func() { region.Close() }, nil
}
