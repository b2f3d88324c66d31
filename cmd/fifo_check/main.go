// Command fifo_check is a host soak test for the ring buffer stack: a
// producer goroutine plays the receive interrupt of a uartx.UART while the
// main loop drains it, verifying every byte and a running CRC-8.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	if err := newCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	cfg := defaultConfig()
	cmd := &cobra.Command{
		Use:          "fifo_check",
		Short:        "Stream a pattern through a UART ring buffer and verify it",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			logger, err := newLogger(cfg.Debug)
			if err != nil {
				return err
			}
			defer logger.Sync()

			res, err := run(cmd.Context(), cfg, logger)
			if err != nil {
				logger.Error("integrity check failed", zap.Error(err))
				return err
			}
			rate := uint64(float64(res.Bytes) / res.Elapsed.Seconds())
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %s in %s (%s/s) crc8=0x%02x\n",
				humanize.IBytes(uint64(res.Bytes)), res.Uptime, humanize.IBytes(rate), res.CRC)
			return nil
		},
	}
	bindFlags(cmd.Flags(), &cfg)
	return cmd
}

func bindFlags(fs *pflag.FlagSet, cfg *config) {
	fs.IntVar(&cfg.Bytes, "bytes", cfg.Bytes, "number of bytes to stream")
	fs.IntVar(&cfg.RxSize, "rx-size", cfg.RxSize, "RX ring buffer storage in bytes")
	fs.IntVar(&cfg.Chunk, "chunk", cfg.Chunk, "largest burst the producer delivers at once")
	fs.Uint32Var(&cfg.ReportMs, "report-ms", cfg.ReportMs, "progress report interval in milliseconds, 0 disables")
	fs.BoolVar(&cfg.Mmap, "mmap", cfg.Mmap, "back the ring buffer with mapped memory instead of the Go heap")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "give up after this long")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "enable debug logging")
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// config holds the command line settings.
type config struct {
	Bytes    int
	RxSize   int
	Chunk    int
	ReportMs uint32
	Mmap     bool
	Timeout  time.Duration
	Debug    bool
}

func defaultConfig() config {
	return config{
		Bytes:    1 << 20,
		RxSize:   256,
		Chunk:    32,
		ReportMs: 1000,
		Timeout:  30 * time.Second,
	}
}

func (c config) validate() error {
	switch {
	case c.Bytes <= 0:
		return fmt.Errorf("--bytes must be positive, got %d", c.Bytes)
	case c.RxSize < 2:
		return fmt.Errorf("--rx-size must be at least 2, got %d", c.RxSize)
	case c.Chunk <= 0:
		return fmt.Errorf("--chunk must be positive, got %d", c.Chunk)
	case c.Timeout <= 0:
		return fmt.Errorf("--timeout must be positive, got %s", c.Timeout)
	}
	return nil
}
