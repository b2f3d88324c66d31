package uartx

import (
	"io"

	"github.com/pkg/errors"
)

// Transmit moves queued TX bytes to line straight out of the ring buffer
// storage, one contiguous block at a time, like a DMA transfer. It is the
// interrupt side of the TX path. It returns the number of bytes sent; a
// short write stops the transfer and the unsent bytes stay queued.
func (u *UART) Transmit(line io.Writer) (int, error) {
	sent := 0
	defer func() {
		if sent > 0 {
			u.stats.TxBytes.Add(uint32(sent))
			u.tryNotifyTx()
		}
	}()
	for {
		block := u.TxBuffer.ReadBlock()
		if len(block) == 0 {
			return sent, nil
		}
		n, err := line.Write(block)
		u.TxBuffer.Consume(n)
		sent += n
		if err != nil {
			return sent, errors.Wrap(err, "uartx: transmit")
		}
		if n < len(block) {
			return sent, errors.Wrap(io.ErrShortWrite, "uartx: transmit")
		}
	}
}
