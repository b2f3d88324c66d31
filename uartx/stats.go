package uartx

import "go.uber.org/atomic"

// Stats holds counters since the last reset.
type Stats struct {
	// RX ring buffer
	RingPuts    uint32 // bytes accepted by Receive/ReceiveBytes
	RingDrops   uint32 // bytes dropped because the RX buffer was full
	RingMaxUsed uint32 // high-water mark of RX occupancy

	NotifySent    uint32 // readiness notifications delivered
	NotifyDropped uint32 // notifications coalesced into a pending one

	// Blocking API behaviour
	ReadWaits     uint32 // times a reader had to wait
	SpuriousWakes uint32 // notify received but no data available
	Timeouts      uint32 // context expiries while waiting to read

	TxBytes uint32 // bytes handed to the line by Transmit
}

// stats is written from both contexts, hence atomics throughout.
type stats struct {
	RingPuts      atomic.Uint32
	RingDrops     atomic.Uint32
	RingMaxUsed   atomic.Uint32
	NotifySent    atomic.Uint32
	NotifyDropped atomic.Uint32
	ReadWaits     atomic.Uint32
	SpuriousWakes atomic.Uint32
	Timeouts      atomic.Uint32
	TxBytes       atomic.Uint32
}

// Stats returns a snapshot of the counters.
func (u *UART) Stats() Stats {
	s := &u.stats
	return Stats{
		RingPuts:      s.RingPuts.Load(),
		RingDrops:     s.RingDrops.Load(),
		RingMaxUsed:   s.RingMaxUsed.Load(),
		NotifySent:    s.NotifySent.Load(),
		NotifyDropped: s.NotifyDropped.Load(),
		ReadWaits:     s.ReadWaits.Load(),
		SpuriousWakes: s.SpuriousWakes.Load(),
		Timeouts:      s.Timeouts.Load(),
		TxBytes:       s.TxBytes.Load(),
	}
}

// ResetStats zeroes all counters.
func (u *UART) ResetStats() {
	s := &u.stats
	for _, c := range []*atomic.Uint32{
		&s.RingPuts, &s.RingDrops, &s.RingMaxUsed,
		&s.NotifySent, &s.NotifyDropped,
		&s.ReadWaits, &s.SpuriousWakes, &s.Timeouts,
		&s.TxBytes,
	} {
		c.Store(0)
	}
}

// dbgOnPut records a receive that accepted n bytes and dropped the rest.
func (u *UART) dbgOnPut(n, dropped int) {
	if n > 0 {
		u.stats.RingPuts.Add(uint32(n))
		used := uint32(u.Buffer.Used())
		for {
			max := u.stats.RingMaxUsed.Load()
			if used <= max || u.stats.RingMaxUsed.CompareAndSwap(max, used) {
				break
			}
		}
	}
	if dropped > 0 {
		u.stats.RingDrops.Add(uint32(dropped))
	}
}

func (u *UART) dbgNotify(sent bool) {
	if sent {
		u.stats.NotifySent.Inc()
	} else {
		u.stats.NotifyDropped.Inc()
	}
}

func (u *UART) dbgReadWait()     { u.stats.ReadWaits.Inc() }
func (u *UART) dbgSpuriousWake() { u.stats.SpuriousWakes.Inc() }
func (u *UART) dbgTimeout()      { u.stats.Timeouts.Inc() }
