// SPDX-License-Identifier: MIT
package transport

import (
	"fmt"
	"sync"
	"time"

	"airsync/internal/fft"
	"airsync/internal/log"
	"airsync/internal/session"
)

// StatsSource is satisfied by *session.Controller.
type StatsSource interface {
	Stats() session.Stats
}

// SpectrumSource supplies the latest output spectrum, appended to dst.
type SpectrumSource interface {
	AppendMagnitudes(dst []float32) []float32
}

// BandSource is an optional SpectrumSource extension reporting per-band
// levels.
type BandSource interface {
	AppendBandLevels(dst []float32, bands []fft.Band) []float32
}

// DefaultInterval is used when the configured interval is not positive.
const DefaultInterval = 250 * time.Millisecond

// Publisher periodically snapshots the engine and sends a Report to every
// transport. It runs in a separate goroutine managed by Start and Stop.
type Publisher struct {
	stats      StatsSource
	spectrum   SpectrumSource
	transports []Transport
	interval   time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // protects ticker and doneChan during Start/Stop

	sequenceNum uint32
	magnitudes  []float32
}

// NewPublisher creates a publisher. spectrum may be nil.
func NewPublisher(interval time.Duration, stats StatsSource, spectrum SpectrumSource, transports ...Transport) (*Publisher, error) {
	if stats == nil {
		return nil, fmt.Errorf("publisher: stats source cannot be nil")
	}
	if len(transports) == 0 {
		return nil, fmt.Errorf("publisher: at least one transport is required")
	}
	if interval <= 0 {
		interval = DefaultInterval
		log.Warnf("Publisher: Invalid interval provided, defaulting to %s", interval)
	}
	return &Publisher{
		stats:      stats,
		spectrum:   spectrum,
		transports: transports,
		interval:   interval,
	}, nil
}

// Start launches the publishing goroutine. Calling it while running is a no-op.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		log.Warnf("Publisher: Start called but already running.")
		return
	}
	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}
	ticker, doneChan := p.ticker, p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		log.Debugf("Publisher: started (interval %s, %d transports)", p.interval, len(p.transports))
		for {
			select {
			case now := <-ticker.C:
				p.publish(now)
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publishing goroutine and waits for it to exit.
// It is safe to call Stop multiple times.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	log.Debugf("Publisher: stopped after %d reports", p.sequenceNum)
	return nil
}

// Close stops publishing and closes every transport.
func (p *Publisher) Close() error {
	p.Stop()
	var firstErr error
	for _, t := range p.transports {
		if err := t.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (p *Publisher) publish(now time.Time) {
	p.sequenceNum++
	r := NewReport(p.sequenceNum, now, p.stats.Stats())
	if p.spectrum != nil {
		p.magnitudes = p.spectrum.AppendMagnitudes(p.magnitudes[:0])
		// Transports may hold on to the report asynchronously.
		r.Spectrum = append([]float32(nil), p.magnitudes...)
	}
	if b, ok := p.spectrum.(BandSource); ok {
		r.Bands = b.AppendBandLevels(nil, fft.DefaultBands)
	}
	for _, t := range p.transports {
		if err := t.Send(r); err != nil {
			log.Debugf("Publisher: %T: %v", t, err)
		}
	}
}
