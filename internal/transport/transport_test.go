// SPDX-License-Identifier: MIT
package transport

import (
	"bytes"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"airsync/internal/codec"
	"airsync/internal/fft"
	"airsync/internal/log"
	"airsync/internal/session"
)

type fixedStats session.Stats

func (f fixedStats) Stats() session.Stats { return session.Stats(f) }

type fixedSpectrum []float32

func (f fixedSpectrum) AppendMagnitudes(dst []float32) []float32 { return append(dst, f...) }

type bandSpectrum struct{ fixedSpectrum }

func (bandSpectrum) AppendBandLevels(dst []float32, bands []fft.Band) []float32 {
	for i := range bands {
		dst = append(dst, float32(i))
	}
	return dst
}

// recorder is a Transport that keeps what it was sent.
type recorder struct {
	mu      sync.Mutex
	reports []Report
	closed  bool
}

func (r *recorder) Send(data any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, data.(Report))
	return nil
}

func (r *recorder) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reports)
}

var stats = fixedStats{
	State:       session.Running,
	Codec:       codec.KindAACELD,
	NominalRate: 44100,
	Rate:        44120,
	Occupancy:   5000,
	Capacity:    65536,
	Volume:      0.75,
}

func TestPublisher_Publish(t *testing.T) {
	rec := &recorder{}
	p, err := NewPublisher(time.Hour, stats, fixedSpectrum{1, 2, 3}, rec)
	if err != nil {
		t.Fatal(err)
	}

	now := time.Unix(100, 0)
	p.publish(now)
	p.publish(now)

	if len(rec.reports) != 2 {
		t.Fatalf("got %d reports", len(rec.reports))
	}
	r := rec.reports[1]
	if r.Sequence != 2 || r.Timestamp != now.UnixNano() || r.State != "running" || r.Codec != "aac-eld" ||
		r.Rate != 44120 || r.Occupancy != 5000 || r.Volume != 0.75 {
		t.Errorf("report = %+v", r)
	}
	if len(r.Spectrum) != 3 || r.Spectrum[2] != 3 {
		t.Errorf("spectrum = %v", r.Spectrum)
	}
	// Each report owns its spectrum.
	if &rec.reports[0].Spectrum[0] == &rec.reports[1].Spectrum[0] {
		t.Error("reports share a spectrum slice")
	}
}

func TestPublisher_Bands(t *testing.T) {
	rec := &recorder{}
	p, err := NewPublisher(time.Hour, stats, fixedSpectrum{1}, rec)
	if err != nil {
		t.Fatal(err)
	}
	p.publish(time.Now())
	if rec.reports[0].Bands != nil {
		t.Errorf("bands = %v without a band source", rec.reports[0].Bands)
	}

	rec = &recorder{}
	p, err = NewPublisher(time.Hour, stats, bandSpectrum{fixedSpectrum{1}}, rec)
	if err != nil {
		t.Fatal(err)
	}
	p.publish(time.Now())
	if got := rec.reports[0].Bands; len(got) != len(fft.DefaultBands) || got[1] != 1 {
		t.Errorf("bands = %v", got)
	}
}

func TestPublisher_StartStop(t *testing.T) {
	rec := &recorder{}
	p, err := NewPublisher(time.Millisecond, stats, nil, rec)
	if err != nil {
		t.Fatal(err)
	}

	p.Start()
	p.Start() // no-op while running
	deadline := time.Now().Add(2 * time.Second)
	for rec.count() < 3 {
		if time.Now().After(deadline) {
			t.Fatal("publisher did not tick")
		}
		time.Sleep(time.Millisecond)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	n := rec.count()
	time.Sleep(10 * time.Millisecond)
	if rec.count() != n {
		t.Error("publisher kept sending after Close")
	}
	if !rec.closed {
		t.Error("transport not closed")
	}
	if err := p.Stop(); err != nil {
		t.Errorf("Stop after Close = %v", err)
	}
}

func TestNewPublisher_Invalid(t *testing.T) {
	if _, err := NewPublisher(time.Second, nil, nil, &recorder{}); err == nil {
		t.Error("expected error for nil stats source")
	}
	if _, err := NewPublisher(time.Second, stats, nil); err == nil {
		t.Error("expected error without transports")
	}
	p, err := NewPublisher(0, stats, nil, &recorder{})
	if err != nil || p.interval != DefaultInterval {
		t.Errorf("interval = %v, %v", p.interval, err)
	}
}

func TestLoggingTransport(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	lt := NewLoggingTransport()
	lt.Send(NewReport(1, time.Now(), session.Stats(stats)))
	if out := buf.String(); !strings.Contains(out, "running aac-eld rate 44120/44100 Hz") {
		t.Errorf("log output = %q", out)
	}
}

func TestWebSocketTransport(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer wst.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+wst.Addr().String()+"/ws", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for wst.Clients() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(time.Millisecond)
	}

	if err := wst.Send(NewReport(9, time.Now(), session.Stats(stats))); err != nil {
		t.Fatal(err)
	}

	var got Report
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatal(err)
	}
	if got.Sequence != 9 || got.Codec != "aac-eld" || got.Rate != 44120 {
		t.Errorf("got %+v", got)
	}

	if err := wst.Close(); err != nil {
		t.Fatal(err)
	}
	if err := wst.Send(got); err == nil {
		t.Error("Send after Close should fail")
	}
}
