// SPDX-License-Identifier: MIT
package dsp

import (
	"fmt"
	"math"

	"airsync/internal/codec"
)

// DefaultDriftMargin is the fraction of the nominal rate the controller may
// add on top of it; 604 Hz at 44.1 kHz.
const DefaultDriftMargin = 0.0137

// Watermarks are ring-buffer occupancy thresholds in samples.
type Watermarks struct {
	High int
	Low  int
}

// DefaultWatermarks derives the thresholds from the codec's latency class:
// ALAC tolerates a third of a second of backlog, the low-latency codecs a sixth.
func DefaultWatermarks(kind codec.Kind, nominalRate int) Watermarks {
	div := 6
	if kind == codec.KindALAC {
		div = 3
	}
	high := nominalRate / div
	return Watermarks{High: high, Low: high / 2}
}

// DriftMargin converts a margin fraction into Hz for the given nominal rate.
func DriftMargin(nominalRate int, fraction float64) int {
	return int(math.Round(float64(nominalRate) * fraction))
}

// RateConfig parameterises a RateController.
type RateConfig struct {
	Nominal    int // Hz
	Margin     int // Hz above Nominal the rate may reach
	Step       int // Hz per adjustment, normally the device channel count
	Watermarks Watermarks
}

// RateController nudges the resampling rate to drain backlog caused by the
// source clock running ahead of the device clock. It only ever speeds up:
// under backlog pressure the rate climbs by one step per frame up to
// Nominal+Margin, otherwise it settles back by one step per frame to Nominal.
// Starvation is handled by the ring buffer's silence padding, not here.
type RateController struct {
	cfg  RateConfig
	rate int
}

func NewRateController(cfg RateConfig) (*RateController, error) {
	if cfg.Nominal <= 0 {
		return nil, fmt.Errorf("rate controller: nominal rate %d must be positive", cfg.Nominal)
	}
	if cfg.Margin < 0 {
		return nil, fmt.Errorf("rate controller: margin %d must not be negative", cfg.Margin)
	}
	if cfg.Step <= 0 {
		return nil, fmt.Errorf("rate controller: step %d must be positive", cfg.Step)
	}
	if cfg.Watermarks.High <= 0 || cfg.Watermarks.Low < 0 || cfg.Watermarks.Low > cfg.Watermarks.High {
		return nil, fmt.Errorf("rate controller: invalid watermarks %+v", cfg.Watermarks)
	}
	return &RateController{cfg: cfg, rate: cfg.Nominal}, nil
}

// Update applies one control step for the given occupancy (read just before
// the push) and returns the rate to use for the frame.
func (c *RateController) Update(occupancy int) int {
	if occupancy > c.cfg.Watermarks.High {
		if c.rate < c.Max() {
			c.rate = min(c.rate+c.cfg.Step, c.Max())
		}
	} else if c.rate > c.cfg.Nominal {
		c.rate = max(c.rate-c.cfg.Step, c.cfg.Nominal)
	}
	return c.rate
}

// Rate returns the current resample rate in Hz.
func (c *RateController) Rate() int { return c.rate }

// Nominal returns the configured nominal rate.
func (c *RateController) Nominal() int { return c.cfg.Nominal }

// Max returns the saturation rate, Nominal+Margin.
func (c *RateController) Max() int { return c.cfg.Nominal + c.cfg.Margin }

// Watermarks returns the configured thresholds.
func (c *RateController) Watermarks() Watermarks { return c.cfg.Watermarks }

// Reset returns the rate to nominal.
func (c *RateController) Reset() { c.rate = c.cfg.Nominal }
