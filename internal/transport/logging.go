// SPDX-License-Identifier: MIT
package transport

import (
	"airsync/internal/log"
)

// LoggingTransport implements the Transport interface by logging a one-line
// summary of each report.
type LoggingTransport struct{}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	log.Infof("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs reports at info level and anything else at debug level.
func (lt *LoggingTransport) Send(data any) error {
	switch r := data.(type) {
	case Report:
		lt.logReport(&r)
	case *Report:
		lt.logReport(r)
	default:
		log.Debugf("Transport: %T: %+v", data, data)
	}
	return nil
}

func (lt *LoggingTransport) logReport(r *Report) {
	log.Infof("Stats: %s %s rate %d/%d Hz, buffer %d/%d, queue %d, decoded %d, errors %d/%d, dropped %d, underruns %d",
		r.State, r.Codec, r.Rate, r.NominalRate, r.Occupancy, r.Capacity, r.QueueDepth,
		r.FramesDecoded, r.DecodeErrors, r.ConversionErrors, r.DroppedSamples, r.Underruns)
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
