// SPDX-License-Identifier: MIT

// Package udp sends telemetry reports as compact binary datagrams.
package udp

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"airsync/internal/log"
	"airsync/internal/transport"
)

var ErrClosed = errors.New("udp sender is closed")

// Sender sends Reports as datagrams to a fixed target. It implements
// transport.Transport.
type Sender struct {
	mu     sync.Mutex // protects conn and buf
	conn   *net.UDPConn
	buf    []byte
	closed bool
}

// NewSender dials the target, given as "host:port".
func NewSender(targetAddress string) (*Sender, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP target address '%s': %w", targetAddress, err)
	}

	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial UDP for target '%s': %w", targetAddress, err)
	}

	log.Infof("UDP Sender: Connection established to %s", conn.RemoteAddr())
	return &Sender{conn: conn}, nil
}

// Send encodes a transport.Report (value or pointer) and writes it as one
// datagram. Other types are rejected.
func (s *Sender) Send(data any) error {
	var r *transport.Report
	switch v := data.(type) {
	case transport.Report:
		r = &v
	case *transport.Report:
		r = v
	default:
		return fmt.Errorf("udp sender: unsupported payload %T", data)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.buf = AppendReport(s.buf[:0], r)
	if _, err := s.conn.Write(s.buf); err != nil {
		return fmt.Errorf("failed to send UDP packet: %w", err)
	}
	return nil
}

// Close closes the underlying UDP connection.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	log.Debugf("UDP Sender: Closing connection to %s", s.conn.RemoteAddr())
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close UDP connection: %w", err)
	}
	return nil
}

var _ transport.Transport = (*Sender)(nil)
