// Package netutil probes TCP ports of freshly booted nodes.
package netutil

import (
	"context"
	"fmt"
	"net"
	"time"
)

// ProbeTimeout bounds a single connection attempt.
const ProbeTimeout = 2 * time.Second

// DialFunc opens a connection, like net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// DefaultDial dials with ProbeTimeout.
func DefaultDial(ctx context.Context, network, address string) (net.Conn, error) {
	d := net.Dialer{Timeout: ProbeTimeout}
	return d.DialContext(ctx, network, address)
}

// Address joins host and port.
func Address(host string, port int) string {
	return net.JoinHostPort(host, fmt.Sprint(port))
}

// PortOpen reports whether a TCP connection to address succeeds within
// ProbeTimeout. A nil dial uses DefaultDial.
func PortOpen(ctx context.Context, dial DialFunc, address string) bool {
	if dial == nil {
		dial = DefaultDial
	}
	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	conn, err := dial(ctx, "tcp", address)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
