// Package resilience classifies delivery failures so callers can log why a
// dispatch did not go out. Classification never changes the outcome: a
// failed dispatch is always re-attempted on the next drain.
package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
)

// Reason names why a dispatch failed.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonUnconfigured Reason = "unconfigured"
	ReasonOffline      Reason = "offline"
	ReasonCancelled    Reason = "cancelled"
	ReasonTimeout      Reason = "timeout"
	ReasonUnreachable  Reason = "unreachable"
	ReasonTransport    Reason = "transport"
)

// Transient reports whether the reason is expected to clear on its own once
// the network recovers.
func (r Reason) Transient() bool {
	switch r {
	case ReasonOffline, ReasonTimeout, ReasonUnreachable:
		return true
	default:
		return false
	}
}

// Classify maps a transport error to a Reason.
func Classify(err error) Reason {
	if err == nil {
		return ReasonNone
	}
	if errors.Is(err, context.Canceled) {
		return ReasonCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}
	if IsTransient(err) {
		return ReasonUnreachable
	}
	return ReasonTransport
}

// IsTransient returns true if the error (or any error in its chain) matches
// common transient network patterns (timeouts, connection resets, DNS
// failures).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	// Connection reset / refused / DNS.
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH) {
		return true
	}

	// String-based heuristics for wrapped errors from HTTP clients.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"connection refused",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"network is unreachable",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsServerErrorStatus returns true if the HTTP status code indicates a
// server-side problem. Such responses still count as dispatched; the status
// is only logged.
func IsServerErrorStatus(statusCode int) bool {
	switch statusCode {
	case 408, // Request Timeout
		429, // Too Many Requests
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		504: // Gateway Timeout
		return true
	default:
		return false
	}
}
