// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package httperrors turns network failures talking to an org into
// troubleshooting guidance printed with pterm.
package httperrors

import (
	"crypto/x509"
	"errors"
	"net"
	"net/url"
	"strings"
	"syscall"

	"github.com/pterm/pterm"

	sferrors "sfkit/cli/internal/errors"
)

// Class is the category of a network failure.
type Class int

const (
	NotNetwork Class = iota
	Timeout
	DNS
	Refused
	TLS
	Server
	Other
)

// Classify inspects err. Errors the org answered with a 4xx are NotNetwork:
// those are reported as they are.
func Classify(err error) Class {
	if err == nil {
		return NotNetwork
	}
	if status := sferrors.StatusOf(err); status != 0 {
		if status >= 500 {
			return Server
		}
		return NotNetwork
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return DNS
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return Refused
	}
	var unknownAuthority x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	if errors.As(err, &unknownAuthority) || errors.As(err, &hostErr) {
		return TLS
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "deadline exceeded") || strings.Contains(lower, "timeout"):
		return Timeout
	case strings.Contains(lower, "connection refused"):
		return Refused
	case strings.Contains(lower, "tls") || strings.Contains(lower, "certificate") || strings.Contains(lower, "handshake"):
		return TLS
	}
	if sferrors.IsKind(err, sferrors.Transport) {
		return Other
	}
	return NotNetwork
}

// Guidance returns the lines shown for a class. host names the org.
func Guidance(c Class, host string) []string {
	switch c {
	case Timeout:
		return []string{
			"The org took too long to respond. This could mean:",
			"  • Slow internet connection",
			"  • The org is under heavy load",
			"  • A firewall is holding the connection open",
		}
	case DNS:
		return []string{
			"Unable to look up " + host + ". Please check:",
			"  • The instance URL in your config or login",
			"  • Your DNS settings",
		}
	case Refused:
		return []string{
			host + " is not accepting connections. Please check:",
			"  • The instance URL and port",
			"  • Proxy or firewall settings",
		}
	case TLS:
		return []string{
			"Cannot establish a secure connection to " + host + ". Try:",
			"  • Checking your system date and time",
			"  • Verifying proxy settings that intercept HTTPS",
		}
	case Server:
		return []string{
			host + " returned a server error.",
			"This is not a problem with your setup; try again in a few minutes.",
		}
	case Other:
		return []string{
			"Cannot reach " + host + ". Please check your internet connection.",
		}
	}
	return nil
}

// FormatNetworkError prints guidance for network failures and returns err
// unchanged, so callers can keep propagating it.
func FormatNetworkError(err error, action, instanceURL string) error {
	c := Classify(err)
	if c == NotNetwork {
		return err
	}
	pterm.Warning.Printf("Network problem while %s\n", action)
	for _, line := range Guidance(c, ExtractHostFromURL(instanceURL)) {
		pterm.Println(line)
	}
	pterm.Println()
	return err
}

// ExtractHostFromURL extracts the hostname from a URL for error messages.
func ExtractHostFromURL(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil || u.Host == "" {
		return "the org"
	}
	return u.Host
}
