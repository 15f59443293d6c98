// Package listener derives the ingestion endpoint that telemetry documents are
// shipped to.
package listener

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// DefaultHost is the ingestion domain used when no custom listener is set.
	DefaultHost = "logz.io"
	// DefaultRegion is the shard code that maps onto the unsuffixed host.
	DefaultRegion = "us"

	httpsPort = 8071
	httpPort  = 8070
)

// Resolve returns the listener base URL. A non-empty custom listener is
// returned verbatim; otherwise the host is derived from the region code.
func Resolve(customListener, regionCode, protocol string) string {
	if customListener != "" {
		return customListener
	}
	if protocol == "" {
		protocol = "https"
	}
	if regionCode == "" || regionCode == DefaultRegion {
		return fmt.Sprintf("%s://listener.%s", protocol, DefaultHost)
	}
	return fmt.Sprintf("%s://listener-%s.%s", protocol, regionCode, DefaultHost)
}

// Port returns the shipping port for a protocol.
func Port(protocol string) int {
	if protocol == "https" {
		return httpsPort
	}
	return httpPort
}

// Endpoint builds the full POST target for base, protocol and token. A base
// that already names a port keeps it.
func Endpoint(base, protocol, token string) string {
	base = strings.TrimRight(base, "/")
	if !hasExplicitPort(base) {
		base = fmt.Sprintf("%s:%d", base, Port(protocol))
	}
	return fmt.Sprintf("%s/?token=%s", base, url.QueryEscape(token))
}

func hasExplicitPort(base string) bool {
	u, err := url.Parse(base)
	if err != nil {
		return false
	}
	return u.Port() != ""
}
