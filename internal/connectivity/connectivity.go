// Package connectivity decides whether the catalog API is reachable right now.
package connectivity

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout caps the reachability request.
const DefaultTimeout = 2 * time.Second

// Prober answers "is the remote usable right now?". Implementations fail
// closed: any doubt means offline.
type Prober interface {
	IsOnline(ctx context.Context) bool
}

// Probe checks the device network first and then issues HEAD {URL}/books.
type Probe struct {
	URL     string
	HTTP    *http.Client
	Timeout time.Duration
	// NetworkUp reports device-level availability. Nil means always up.
	NetworkUp func() bool
	// Log receives probe diagnostics at debug level. Nil means slog.Default().
	Log *slog.Logger
}

// NewProbe returns a probe for baseURL with DefaultTimeout. The interface
// check is skipped for loopback servers, which need no network.
func NewProbe(baseURL string) *Probe {
	p := &Probe{
		URL:     strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{},
		Timeout: DefaultTimeout,
		Log:     slog.Default(),
	}
	if !isLoopback(p.URL) {
		p.NetworkUp = InterfacesUp
	}
	return p
}

func isLoopback(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// IsOnline is a pure query; nothing is cached between calls.
func (p *Probe) IsOnline(ctx context.Context) bool {
	log := p.Log
	if log == nil {
		log = slog.Default()
	}
	if p.NetworkUp != nil && !p.NetworkUp() {
		log.Debug("connectivity: no network interface up")
		return false
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.URL+"/books", nil)
	if err != nil {
		return false
	}
	client := p.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Debug("connectivity: probe failed", "url", p.URL, "err", err)
		return false
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Debug("connectivity: probe rejected", "url", p.URL, "status", resp.StatusCode)
		return false
	}
	return true
}

// InterfacesUp reports whether any non-loopback interface is up with an address.
func InterfacesUp() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if addrs, err := iface.Addrs(); err == nil && len(addrs) > 0 {
			return true
		}
	}
	return false
}

// Fixed is a prober with a constant answer, for --offline/--online.
type Fixed bool

// IsOnline returns the fixed answer.
func (f Fixed) IsOnline(context.Context) bool { return bool(f) }

// Watch polls p every interval and calls fn with the first result and
// then on every change, until ctx is done.
func Watch(ctx context.Context, p Prober, interval time.Duration, fn func(online bool)) {
	online := p.IsOnline(ctx)
	fn(online)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := p.IsOnline(ctx)
			if ctx.Err() != nil {
				return
			}
			if now != online {
				online = now
				fn(online)
			}
		}
	}
}
