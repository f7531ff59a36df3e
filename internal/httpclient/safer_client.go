package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/teranos/govpipe/errors"
)

// SaferClient wraps http.Client with SSRF protection, a default
// User-Agent and optional bearer authentication.
type SaferClient struct {
	*http.Client
	allowedSchemes []string
	blockPrivateIP bool
	maxRedirects   int
	userAgent      string
	bearerToken    string
}

// SaferClientOptions allows customization of SSRF protection
type SaferClientOptions struct {
	AllowedSchemes []string // Default: ["http", "https"]
	MaxRedirects   *int     // Default: 10
	BlockPrivateIP *bool    // Default: true
	UserAgent      string
	BearerToken    string
}

// NewSaferClient creates an HTTP client with SSRF protection
func NewSaferClient(timeout time.Duration) *SaferClient {
	return NewSaferClientWithOptions(timeout, SaferClientOptions{})
}

// NewSaferClientWithOptions creates an HTTP client with custom SSRF protection options
func NewSaferClientWithOptions(timeout time.Duration, opts SaferClientOptions) *SaferClient {
	blockPrivateIP := true
	if opts.BlockPrivateIP != nil {
		blockPrivateIP = *opts.BlockPrivateIP
	}

	maxRedirects := 10
	if opts.MaxRedirects != nil {
		maxRedirects = *opts.MaxRedirects
	}

	allowedSchemes := []string{"http", "https"}
	if opts.AllowedSchemes != nil {
		allowedSchemes = opts.AllowedSchemes
	}

	client := &SaferClient{
		Client: &http.Client{
			Timeout: timeout,
		},
		allowedSchemes: allowedSchemes,
		blockPrivateIP: blockPrivateIP,
		maxRedirects:   maxRedirects,
		userAgent:      opts.UserAgent,
		bearerToken:    opts.BearerToken,
	}

	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= client.maxRedirects {
			return errors.Newf("stopped after %d redirects", client.maxRedirects)
		}
		if err := client.validateURL(req.URL); err != nil {
			return errors.Wrap(err, "redirect blocked")
		}
		return nil
	}

	// Private IP blocking at dial time covers DNS rebinding
	if blockPrivateIP {
		dialer := &net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}

		client.Transport = &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				host, _, err := net.SplitHostPort(addr)
				if err != nil {
					return nil, errors.Wrap(err, "invalid address")
				}

				ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
				if err != nil {
					return nil, errors.Wrapf(err, "failed to resolve host %q", host)
				}

				for _, ip := range ips {
					if isPrivateIP(ip) {
						return nil, errors.Newf("private IP address blocked: %s", ip)
					}
				}

				return dialer.DialContext(ctx, network, addr)
			},
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
	}

	return client
}

// validateURL validates URL for SSRF protection before making request
func (c *SaferClient) validateURL(u *url.URL) error {
	scheme := strings.ToLower(u.Scheme)
	allowed := false
	for _, allowedScheme := range c.allowedSchemes {
		if scheme == allowedScheme {
			allowed = true
			break
		}
	}
	if !allowed {
		return errors.Newf("scheme %q not allowed (allowed: %v)", scheme, c.allowedSchemes)
	}

	// http://evil.com@localhost/
	if u.User != nil {
		return errors.New("URL contains userinfo (potential SSRF attempt)")
	}

	hostname := u.Hostname()
	if hostname == "" {
		return errors.New("URL missing hostname")
	}

	if c.blockPrivateIP {
		if isLocalhost(hostname) {
			return errors.New("localhost access blocked")
		}
		if ip := net.ParseIP(hostname); ip != nil && isPrivateIP(ip) {
			return errors.Newf("private IP address blocked: %s", hostname)
		}
	}

	return nil
}

// ValidateURL validates a URL string before creating a request
func (c *SaferClient) ValidateURL(urlStr string) (*url.URL, error) {
	u, err := url.Parse(urlStr)
	if err != nil {
		return nil, errors.Wrap(err, "invalid URL")
	}
	if err := c.validateURL(u); err != nil {
		return nil, err
	}
	return u, nil
}

// isPrivateIP checks if an IP is in private/special use ranges
func isPrivateIP(ip net.IP) bool {
	if ip4 := ip.To4(); ip4 != nil {
		privateBlocks := []net.IPNet{
			{IP: net.IPv4(10, 0, 0, 0), Mask: net.CIDRMask(8, 32)},
			{IP: net.IPv4(172, 16, 0, 0), Mask: net.CIDRMask(12, 32)},
			{IP: net.IPv4(192, 168, 0, 0), Mask: net.CIDRMask(16, 32)},
			{IP: net.IPv4(127, 0, 0, 0), Mask: net.CIDRMask(8, 32)},
			{IP: net.IPv4(169, 254, 0, 0), Mask: net.CIDRMask(16, 32)},
			{IP: net.IPv4(0, 0, 0, 0), Mask: net.CIDRMask(8, 32)},
			{IP: net.IPv4(224, 0, 0, 0), Mask: net.CIDRMask(4, 32)},
			{IP: net.IPv4(240, 0, 0, 0), Mask: net.CIDRMask(4, 32)},
		}
		for _, block := range privateBlocks {
			if block.Contains(ip4) {
				return true
			}
		}
		return false
	}

	if len(ip) == net.IPv6len {
		if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsMulticast() || ip.IsUnspecified() {
			return true
		}
		// fc00::/7 unique local
		if (ip[0] & 0xfe) == 0xfc {
			return true
		}
		// fec0::/10 site-local (deprecated)
		if ip[0] == 0xfe && (ip[1]&0xc0) == 0xc0 {
			return true
		}
		// 2001:db8::/32 documentation
		if ip[0] == 0x20 && ip[1] == 0x01 && ip[2] == 0x0d && ip[3] == 0xb8 {
			return true
		}
	}

	return false
}

// isLocalhost checks for localhost variants
func isLocalhost(hostname string) bool {
	hostname = strings.ToLower(hostname)
	return hostname == "localhost" ||
		hostname == "localhost.localdomain" ||
		strings.HasSuffix(hostname, ".localhost")
}

// Do executes an HTTP request with SSRF protection.
// Failures are classified so callers can tell timeouts from other errors.
func (c *SaferClient) Do(req *http.Request) (*http.Response, error) {
	if err := c.validateURL(req.URL); err != nil {
		return nil, errors.Wrap(errors.Wrap(errors.ErrInvalidRequest, err.Error()), "request blocked by SSRF protection")
	}
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.bearerToken != "" && req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, ClassifyError(err)
	}
	return resp, nil
}

// ClassifyError maps transport failures onto the shared sentinels:
// timeouts become errors.ErrTimeout, everything else network-level
// becomes errors.ErrServiceUnavailable.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.IsAny(err, errors.ErrTimeout, errors.ErrServiceUnavailable) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return errors.Wrap(errors.ErrTimeout, err.Error())
	}
	return errors.Wrap(errors.ErrServiceUnavailable, err.Error())
}

// WrapClient wraps an existing http.Client in a SaferClient without SSRF protection.
// Only use this in tests that talk to httptest servers on localhost.
func WrapClient(client *http.Client) *SaferClient {
	return &SaferClient{
		Client:         client,
		allowedSchemes: []string{"http", "https"},
		blockPrivateIP: false,
		maxRedirects:   10,
	}
}
