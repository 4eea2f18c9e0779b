package engine

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/proxy"

	"github.com/hanash-dl/hanash/internal/engine/types"
	"github.com/hanash-dl/hanash/internal/utils"
)

// NewClient builds the http.Client used by the probe and by workers:
// connect timeout per the engine constants, redirects capped at 10, and an
// optional HTTP or SOCKS5 proxy. TLS is validated against the system trust
// store.
func NewClient(proxyURL string) *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: types.ConnectTimeout,
		}).DialContext,
	}

	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		switch {
		case err != nil:
			utils.Debug("invalid proxy URL %s: %v", proxyURL, err)
			transport.Proxy = http.ProxyFromEnvironment
		case strings.HasPrefix(parsed.Scheme, "socks5"):
			dialer, dialErr := proxy.SOCKS5("tcp", parsed.Host, nil, proxy.Direct)
			if dialErr != nil {
				utils.Debug("failed to create SOCKS5 dialer: %v", dialErr)
				transport.Proxy = http.ProxyFromEnvironment
			} else {
				transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
					return dialer.Dial(network, addr)
				}
			}
		default:
			transport.Proxy = http.ProxyURL(parsed)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	return &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= types.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", types.MaxRedirects)
			}
			return nil
		},
	}
}
