package engine

import (
	"context"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/hanash-dl/hanash/internal/engine/types"
	"github.com/hanash-dl/hanash/internal/utils"
)

// ProbeTimeout bounds the one-shot metadata fetch.
const ProbeTimeout = 30 * time.Second

// ProbeResult contains all metadata from a server probe.
type ProbeResult struct {
	EffURL    string // final URL after redirects
	Status    int
	Size      int64  // 0 when unknown
	Type      string // MIME type, stripped of parameters
	Name      string // sanitized filename
	Resumable bool
}

// Probe issues a GET that is aborted after the first body byte and extracts
// the download metadata from the response headers.
func Probe(ctx context.Context, rawurl string, proxyURL string) (*ProbeResult, error) {
	utils.Debug("probing server: %s", rawurl)

	probeCtx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, rawurl, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", types.UserAgent)

	client := NewClient(proxyURL)
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Equivalent of a write callback that aborts after the first byte: pull
	// one byte so the server commits to a body, then stop reading.
	one := make([]byte, 1)
	_, _ = io.ReadFull(resp.Body, one)

	result := &ProbeResult{
		EffURL: resp.Request.URL.String(),
		Status: resp.StatusCode,
	}

	if resp.ContentLength > 0 {
		result.Size = resp.ContentLength
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
			result.Type = mediaType
		} else {
			result.Type = ct
		}
	}

	ar := strings.ToLower(strings.TrimSpace(resp.Header.Get("Accept-Ranges")))
	result.Resumable = ar != "" && ar != "none"

	result.Name = utils.DetermineFilename(result.EffURL, resp, result.Type)

	utils.Debug("probe complete - name: %s, size: %d, type: %s, resumable: %v, status: %d",
		result.Name, result.Size, result.Type, result.Resumable, result.Status)

	return result, nil
}

// IsBadStatus reports whether a probe status code means the download must not
// start: client errors 400-403 and 405-417, server errors 500-505.
func IsBadStatus(code int) bool {
	switch {
	case code >= 400 && code <= 403:
		return true
	case code >= 405 && code <= 417:
		return true
	case code >= 500 && code <= 505:
		return true
	}
	return false
}

// StatusText maps an HTTP status code to a short reason tag for display.
func StatusText(code int) string {
	if text := http.StatusText(code); text != "" {
		return strings.ToLower(strings.ReplaceAll(text, " ", "_"))
	}
	return "unknown"
}
