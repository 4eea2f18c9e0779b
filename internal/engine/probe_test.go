package engine

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanash-dl/hanash/internal/testutil"
)

func TestProbe_ResumableServer(t *testing.T) {
	server := testutil.NewMockServer(t,
		testutil.WithFileSize(4096),
		testutil.WithRangeSupport(true),
		testutil.WithContentType("application/pdf; charset=binary"),
		testutil.WithFilename("report.pdf"),
	)

	result, err := Probe(context.Background(), server.URL(), "")
	require.NoError(t, err)

	assert.Equal(t, int64(4096), result.Size)
	assert.True(t, result.Resumable)
	assert.Equal(t, "report.pdf", result.Name)
	assert.Equal(t, "application/pdf", result.Type, "parameters must be stripped")
	assert.Equal(t, http.StatusOK, result.Status)
}

func TestProbe_NonResumableServer(t *testing.T) {
	server := testutil.NewMockServer(t,
		testutil.WithFileSize(2048),
		testutil.WithRangeSupport(false),
	)

	result, err := Probe(context.Background(), server.URL(), "")
	require.NoError(t, err)

	assert.False(t, result.Resumable)
	assert.Equal(t, int64(2048), result.Size)
}

func TestProbe_FilenameFromURLPath(t *testing.T) {
	server := testutil.NewMockServer(t, testutil.WithFileSize(16))

	result, err := Probe(context.Background(), server.URL()+"/files/archive.zip", "")
	require.NoError(t, err)
	assert.Equal(t, "archive.zip", result.Name)
}

func TestProbe_UnknownSize(t *testing.T) {
	server := testutil.NewMockServer(t,
		testutil.WithFileSize(1024),
		testutil.WithOmitContentLength(),
	)

	result, err := Probe(context.Background(), server.URL(), "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.Size)
	assert.True(t, result.Resumable)
}

func TestIsBadStatus(t *testing.T) {
	bad := []int{400, 401, 402, 403, 405, 410, 416, 417, 500, 503, 505}
	for _, code := range bad {
		assert.True(t, IsBadStatus(code), "code %d", code)
	}

	good := []int{200, 206, 301, 302, 404, 418, 429, 506, 511}
	for _, code := range good {
		assert.False(t, IsBadStatus(code), "code %d", code)
	}
}

func TestStatusText(t *testing.T) {
	assert.Equal(t, "too_many_requests", StatusText(429))
	assert.Equal(t, "internal_server_error", StatusText(500))
}
