package types

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDownloadItem_DerivedPaths(t *testing.T) {
	d := DownloadItem{Name: "video.mp4", Folder: "/downloads"}

	assert.Equal(t, filepath.Join("/downloads", "video.mp4_parts"), d.TempFolder())
	assert.Equal(t, filepath.Join("/downloads", "__downloading__video.mp4"), d.TempFile())
	assert.Equal(t, filepath.Join("/downloads", "video.mp4"), d.TargetFile())
}

func TestDownloadItem_SetPartSize(t *testing.T) {
	d := DownloadItem{Size: 1000}

	d.SetPartSize(300)
	assert.Equal(t, int64(300), d.PartSize)

	// capped by total size
	d.SetPartSize(5000)
	assert.Equal(t, int64(1000), d.PartSize)

	// non-positive means one whole-file segment
	d.SetPartSize(0)
	assert.Equal(t, int64(1000), d.PartSize)
	d.SetPartSize(-1)
	assert.Equal(t, int64(1000), d.PartSize)
}

func TestDownloadItem_SetPartSizeUnknownTotal(t *testing.T) {
	d := DownloadItem{Size: 0}
	d.SetPartSize(0)
	assert.Equal(t, int64(DefaultPartSize), d.PartSize)
}

func TestDownloadItem_EffectiveURL(t *testing.T) {
	d := DownloadItem{URL: "http://a/x"}
	assert.Equal(t, "http://a/x", d.EffectiveURL())

	d.EffURL = "http://b/y"
	assert.Equal(t, "http://b/y", d.EffectiveURL())
}

func TestDownloadItem_ResetVolatile(t *testing.T) {
	d := DownloadItem{Speed: 12.5, TimeLeft: 30, LiveConnections: 4}
	d.ResetVolatile()
	assert.Zero(t, d.Speed)
	assert.Equal(t, float64(-1), d.TimeLeft)
	assert.Zero(t, d.LiveConnections)
}
