package utils

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func respWithHeaders(h map[string]string) *http.Response {
	header := http.Header{}
	for k, v := range h {
		header.Set(k, v)
	}
	return &http.Response{Header: header}
}

func TestValidateFilename_UnsafeCharacters(t *testing.T) {
	assert.Equal(t, "a_b_c_d_e_f_g_h", ValidateFilename(`a:b?c<d>e"f|g*h`))
}

func TestValidateFilename_DropsNonBMP(t *testing.T) {
	// the emoji sits outside the Basic Multilingual Plane
	assert.Equal(t, "clip.mp4", ValidateFilename("clip\U0001F600.mp4"))
}

func TestValidateFilename_CapsLength(t *testing.T) {
	long := strings.Repeat("x", 250) + ".bin"
	got := ValidateFilename(long)
	assert.Len(t, []rune(got), 100)
}

func TestValidateFilename_StripsPathComponents(t *testing.T) {
	assert.Equal(t, "evil.sh", ValidateFilename("../../evil.sh"))
	assert.Equal(t, "file.txt", ValidateFilename(`C:\Users\x\file.txt`))
}

func TestDetermineFilename_ContentDisposition(t *testing.T) {
	resp := respWithHeaders(map[string]string{
		"Content-Disposition": `attachment; filename="report final.pdf"`,
	})
	got := DetermineFilename("http://example.com/dl?id=42", resp, "application/pdf")
	assert.Equal(t, "report final.pdf", got)
}

func TestDetermineFilename_URLPathFallback(t *testing.T) {
	resp := respWithHeaders(nil)
	got := DetermineFilename("http://example.com/files/archive.tar.gz", resp, "")
	assert.Equal(t, "archive.tar.gz", got)
}

func TestDetermineFilename_DefaultWhenNothingUsable(t *testing.T) {
	resp := respWithHeaders(nil)
	got := DetermineFilename("http://example.com/", resp, "")
	assert.Equal(t, "download.bin", got)
}

func TestDetermineFilename_GuessesExtensionFromMime(t *testing.T) {
	resp := respWithHeaders(nil)
	got := DetermineFilename("http://example.com/media/trailer", resp, "video/mp4")
	assert.Equal(t, "trailer.mp4", got)
}

func TestGuessExtension(t *testing.T) {
	assert.Equal(t, ".mp4", GuessExtension("video/mp4"))
	assert.Equal(t, "", GuessExtension(""))
	assert.Equal(t, "", GuessExtension("application/x-no-such-type"))
}

func TestSizeFormat(t *testing.T) {
	assert.Equal(t, "---", SizeFormat(0))
	assert.Equal(t, "100 bytes", SizeFormat(100))
	assert.Equal(t, "1.0 KB", SizeFormat(1024))
	assert.Equal(t, "1.5 MB", SizeFormat(1536*1024))
}

func TestTimeFormat(t *testing.T) {
	assert.Equal(t, "---", TimeFormat(-1))
	assert.Equal(t, "30 seconds", TimeFormat(30))
	assert.Equal(t, "5 minutes", TimeFormat(300))
}
