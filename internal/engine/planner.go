package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// SplitSize divides a file of the given size into contiguous segment names
// "a-b" (inclusive byte ranges) of partSize bytes each, the last absorbing
// the remainder. A zero size yields the single segment "0-0"; a part size
// that is non-positive or larger than the file yields one whole-file segment.
// The returned order is ascending by range start.
func SplitSize(size, partSize int64) []string {
	if size == 0 {
		return []string{"0-0"}
	}

	span := partSize
	if span <= 0 || span > size {
		span = size
	}

	parts := size / span
	if parts < 1 {
		parts = 1
	}

	result := make([]string, 0, parts)
	last := size - 1
	x := int64(0)
	for i := int64(0); i < parts; i++ {
		y := x + span - 1
		if last-y < span { // remaining bytes go to the last segment
			y = last
		}
		result = append(result, fmt.Sprintf("%d-%d", x, y))
		x = y + 1
	}

	return result
}

// SegmentRange parses a segment name "a-b" into its inclusive endpoints.
func SegmentRange(seg string) (a, b int64, err error) {
	parts := strings.SplitN(seg, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed segment name %q", seg)
	}
	a, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed segment name %q", seg)
	}
	b, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed segment name %q", seg)
	}
	return a, b, nil
}

// SegmentSize returns the byte length of a segment name, 0 for the
// unknown-size segment "0-0".
func SegmentSize(seg string) int64 {
	a, b, err := SegmentRange(seg)
	if err != nil || b <= 0 {
		return 0
	}
	return b - a + 1
}
