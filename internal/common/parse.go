package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseBlockNumber parses a decimal or 0x prefixed hex block number.
func ParseBlockNumber(s string) (uint64, error) {
	if hex, ok := strings.CutPrefix(s, "0x"); ok {
		return strconv.ParseUint(hex, 16, 64)
	}
	return strconv.ParseUint(s, 10, 64)
}

// ParseHeight parses a height given either as unix seconds or as an RFC 3339
// timestamp.
func ParseHeight(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if h, err := strconv.ParseUint(s, 10, 64); err == nil {
		return h, nil
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, fmt.Errorf("height %q is neither unix seconds nor an RFC 3339 time", s)
	}
	if t.Unix() < 0 {
		return 0, fmt.Errorf("height %q is before the unix epoch", s)
	}
	return uint64(t.Unix()), nil
}

const bytesInMB = 1024 * 1024

func BytesToMB(bytes uint64) uint64 {
	return bytes / bytesInMB
}

func ToLowerWithTrim(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
