package track

import "strings"

// Normalize prepares text for hashing and snapshotting: line endings are
// unified to \n and surrounding whitespace is trimmed, so content that
// differs only in CRLF style or padding hashes identically.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimSpace(s)
}
