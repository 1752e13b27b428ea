package fetch

import (
	"bytes"
	"strings"
)

// LooksLikeHTML reports whether a response is HTML rather than a feed. Many
// sites serve an HTML error page to bots with a 200 status, so the feed
// extractor uses this to decide whether to fall back to the HTML path.
// The declared content type wins; otherwise the first bytes are sniffed.
func LooksLikeHTML(contentType string, body []byte) bool {
	if contentType != "" && strings.Contains(strings.ToLower(contentType), "html") {
		return true
	}
	head := body
	if len(head) > 512 {
		head = head[:512]
	}
	head = bytes.ToLower(head)
	return bytes.Contains(head, []byte("<html")) || bytes.Contains(head, []byte("<!doctype html"))
}
