// Package urlcheck decides whether a URL may be turned into a podcast.
package urlcheck

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidURL    = errors.New("not a valid url")
	ErrDisallowedURL = errors.New("url is not allowed")
)

// DefaultDenyList holds hosts whose pages never carry readable article text
// (WeChat channel video and music cards).
var DefaultDenyList = []string{
	"https://support.weixin.qq.com",
	"https://channels-aladin.wxqcloud.qq.com",
}

// Check validates rawURL against the allow and deny prefix lists.
// An empty allow list allows everything; the deny list always wins.
func Check(rawURL string, allow, deny []string) error {
	u := strings.TrimSpace(rawURL)
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return fmt.Errorf("%q: %w", rawURL, ErrInvalidURL)
	}

	if len(allow) > 0 && !hasAnyPrefix(u, allow) {
		return fmt.Errorf("%q is not in the allow list: %w", u, ErrDisallowedURL)
	}

	for _, d := range deny {
		if d != "" && strings.HasPrefix(u, d) {
			return fmt.Errorf("%q matches deny entry %q: %w", u, d, ErrDisallowedURL)
		}
	}
	return nil
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
