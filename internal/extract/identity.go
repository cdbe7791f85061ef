package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

const (
	textHashPrefix = "sha256:"
	textHashLength = 16
)

// LinkIdentity normalizes a URL into a dedup key: the fragment and utm_*
// tracking parameters are removed, everything else is kept as is.
func LinkIdentity(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}

	u.Fragment = ""
	u.RawFragment = ""

	if u.RawQuery != "" {
		query := u.Query()
		for key := range query {
			if strings.HasPrefix(strings.ToLower(key), "utm_") {
				query.Del(key)
			}
		}
		u.RawQuery = query.Encode()
	}

	return u.String()
}

// TextIdentity is the dedup key for PDF and raw text items.
func TextIdentity(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return textHashPrefix + hex.EncodeToString(sum[:])[:textHashLength]
}
