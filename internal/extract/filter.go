package extract

import (
	"strings"
)

const minArticleURLLength = 25

var skipURLPatterns = []string{
	"unsubscribe", "optout", "opt-out", "mailto:", "tel:",
	".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".css", ".js",
	"utm_source", "click.sender",
	"twitter.com", "x.com/", "facebook.com", "linkedin.com", "instagram.com",
	"notion.so", "google.com/calendar",
}

// IsArticleURL filters out links that are unlikely to be readable articles:
// tracking redirects, assets, social profiles and the like.
func IsArticleURL(rawURL string) bool {
	if len(rawURL) < minArticleURLLength {
		return false
	}

	lower := strings.ToLower(rawURL)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return false
	}

	for _, pattern := range skipURLPatterns {
		if strings.Contains(lower, pattern) {
			return false
		}
	}

	return true
}
