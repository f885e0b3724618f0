package resolve

import (
	"html"
	"regexp"
	"strconv"
	"strings"
)

// A matcher inspects an HTML/text body and optionally yields a candidate
// download URL. Matchers run in confidence order; the first hit wins.
type matcher func(body string) (string, bool)

var matchers = []matcher{
	matchScriptRedirect,
	matchMetaRefresh,
	matchDriveAnchor,
	matchDownloadURLField,
	matchUserContentAttr,
	matchConfirmDownload,
	matchBareHintedURL,
}

// ExtractRedirect heuristically locates an embedded direct-download URL in
// an HTML landing page. It returns false when no pattern applies.
func ExtractRedirect(body string) (string, bool) {
	for _, match := range matchers {
		if candidate, ok := match(body); ok {
			return cleanCandidate(candidate), true
		}
	}
	return "", false
}

// cleanCandidate undoes HTML entity encoding, then gives the result one
// best-effort pass of escape-sequence unescaping (skipped on failure).
func cleanCandidate(raw string) string {
	candidate := html.UnescapeString(raw)
	candidate = strings.ReplaceAll(candidate, `\/`, "/")
	if unquoted, err := strconv.Unquote(`"` + candidate + `"`); err == nil {
		candidate = unquoted
	}
	return strings.TrimSpace(candidate)
}

var scriptRedirectPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)window\.location(?:\.href)?\s*=\s*["']([^"']+)["']`),
	regexp.MustCompile(`(?i)window\.location(?:\.replace|\.assign)?\(\s*["']([^"']+)["']\s*\)`),
	regexp.MustCompile(`(?i)\.href\s*=\s*["'](https?://[^"']+)["']`),
}

// matchScriptRedirect finds client-side script redirects.
func matchScriptRedirect(body string) (string, bool) {
	for _, pattern := range scriptRedirectPatterns {
		if m := pattern.FindStringSubmatch(body); m != nil {
			return m[1], true
		}
	}
	return "", false
}

var (
	metaRefreshTagPattern = regexp.MustCompile(
		`(?is)<meta[^>]*http-equiv\s*=\s*["']?refresh["']?[^>]*>`)
	metaRefreshURLPattern = regexp.MustCompile(
		`(?i)content\s*=\s*["'][^"']*url\s*=\s*([^"'>\s]+)`)
)

// matchMetaRefresh finds an HTML meta-refresh redirect target. The tag and
// the url are matched separately; attribute order inside the tag varies.
func matchMetaRefresh(body string) (string, bool) {
	tag := metaRefreshTagPattern.FindString(body)
	if tag == "" {
		return "", false
	}
	if m := metaRefreshURLPattern.FindStringSubmatch(tag); m != nil {
		return m[1], true
	}
	return "", false
}

var driveAnchorPattern = regexp.MustCompile(
	`(?i)href\s*=\s*["'](https?://(?:drive|docs)\.google\.com/uc\?[^"']+)["']`)

// matchDriveAnchor finds the drive provider's canonical uc? download anchor.
func matchDriveAnchor(body string) (string, bool) {
	if m := driveAnchorPattern.FindStringSubmatch(body); m != nil {
		return m[1], true
	}
	return "", false
}

var downloadURLFieldPattern = regexp.MustCompile(`"downloadUrl"\s*:\s*"([^"]+)"`)

// matchDownloadURLField finds a JSON-embedded downloadUrl value.
func matchDownloadURLField(body string) (string, bool) {
	if m := downloadURLFieldPattern.FindStringSubmatch(body); m != nil {
		return m[1], true
	}
	return "", false
}

var userContentAttrPattern = regexp.MustCompile(
	`(?i)data-[\w-]+\s*=\s*["'](https?://[^"']*googleusercontent\.com[^"']*)["']`)

// matchUserContentAttr finds a data attribute pointing at the consumer
// drive's user-content host.
func matchUserContentAttr(body string) (string, bool) {
	if m := userContentAttrPattern.FindStringSubmatch(body); m != nil {
		return m[1], true
	}
	return "", false
}

var (
	confirmFieldPattern = regexp.MustCompile(
		`(?i)name\s*=\s*["']confirm["'][^>]*value\s*=\s*["']([^"']+)["']`)
	idFieldPattern = regexp.MustCompile(
		`(?i)name\s*=\s*["']id["'][^>]*value\s*=\s*["']([^"']+)["']`)
)

// matchConfirmDownload synthesizes the "large file, confirm download" URL
// from separate confirm and id form fields.
func matchConfirmDownload(body string) (string, bool) {
	confirm := confirmFieldPattern.FindStringSubmatch(body)
	id := idFieldPattern.FindStringSubmatch(body)
	if confirm == nil || id == nil {
		return "", false
	}
	return driveDirectEndpoint + "?export=download&confirm=" + confirm[1] + "&id=" + id[1], true
}

var bareURLPattern = regexp.MustCompile(`https?://[^\s"'<>\\]+`)

// urlHints mark a bare URL as plausibly pointing at hosted audio.
var urlHints = []string{
	".mp3",
	".wav",
	".flac",
	".m4a",
	"export=download",
	"/download",
	"googleusercontent.com",
	"dropboxusercontent.com",
}

// matchBareHintedURL is the last-resort scan over every bare URL in the
// body, keeping the first one carrying an audio or download hint.
func matchBareHintedURL(body string) (string, bool) {
	for _, candidate := range bareURLPattern.FindAllString(body, -1) {
		lowered := strings.ToLower(candidate)
		for _, hint := range urlHints {
			if strings.Contains(lowered, hint) {
				return candidate, true
			}
		}
	}
	return "", false
}
