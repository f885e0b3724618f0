package resolve

import (
	"net/url"
	"regexp"
	"strings"
)

const driveDirectEndpoint = "https://drive.google.com/uc"

var driveFilePattern = regexp.MustCompile(`/file/d/([^/?#]+)`)

// NormalizeURL rewrites known cloud-storage share links into their
// direct-download form. Unrecognized hosts and unparseable input pass
// through unchanged; normalization never fails.
func NormalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	host := strings.ToLower(u.Hostname())
	switch {
	case strings.Contains(host, "dropbox.com"):
		q := u.Query()
		q.Set("dl", "1")
		u.RawQuery = q.Encode()
		u.Host = "dl.dropboxusercontent.com"
		return u.String()

	case strings.Contains(host, "1drv.ms"),
		strings.Contains(host, "onedrive.live.com"),
		strings.Contains(host, "sharepoint.com"):
		q := u.Query()
		q.Set("download", "1")
		u.RawQuery = q.Encode()
		return u.String()

	case strings.Contains(host, "drive.google.com"),
		strings.Contains(host, "docs.google.com"):
		if id := driveFileID(u); id != "" {
			return driveDirectEndpoint + "?export=download&id=" + url.QueryEscape(id)
		}
		return raw
	}

	return raw
}

// driveFileID pulls the file identifier out of a drive share link, either
// from the /file/d/{id}/... path form or from an id query parameter.
func driveFileID(u *url.URL) string {
	if m := driveFilePattern.FindStringSubmatch(u.Path); m != nil {
		return m[1]
	}
	return u.Query().Get("id")
}
