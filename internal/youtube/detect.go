// Package youtube detects YouTube links and produces timestamped
// video summaries. Single videos go straight to the model as a file
// URI; playlists are expanded with yt-dlp and summarized item by item.
package youtube

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ErrNotYouTube is returned when a string holds no YouTube link.
var ErrNotYouTube = errors.New("not a YouTube URL")

var urlPattern = regexp.MustCompile(`(https?://)?(www\.)?(youtube\.com|youtu\.be)/\S+`)

// DetectURL scans free text for the first YouTube link and returns it
// in canonical form. Chat input is passed through this before every
// turn so pasted links can be routed to the summarizer.
func DetectURL(text string) (string, bool) {
	match := urlPattern.FindString(text)
	if match == "" {
		return "", false
	}
	norm, err := Normalize(match)
	if err != nil {
		return "", false
	}
	return norm, true
}

// Normalize rewrites a YouTube link to its canonical https://www form.
// Short youtu.be links become watch URLs, carrying a list parameter
// through when present.
func Normalize(raw string) (string, error) {
	match := urlPattern.FindString(raw)
	if match == "" {
		return "", ErrNotYouTube
	}
	if !strings.HasPrefix(match, "http://") && !strings.HasPrefix(match, "https://") {
		match = "https://" + match
	}
	u, err := url.Parse(match)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", match, err)
	}
	u.Scheme = "https"

	switch strings.TrimPrefix(u.Host, "www.") {
	case "youtu.be":
		id := strings.Trim(u.Path, "/")
		if id == "" {
			return "", ErrNotYouTube
		}
		norm := "https://www.youtube.com/watch?v=" + id
		if list := u.Query().Get("list"); list != "" {
			norm += "&list=" + list
		}
		return norm, nil
	case "youtube.com":
		u.Host = "www.youtube.com"
		return u.String(), nil
	default:
		return "", ErrNotYouTube
	}
}

// IsPlaylist reports whether the URL references a playlist.
func IsPlaylist(rawURL string) bool {
	return PlaylistID(rawURL) != ""
}

// PlaylistID extracts the list parameter from any YouTube URL shape.
func PlaylistID(rawURL string) string {
	if !strings.Contains(rawURL, "list=") {
		return ""
	}
	part := strings.SplitN(rawURL, "list=", 2)[1]
	if i := strings.Index(part, "&"); i >= 0 {
		part = part[:i]
	}
	return part
}

// VideoID extracts the video ID from a watch or short URL.
func VideoID(rawURL string) string {
	norm, err := Normalize(rawURL)
	if err != nil {
		return ""
	}
	u, err := url.Parse(norm)
	if err != nil {
		return ""
	}
	return u.Query().Get("v")
}
