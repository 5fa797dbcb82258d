package youtube

import (
	"errors"
	"testing"
)

func TestDetectURL(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{
			name: "bare watch URL",
			text: "https://www.youtube.com/watch?v=izHDm4Vf3lQ",
			want: "https://www.youtube.com/watch?v=izHDm4Vf3lQ",
			ok:   true,
		},
		{
			name: "url inside prose",
			text: "check this out youtube.com/watch?v=abc123 when you can",
			want: "https://www.youtube.com/watch?v=abc123",
			ok:   true,
		},
		{
			name: "short link",
			text: "https://youtu.be/dQw4w9WgXcQ",
			want: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			ok:   true,
		},
		{
			name: "short link with playlist",
			text: "youtu.be/abc?list=PL99",
			want: "https://www.youtube.com/watch?v=abc&list=PL99",
			ok:   true,
		},
		{
			name: "no scheme no www",
			text: "youtube.com/watch?v=xyz",
			want: "https://www.youtube.com/watch?v=xyz",
			ok:   true,
		},
		{
			name: "plain text",
			text: "what is the weather like today",
			ok:   false,
		},
		{
			name: "other video site",
			text: "https://vimeo.com/12345",
			ok:   false,
		},
		{
			name: "short link without id",
			text: "see https://youtu.be/ maybe",
			ok:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DetectURL(tt.text)
			if ok != tt.ok {
				t.Fatalf("DetectURL(%q) ok = %v, want %v", tt.text, ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("DetectURL(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestNormalizeRejectsNonYouTube(t *testing.T) {
	if _, err := Normalize("https://example.com/watch?v=abc"); !errors.Is(err, ErrNotYouTube) {
		t.Fatalf("err = %v, want ErrNotYouTube", err)
	}
}

func TestIsPlaylist(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.youtube.com/watch?v=a&list=PL123", true},
		{"https://www.youtube.com/playlist?list=PL123", true},
		{"https://www.youtube.com/watch?v=a", false},
		{"https://www.youtube.com/watch?v=a&list=", false},
	}
	for _, tt := range tests {
		if got := IsPlaylist(tt.url); got != tt.want {
			t.Errorf("IsPlaylist(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestPlaylistID(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.youtube.com/watch?v=a&list=PL123&index=2", "PL123"},
		{"https://www.youtube.com/playlist?list=PLabc", "PLabc"},
		{"https://www.youtube.com/watch?v=a", ""},
	}
	for _, tt := range tests {
		if got := PlaylistID(tt.url); got != tt.want {
			t.Errorf("PlaylistID(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestVideoID(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.youtube.com/watch?v=izHDm4Vf3lQ", "izHDm4Vf3lQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/playlist?list=PL123", ""},
		{"not a url at all", ""},
	}
	for _, tt := range tests {
		if got := VideoID(tt.url); got != tt.want {
			t.Errorf("VideoID(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}
