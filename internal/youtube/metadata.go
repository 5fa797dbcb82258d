package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ytget/ytdlp/v2"

	"omnichat/internal/logging"
)

const (
	defaultOEmbedURL     = "https://www.youtube.com/oembed"
	metadataHTTPTimeout  = 10 * time.Second
	playlistFetchTimeout = 60 * time.Second
	maxOEmbedBody        = 1 << 20

	videoURLTemplate = "https://www.youtube.com/watch?v=%s"
)

// Video is one entry of a playlist.
type Video struct {
	ID    string
	Title string
	URL   string
}

// Metadata describes a video or playlist without touching the model.
type Metadata struct {
	URL      string
	Title    string
	Author   string
	Playlist bool
	Items    []Video
}

// MetadataClient resolves single-video titles through the public
// oEmbed endpoint and playlist contents through yt-dlp.
type MetadataClient struct {
	oembedURL string
	http      *http.Client
	timeout   time.Duration
}

// NewMetadataClient builds a client. An empty oembedURL selects the
// public YouTube endpoint.
func NewMetadataClient(oembedURL string) *MetadataClient {
	if oembedURL == "" {
		oembedURL = defaultOEmbedURL
	}
	return &MetadataClient{
		oembedURL: oembedURL,
		http:      &http.Client{Timeout: metadataHTTPTimeout},
		timeout:   playlistFetchTimeout,
	}
}

type oembedResponse struct {
	Title      string `json:"title"`
	AuthorName string `json:"author_name"`
}

// Lookup fetches metadata for a video or playlist URL.
func (c *MetadataClient) Lookup(ctx context.Context, rawURL string) (*Metadata, error) {
	norm, err := Normalize(rawURL)
	if err != nil {
		return nil, err
	}
	if IsPlaylist(norm) {
		return c.lookupPlaylist(ctx, norm)
	}
	return c.lookupVideo(ctx, norm)
}

func (c *MetadataClient) lookupVideo(ctx context.Context, videoURL string) (*Metadata, error) {
	params := url.Values{}
	params.Set("url", videoURL)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.oembedURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build oembed request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oembed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oembed returned status %d for %s", resp.StatusCode, videoURL)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxOEmbedBody))
	if err != nil {
		return nil, fmt.Errorf("read oembed response: %w", err)
	}
	var oe oembedResponse
	if err := json.Unmarshal(body, &oe); err != nil {
		return nil, fmt.Errorf("decode oembed response: %w", err)
	}
	return &Metadata{URL: videoURL, Title: oe.Title, Author: oe.AuthorName}, nil
}

func (c *MetadataClient) lookupPlaylist(ctx context.Context, playlistURL string) (*Metadata, error) {
	id := PlaylistID(playlistURL)
	if id == "" {
		return nil, fmt.Errorf("no playlist id in %q", playlistURL)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	d := ytdlp.New()
	items, err := d.GetPlaylistItemsAll(ctx, id, 0)
	if err != nil {
		return nil, fmt.Errorf("fetch playlist %s: %w", id, err)
	}
	logging.YouTubeDebug("playlist %s resolved to %d items", id, len(items))

	videos := make([]Video, 0, len(items))
	for _, it := range items {
		videos = append(videos, Video{
			ID:    it.VideoID,
			Title: it.Title,
			URL:   fmt.Sprintf(videoURLTemplate, it.VideoID),
		})
	}
	return &Metadata{
		URL:      playlistURL,
		Title:    playlistTitle(videos),
		Playlist: true,
		Items:    videos,
	}, nil
}

// playlistTitle names a playlist from its videos. Sibling titles often
// share a series prefix; fall back to the first title otherwise.
func playlistTitle(videos []Video) string {
	if len(videos) == 0 {
		return "Playlist"
	}
	if len(videos) > 1 {
		if prefix := commonPrefix(videos[0].Title, videos[1].Title); len(prefix) > 10 {
			return strings.TrimSpace(prefix) + " Playlist"
		}
	}
	return videos[0].Title + " Playlist"
}

func commonPrefix(a, b string) string {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[:i]
		}
	}
	return a[:n]
}
