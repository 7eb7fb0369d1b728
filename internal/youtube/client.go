package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	channelsPath        = "/channels"
	playlistItemsPath   = "/playlistItems"
	videosPath          = "/videos"
	videoCategoriesPath = "/videoCategories"

	// PlaylistPageSize is the maximum number of playlist entries per page.
	PlaylistPageSize = 50

	maxErrorBody = 2048
)

// Config holds configuration for the API client
type Config struct {
	// APIKey is sent with every request
	APIKey string
	// BaseURL is the API root, e.g. https://www.googleapis.com/youtube/v3
	BaseURL string
	// ThumbnailBaseURL is the thumbnail CDN root, e.g. https://i.ytimg.com
	ThumbnailBaseURL string
	// ThumbnailQuality selects the probed thumbnail variant
	ThumbnailQuality string
	// Timeout is the HTTP request timeout
	Timeout time.Duration
	// RateLimit is the maximum requests per second
	RateLimit float64
}

// DefaultConfig returns default client configuration
func DefaultConfig() *Config {
	return &Config{
		BaseURL:          "https://www.googleapis.com/youtube/v3",
		ThumbnailBaseURL: "https://i.ytimg.com",
		ThumbnailQuality: "hqdefault",
		Timeout:          30 * time.Second,
		RateLimit:        5,
	}
}

// Client issues requests against the YouTube Data API. It performs no
// caching and no retrying; retry policy belongs to the caller.
type Client struct {
	client  *http.Client
	limiter *rate.Limiter
	config  *Config
}

// NewClient creates a new API client instance
func NewClient(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		config:  cfg,
	}
}

type pageInfo struct {
	TotalResults int `json:"totalResults"`
}

// ChannelInfo is the snippet + contentDetails view of a channel.
type ChannelInfo struct {
	ID      string `json:"id"`
	Snippet struct {
		Title      string `json:"title"`
		Thumbnails struct {
			Default struct {
				URL string `json:"url"`
			} `json:"default"`
		} `json:"thumbnails"`
	} `json:"snippet"`
	ContentDetails struct {
		RelatedPlaylists struct {
			Uploads string `json:"uploads"`
		} `json:"relatedPlaylists"`
	} `json:"contentDetails"`
}

// PlaylistItem is one entry of an uploads playlist page.
type PlaylistItem struct {
	ContentDetails struct {
		VideoID string `json:"videoId"`
	} `json:"contentDetails"`
}

// Statistics carries a video's numeric counters. The API encodes them as
// decimal strings.
type Statistics struct {
	ViewCount     string `json:"viewCount"`
	FavoriteCount string `json:"favoriteCount"`
}

// VideoPayload is the snippet + contentDetails + statistics view of a video.
// The statistics block is absent for some videos.
type VideoPayload struct {
	ID      string `json:"id"`
	Snippet struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		CategoryID  string `json:"categoryId"`
		PublishedAt string `json:"publishedAt"`
	} `json:"snippet"`
	ContentDetails struct {
		Duration string `json:"duration"`
	} `json:"contentDetails"`
	Statistics *Statistics `json:"statistics"`
}

// CategoryPayload is the snippet view of a video category.
type CategoryPayload struct {
	ID      string `json:"id"`
	Snippet struct {
		Title string `json:"title"`
	} `json:"snippet"`
}

// ChannelInfo fetches snippet and contentDetails for the given channel id.
// Returns ErrNotFound when the channel does not exist.
func (c *Client) ChannelInfo(ctx context.Context, channelID string) (*ChannelInfo, error) {
	var resp struct {
		Items []ChannelInfo `json:"items"`
	}
	err := c.get(ctx, channelsPath, url.Values{
		"part": {"snippet,contentDetails"},
		"id":   {channelID},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("channel %s: %w", channelID, ErrNotFound)
	}
	return &resp.Items[0], nil
}

// ChannelIDForAuthor resolves a legacy username handle to a channel id.
// Returns an empty string when no channel matches the handle.
func (c *Client) ChannelIDForAuthor(ctx context.Context, author string) (string, error) {
	var resp struct {
		PageInfo pageInfo `json:"pageInfo"`
		Items    []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	err := c.get(ctx, channelsPath, url.Values{
		"part":        {"id"},
		"forUsername": {author},
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.PageInfo.TotalResults == 0 || len(resp.Items) == 0 {
		return "", nil
	}
	return resp.Items[0].ID, nil
}

// ChannelExists reports whether the given channel id is known to the API.
func (c *Client) ChannelExists(ctx context.Context, channelID string) (bool, error) {
	var resp struct {
		PageInfo pageInfo `json:"pageInfo"`
	}
	err := c.get(ctx, channelsPath, url.Values{
		"part": {"id"},
		"id":   {channelID},
	}, &resp)
	if err != nil {
		return false, err
	}
	return resp.PageInfo.TotalResults > 0, nil
}

// PlaylistPage fetches one page of up to PlaylistPageSize playlist entries.
// Pass an empty pageToken for the first page. The returned token is empty on
// the last page.
func (c *Client) PlaylistPage(ctx context.Context, playlistID, pageToken string) ([]PlaylistItem, string, error) {
	params := url.Values{
		"part":       {"contentDetails"},
		"maxResults": {strconv.Itoa(PlaylistPageSize)},
		"playlistId": {playlistID},
	}
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	var resp struct {
		Items         []PlaylistItem `json:"items"`
		NextPageToken string         `json:"nextPageToken"`
	}
	if err := c.get(ctx, playlistItemsPath, params, &resp); err != nil {
		return nil, "", err
	}
	return resp.Items, resp.NextPageToken, nil
}

// Videos batch-fetches full payloads for the given video ids.
func (c *Client) Videos(ctx context.Context, videoIDs []string) ([]VideoPayload, error) {
	if len(videoIDs) == 0 {
		return nil, nil
	}
	var resp struct {
		Items []VideoPayload `json:"items"`
	}
	err := c.get(ctx, videosPath, url.Values{
		"part": {"snippet,contentDetails,statistics"},
		"id":   {strings.Join(videoIDs, ",")},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// VideoCategories batch-fetches category payloads for the given ids.
func (c *Client) VideoCategories(ctx context.Context, categoryIDs []int) ([]CategoryPayload, error) {
	if len(categoryIDs) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(categoryIDs))
	for _, id := range categoryIDs {
		ids = append(ids, strconv.Itoa(id))
	}
	sort.Strings(ids)

	var resp struct {
		Items []CategoryPayload `json:"items"`
	}
	err := c.get(ctx, videoCategoriesPath, url.Values{
		"part": {"snippet"},
		"id":   {strings.Join(ids, ",")},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// ThumbnailURL returns the CDN URL of a video's thumbnail at the configured
// quality.
func (c *Client) ThumbnailURL(videoID string) string {
	return fmt.Sprintf("%s/vi/%s/%s.jpg",
		strings.TrimRight(c.config.ThumbnailBaseURL, "/"), videoID, c.config.ThumbnailQuality)
}

// CheckThumbnail issues a HEAD probe against a video's thumbnail. It returns
// true when the thumbnail is live (200) and false when it is gone (404). Any
// other status is a StatusError.
func (c *Client) CheckThumbnail(ctx context.Context, videoID string) (bool, error) {
	probeURL := c.ThumbnailURL(videoID)

	if err := c.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("rate limiter error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, probeURL, nil)
	if err != nil {
		return false, fmt.Errorf("create request error: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	log.Debug().
		Int("status", resp.StatusCode).
		Str("url", probeURL).
		Msg("Thumbnail probe response")

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, &StatusError{StatusCode: resp.StatusCode, URL: probeURL}
	}
}

// get performs a single rate-limited GET against an API path and decodes the
// JSON response into out.
func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	params.Set("key", c.config.APIKey)
	targetURL := strings.TrimRight(c.config.BaseURL, "/") + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return fmt.Errorf("create request error: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	log.Debug().
		Int("status", resp.StatusCode).
		Str("path", path).
		Msg("API response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &PayloadError{Field: "body", Reason: err.Error()}
	}

	return nil
}
