// Package storetest provides an in-memory Store for tests.
package storetest

import (
	"context"
	"sort"
	"sync"

	"github.com/user/ytcatalog-go/internal/model"
	"github.com/user/ytcatalog-go/internal/store"
)

// Store is an in-memory store.Store. Writes commit immediately; Transaction
// exists to satisfy callers and performs no rollback.
type Store struct {
	mu            sync.Mutex
	nextChannelID uint
	nextVideoID   uint
	channels      map[uint]*model.Channel
	categories    map[int]*model.Category
	videos        map[uint]*model.Video

	// EnsureCategoryCalls counts EnsureCategory invocations
	EnsureCategoryCalls int
}

// New creates an empty in-memory store
func New() *Store {
	return &Store{
		channels:   make(map[uint]*model.Channel),
		categories: make(map[int]*model.Category),
		videos:     make(map[uint]*model.Video),
	}
}

func copyChannel(c *model.Channel) *model.Channel {
	dup := *c
	return &dup
}

func copyVideo(v *model.Video) *model.Video {
	dup := *v
	return &dup
}

// CreateChannel stores a copy of the channel and assigns its row id
func (s *Store) CreateChannel(ctx context.Context, channel *model.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextChannelID++
	channel.ID = s.nextChannelID
	s.channels[channel.ID] = copyChannel(channel)
	return nil
}

// ListChannels returns all channels, visible first, then by title
func (s *Store) ListChannels(ctx context.Context) ([]*model.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Channel, 0, len(s.channels))
	for _, c := range s.channels {
		out = append(out, copyChannel(c))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Hidden != out[j].Hidden {
			return !out[i].Hidden
		}
		return out[i].Title < out[j].Title
	})
	return out, nil
}

// VisibleChannels returns non-hidden channels by title
func (s *Store) VisibleChannels(ctx context.Context) ([]*model.Channel, error) {
	all, _ := s.ListChannels(ctx)
	out := make([]*model.Channel, 0, len(all))
	for _, c := range all {
		if !c.Hidden {
			out = append(out, c)
		}
	}
	return out, nil
}

// GetChannel returns the channel with the given row id, or nil
func (s *Store) GetChannel(ctx context.Context, id uint) (*model.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.channels[id]; ok {
		return copyChannel(c), nil
	}
	return nil, nil
}

// GetChannelByChannelID returns the channel with the given external id, or nil
func (s *Store) GetChannelByChannelID(ctx context.Context, channelID string) (*model.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.channels {
		if c.ChannelID == channelID {
			return copyChannel(c), nil
		}
	}
	return nil, nil
}

// GetChannelByAuthor returns the channel with the given handle, or nil
func (s *Store) GetChannelByAuthor(ctx context.Context, author string) (*model.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.channels {
		if c.Author != nil && *c.Author == author {
			return copyChannel(c), nil
		}
	}
	return nil, nil
}

// SaveChannel replaces the stored channel row
func (s *Store) SaveChannel(ctx context.Context, channel *model.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[channel.ID] = copyChannel(channel)
	return nil
}

// SetChannelHidden updates a channel's hidden flag
func (s *Store) SetChannelHidden(ctx context.Context, id uint, hidden bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.channels[id]; ok {
		c.Hidden = hidden
	}
	return nil
}

// DeleteChannel removes a channel and its videos
func (s *Store) DeleteChannel(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.channels, id)
	for vid, v := range s.videos {
		if v.ChannelRef == id {
			delete(s.videos, vid)
		}
	}
	return nil
}

// CategoriesByIDs returns the stored categories among the given ids
func (s *Store) CategoriesByIDs(ctx context.Context, ids []int) ([]*model.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Category
	for _, id := range ids {
		if c, ok := s.categories[id]; ok {
			dup := *c
			out = append(out, &dup)
		}
	}
	return out, nil
}

// EnsureCategory inserts a category unless its id already exists
func (s *Store) EnsureCategory(ctx context.Context, category *model.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.EnsureCategoryCalls++
	if _, ok := s.categories[category.ID]; !ok {
		dup := *category
		s.categories[category.ID] = &dup
	}
	return nil
}

// CategoryCount returns the number of stored categories
func (s *Store) CategoryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.categories)
}

// GetVideoByYouTubeID returns the video with the given external id, or nil
func (s *Store) GetVideoByYouTubeID(ctx context.Context, youtubeID string) (*model.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.videos {
		if v.YouTubeID == youtubeID {
			return copyVideo(v), nil
		}
	}
	return nil, nil
}

// CreateVideo stores a copy of the video and assigns its row id
func (s *Store) CreateVideo(ctx context.Context, video *model.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextVideoID++
	video.ID = s.nextVideoID
	s.videos[video.ID] = copyVideo(video)
	return nil
}

// UpdateVideo applies only the named columns of video to the stored row
func (s *Store) UpdateVideo(ctx context.Context, video *model.Video, fields ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.videos[video.ID]
	if !ok {
		return nil
	}
	for _, f := range fields {
		switch f {
		case "title":
			stored.Title = video.Title
		case "description":
			stored.Description = video.Description
		case "category_ref":
			stored.CategoryRef = video.CategoryRef
		case "view_count":
			stored.ViewCount = video.ViewCount
		case "favorite_count":
			stored.FavoriteCount = video.FavoriteCount
		case "updated":
			stored.Updated = video.Updated
		case "duration":
			stored.Duration = video.Duration
		}
	}
	return nil
}

// RecentActiveVideos returns non-deleted videos, newest upload first
func (s *Store) RecentActiveVideos(ctx context.Context, limit int) ([]*model.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Video
	for _, v := range s.videos {
		if !v.Deleted {
			out = append(out, copyVideo(v))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Uploaded.After(out[j].Uploaded)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// VisibleVideos returns non-deleted videos of visible channels, newest first
func (s *Store) VisibleVideos(ctx context.Context, limit, offset int) ([]*model.Video, error) {
	recent, _ := s.RecentActiveVideos(ctx, len(s.videos))
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Video
	for _, v := range recent {
		if c, ok := s.channels[v.ChannelRef]; ok && !c.Hidden {
			out = append(out, v)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// VideosForChannel returns a channel's non-deleted videos, newest first
func (s *Store) VideosForChannel(ctx context.Context, channelRef uint) ([]*model.Video, error) {
	recent, _ := s.RecentActiveVideos(ctx, len(s.videos))
	var out []*model.Video
	for _, v := range recent {
		if v.ChannelRef == channelRef {
			out = append(out, v)
		}
	}
	return out, nil
}

// MarkVideoDeleted sets a video's deleted flag
func (s *Store) MarkVideoDeleted(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.videos[id]; ok {
		v.Deleted = true
	}
	return nil
}

// CountVideos returns the number of non-deleted videos
func (s *Store) CountVideos(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, v := range s.videos {
		if !v.Deleted {
			n++
		}
	}
	return n, nil
}

// Transaction runs fn against the same store; writes commit immediately
func (s *Store) Transaction(ctx context.Context, fn func(store.Store) error) error {
	return fn(s)
}

// Ping always succeeds
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (s *Store) Close() error {
	return nil
}

var _ store.Store = (*Store)(nil)
