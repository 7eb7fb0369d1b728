package store

import (
	"context"

	"github.com/user/ytcatalog-go/internal/model"
)

// Store defines the interface for data persistence operations
type Store interface {
	// Channel operations
	CreateChannel(ctx context.Context, channel *model.Channel) error
	ListChannels(ctx context.Context) ([]*model.Channel, error)
	VisibleChannels(ctx context.Context) ([]*model.Channel, error)
	GetChannel(ctx context.Context, id uint) (*model.Channel, error)
	GetChannelByChannelID(ctx context.Context, channelID string) (*model.Channel, error)
	GetChannelByAuthor(ctx context.Context, author string) (*model.Channel, error)
	SaveChannel(ctx context.Context, channel *model.Channel) error
	SetChannelHidden(ctx context.Context, id uint, hidden bool) error
	DeleteChannel(ctx context.Context, id uint) error

	// Category operations
	CategoriesByIDs(ctx context.Context, ids []int) ([]*model.Category, error)
	EnsureCategory(ctx context.Context, category *model.Category) error

	// Video operations
	GetVideoByYouTubeID(ctx context.Context, youtubeID string) (*model.Video, error)
	CreateVideo(ctx context.Context, video *model.Video) error
	UpdateVideo(ctx context.Context, video *model.Video, fields ...string) error
	RecentActiveVideos(ctx context.Context, limit int) ([]*model.Video, error)
	VisibleVideos(ctx context.Context, limit, offset int) ([]*model.Video, error)
	VideosForChannel(ctx context.Context, channelRef uint) ([]*model.Video, error)
	MarkVideoDeleted(ctx context.Context, id uint) error
	CountVideos(ctx context.Context) (int64, error)

	// Transaction runs fn against a store bound to a single database
	// transaction, committing when fn returns nil
	Transaction(ctx context.Context, fn func(Store) error) error

	// Health check
	Ping(ctx context.Context) error
	Close() error
}
