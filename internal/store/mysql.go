package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/user/ytcatalog-go/internal/config"
	"github.com/user/ytcatalog-go/internal/model"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// MySQLStore implements Store interface using MySQL database
type MySQLStore struct {
	db *gorm.DB
}

// NewMySQLStore creates a new MySQL store instance
func NewMySQLStore(cfg *config.DBConfig) (*MySQLStore, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(mysql.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxConns)
	sqlDB.SetMaxIdleConns(cfg.MaxConns / 2)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Auto migrate tables
	if err := db.AutoMigrate(&model.Channel{}, &model.Category{}, &model.Video{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &MySQLStore{db: db}, nil
}

// CreateChannel creates a new channel row
func (s *MySQLStore) CreateChannel(ctx context.Context, channel *model.Channel) error {
	if err := s.db.WithContext(ctx).Create(channel).Error; err != nil {
		return fmt.Errorf("failed to create channel: %w", err)
	}
	return nil
}

// ListChannels retrieves all channels, visible ones first, then by title.
// This is the iteration order of the maintenance job.
func (s *MySQLStore) ListChannels(ctx context.Context) ([]*model.Channel, error) {
	var channels []*model.Channel
	result := s.db.WithContext(ctx).
		Order("hidden ASC, title ASC").
		Find(&channels)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list channels: %w", result.Error)
	}
	return channels, nil
}

// VisibleChannels retrieves all non-hidden channels ordered by title
func (s *MySQLStore) VisibleChannels(ctx context.Context) ([]*model.Channel, error) {
	var channels []*model.Channel
	result := s.db.WithContext(ctx).
		Where("hidden = ?", false).
		Order("title ASC").
		Find(&channels)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list visible channels: %w", result.Error)
	}
	return channels, nil
}

// GetChannel retrieves a channel by its row id, or nil when absent
func (s *MySQLStore) GetChannel(ctx context.Context, id uint) (*model.Channel, error) {
	var channel model.Channel
	result := s.db.WithContext(ctx).Where("id = ?", id).First(&channel)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get channel: %w", result.Error)
	}
	return &channel, nil
}

// GetChannelByChannelID retrieves a channel by its external id, or nil when absent
func (s *MySQLStore) GetChannelByChannelID(ctx context.Context, channelID string) (*model.Channel, error) {
	var channel model.Channel
	result := s.db.WithContext(ctx).Where("channel_id = ?", channelID).First(&channel)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get channel by channel id: %w", result.Error)
	}
	return &channel, nil
}

// GetChannelByAuthor retrieves a channel by its legacy handle, or nil when absent
func (s *MySQLStore) GetChannelByAuthor(ctx context.Context, author string) (*model.Channel, error) {
	var channel model.Channel
	result := s.db.WithContext(ctx).Where("author = ?", author).First(&channel)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get channel by author: %w", result.Error)
	}
	return &channel, nil
}

// SaveChannel persists all fields of an existing channel row
func (s *MySQLStore) SaveChannel(ctx context.Context, channel *model.Channel) error {
	if err := s.db.WithContext(ctx).Save(channel).Error; err != nil {
		return fmt.Errorf("failed to save channel: %w", err)
	}
	return nil
}

// SetChannelHidden updates a channel's visibility flag
func (s *MySQLStore) SetChannelHidden(ctx context.Context, id uint, hidden bool) error {
	result := s.db.WithContext(ctx).
		Model(&model.Channel{}).
		Where("id = ?", id).
		Update("hidden", hidden)
	if result.Error != nil {
		return fmt.Errorf("failed to set channel hidden: %w", result.Error)
	}
	return nil
}

// DeleteChannel removes a channel and all videos it owns
func (s *MySQLStore) DeleteChannel(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("channel_ref = ?", id).Delete(&model.Video{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&model.Channel{}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete channel: %w", err)
	}
	return nil
}

// CategoriesByIDs retrieves the categories already persisted for the given ids
func (s *MySQLStore) CategoriesByIDs(ctx context.Context, ids []int) ([]*model.Category, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var categories []*model.Category
	result := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&categories)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get categories: %w", result.Error)
	}
	return categories, nil
}

// EnsureCategory inserts a category if its id is not yet present. Concurrent
// callers racing on the same id both succeed and exactly one row exists
// afterwards.
func (s *MySQLStore) EnsureCategory(ctx context.Context, category *model.Category) error {
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(category)
	if result.Error != nil {
		return fmt.Errorf("failed to ensure category: %w", result.Error)
	}
	return nil
}

// GetVideoByYouTubeID retrieves a video by its external id, or nil when absent
func (s *MySQLStore) GetVideoByYouTubeID(ctx context.Context, youtubeID string) (*model.Video, error) {
	var video model.Video
	result := s.db.WithContext(ctx).Where("you_tube_id = ?", youtubeID).First(&video)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get video: %w", result.Error)
	}
	return &video, nil
}

// CreateVideo creates a new video row
func (s *MySQLStore) CreateVideo(ctx context.Context, video *model.Video) error {
	if err := s.db.WithContext(ctx).Create(video).Error; err != nil {
		return fmt.Errorf("failed to create video: %w", err)
	}
	return nil
}

// UpdateVideo persists the named fields of an existing video row
func (s *MySQLStore) UpdateVideo(ctx context.Context, video *model.Video, fields ...string) error {
	result := s.db.WithContext(ctx).
		Model(video).
		Select(fields).
		Updates(video)
	if result.Error != nil {
		return fmt.Errorf("failed to update video: %w", result.Error)
	}
	return nil
}

// RecentActiveVideos retrieves the most recently uploaded non-deleted videos,
// capped at limit. This is the deletion sweep's working set.
func (s *MySQLStore) RecentActiveVideos(ctx context.Context, limit int) ([]*model.Video, error) {
	var videos []*model.Video
	result := s.db.WithContext(ctx).
		Where("deleted = ?", false).
		Order("uploaded DESC").
		Limit(limit).
		Find(&videos)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get recent videos: %w", result.Error)
	}
	return videos, nil
}

// VisibleVideos retrieves non-deleted videos of visible channels, newest
// upload first, with pagination
func (s *MySQLStore) VisibleVideos(ctx context.Context, limit, offset int) ([]*model.Video, error) {
	var videos []*model.Video
	result := s.db.WithContext(ctx).
		Joins("JOIN channels ON channels.id = videos.channel_ref").
		Where("videos.deleted = ? AND channels.hidden = ?", false, false).
		Order("videos.uploaded DESC").
		Limit(limit).
		Offset(offset).
		Find(&videos)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get visible videos: %w", result.Error)
	}
	return videos, nil
}

// VideosForChannel retrieves a channel's non-deleted videos, newest upload first
func (s *MySQLStore) VideosForChannel(ctx context.Context, channelRef uint) ([]*model.Video, error) {
	var videos []*model.Video
	result := s.db.WithContext(ctx).
		Where("channel_ref = ? AND deleted = ?", channelRef, false).
		Order("uploaded DESC").
		Find(&videos)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get channel videos: %w", result.Error)
	}
	return videos, nil
}

// MarkVideoDeleted sets a video's soft-delete flag
func (s *MySQLStore) MarkVideoDeleted(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).
		Model(&model.Video{}).
		Where("id = ?", id).
		Update("deleted", true)
	if result.Error != nil {
		return fmt.Errorf("failed to mark video deleted: %w", result.Error)
	}
	return nil
}

// CountVideos returns the total count of non-deleted videos
func (s *MySQLStore) CountVideos(ctx context.Context) (int64, error) {
	var count int64
	result := s.db.WithContext(ctx).
		Model(&model.Video{}).
		Where("deleted = ?", false).
		Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count videos: %w", result.Error)
	}
	return count, nil
}

// Transaction runs fn against a store bound to a single transaction
func (s *MySQLStore) Transaction(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&MySQLStore{db: tx})
	})
}

// Ping checks database connectivity
func (s *MySQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying db: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (s *MySQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying db: %w", err)
	}
	return sqlDB.Close()
}

// DB returns the underlying gorm.DB instance (for testing purposes)
func (s *MySQLStore) DB() *gorm.DB {
	return s.db
}
