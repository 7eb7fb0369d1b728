package model

import (
	"fmt"
	"time"
)

// Video represents a single media item belonging to exactly one Channel and
// one Category. Videos are soft-deleted via the Deleted flag; the only hard
// delete path is the channel cascade.
type Video struct {
	ID            uint   `gorm:"primaryKey"`
	YouTubeID     string `gorm:"uniqueIndex;size:32;not null"`
	ChannelRef    uint   `gorm:"index;not null"`
	CategoryRef   int    `gorm:"index;not null"`
	Title         string `gorm:"size:500"`
	Description   string `gorm:"type:text"`
	Duration      int    `gorm:"default:0"` // whole seconds
	ViewCount     *int64
	FavoriteCount *int64
	Uploaded      time.Time `gorm:"index"`
	Updated       time.Time
	Deleted       bool `gorm:"default:false;index"`
	CreatedAt     time.Time

	Channel  Channel  `gorm:"foreignKey:ChannelRef"`
	Category Category `gorm:"foreignKey:CategoryRef"`
}

// TableName returns the table name for Video
func (Video) TableName() string {
	return "videos"
}

// WatchURL returns the public watch page for the video.
func (v *Video) WatchURL() string {
	return fmt.Sprintf("https://www.youtube.com/watch?v=%s", v.YouTubeID)
}
