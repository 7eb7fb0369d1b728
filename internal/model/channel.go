package model

import (
	"fmt"
	"time"
)

// Channel represents a tracked YouTube channel
type Channel struct {
	ID              uint    `gorm:"primaryKey"`
	ChannelID       string  `gorm:"uniqueIndex;size:64;not null"`
	Author          *string `gorm:"uniqueIndex;size:128"`
	Title           string  `gorm:"size:500;index"`
	Thumbnail       string  `gorm:"size:500"`
	UploadsPlaylist string  `gorm:"size:64"`
	Hidden          bool    `gorm:"default:false;index"`
	Updated         time.Time
	CreatedAt       time.Time

	Videos []Video `gorm:"foreignKey:ChannelRef;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for Channel
func (Channel) TableName() string {
	return "channels"
}

// URL returns the public videos page for the channel's legacy handle,
// or an empty string when no handle is known.
func (c *Channel) URL() string {
	if c.Author == nil {
		return ""
	}
	return fmt.Sprintf("https://www.youtube.com/user/%s/videos", *c.Author)
}
