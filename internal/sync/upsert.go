package sync

import (
	"context"
	"strconv"
	"time"

	"github.com/user/ytcatalog-go/internal/model"
	"github.com/user/ytcatalog-go/internal/store"
	"github.com/user/ytcatalog-go/internal/youtube"
)

// updatable are the video columns refreshed on every sync. Duration is
// absent: it is captured once at creation and kept (see refreshDuration).
var updatable = []string{"title", "description", "category_ref", "view_count", "favorite_count", "updated"}

// UpsertVideo creates or refreshes the video row for the given payload, keyed
// by the external video id. The category referenced by the payload must
// already be persisted.
func (s *Syncer) UpsertVideo(ctx context.Context, st store.Store, channel *model.Channel, payload *youtube.VideoPayload) (*model.Video, error) {
	categoryID, err := strconv.Atoi(payload.Snippet.CategoryID)
	if err != nil {
		return nil, &youtube.PayloadError{Field: "snippet.categoryId", Reason: payload.Snippet.CategoryID}
	}

	duration, err := youtube.ParseDuration(payload.ContentDetails.Duration)
	if err != nil {
		return nil, err
	}

	uploaded, err := parsePublished(payload.Snippet.PublishedAt)
	if err != nil {
		return nil, err
	}

	viewCount, favoriteCount := parseStatistics(payload.Statistics)

	existing, err := st.GetVideoByYouTubeID(ctx, payload.ID)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		video := &model.Video{
			YouTubeID:     payload.ID,
			ChannelRef:    channel.ID,
			CategoryRef:   categoryID,
			Title:         payload.Snippet.Title,
			Description:   payload.Snippet.Description,
			Duration:      duration,
			ViewCount:     viewCount,
			FavoriteCount: favoriteCount,
			Uploaded:      uploaded,
			Updated:       uploaded,
		}
		if err := st.CreateVideo(ctx, video); err != nil {
			return nil, err
		}
		return video, nil
	}

	existing.ChannelRef = channel.ID
	existing.CategoryRef = categoryID
	existing.Title = payload.Snippet.Title
	existing.Description = payload.Snippet.Description
	existing.ViewCount = viewCount
	existing.FavoriteCount = favoriteCount
	existing.Updated = time.Now()

	fields := updatable
	if s.refreshDuration {
		existing.Duration = duration
		fields = append(append([]string{}, updatable...), "duration")
	}

	if err := st.UpdateVideo(ctx, existing, fields...); err != nil {
		return nil, err
	}
	return existing, nil
}

// parsePublished parses a video's publish timestamp. An absent timestamp is
// valid and maps to the current time.
func parsePublished(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, &youtube.PayloadError{Field: "snippet.publishedAt", Reason: s}
	}
	return t, nil
}

// parseStatistics reads the optional statistics block. A missing block, or a
// counter the API chose not to report, yields nil rather than an error.
func parseStatistics(stats *youtube.Statistics) (viewCount, favoriteCount *int64) {
	if stats == nil {
		return nil, nil
	}
	return parseCount(stats.ViewCount), parseCount(stats.FavoriteCount)
}

func parseCount(s string) *int64 {
	if s == "" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}
