package sync

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/user/ytcatalog-go/internal/model"
	"github.com/user/ytcatalog-go/internal/store"
	"github.com/user/ytcatalog-go/internal/youtube"
)

// Client is the slice of the API client the synchronizer depends on
type Client interface {
	ChannelInfo(ctx context.Context, channelID string) (*youtube.ChannelInfo, error)
	PlaylistPage(ctx context.Context, playlistID, pageToken string) ([]youtube.PlaylistItem, string, error)
	Videos(ctx context.Context, videoIDs []string) ([]youtube.VideoPayload, error)
	VideoCategories(ctx context.Context, categoryIDs []int) ([]youtube.CategoryPayload, error)
}

// Syncer refreshes channel metadata and walks a channel's uploads playlist,
// upserting every video it sees. It performs no retrying of its own; a failed
// call surfaces to the caller with the channel's data unchanged only if the
// caller wrapped the sync in a transaction.
type Syncer struct {
	client Client

	// refreshDuration opts into re-capturing a video's duration on every
	// sync instead of keeping the value from first capture
	refreshDuration bool
}

// NewSyncer creates a new synchronizer using the given API client
func NewSyncer(client Client, refreshDuration bool) *Syncer {
	return &Syncer{
		client:          client,
		refreshDuration: refreshDuration,
	}
}

// RefreshInfo copies the channel's current title, thumbnail and uploads
// playlist id from the API onto the row, persisting it unless save is false.
func (s *Syncer) RefreshInfo(ctx context.Context, st store.Store, channel *model.Channel, save bool) error {
	info, err := s.client.ChannelInfo(ctx, channel.ChannelID)
	if err != nil {
		return err
	}

	channel.Title = info.Snippet.Title
	channel.Thumbnail = info.Snippet.Thumbnails.Default.URL
	channel.UploadsPlaylist = info.ContentDetails.RelatedPlaylists.Uploads

	if !save {
		return nil
	}
	return st.SaveChannel(ctx, channel)
}

// SyncVideos walks the channel's uploads playlist and upserts every video it
// finds, returning the number of videos touched. In fast mode only the first
// page is processed; a full sync follows next-page tokens until the API runs
// out. Categories referenced by a page are created before any of its videos,
// so no upsert ever points at a missing category.
func (s *Syncer) SyncVideos(ctx context.Context, st store.Store, channel *model.Channel, full bool) (int, error) {
	touched := 0
	pageToken := ""

	for {
		items, nextPageToken, err := s.client.PlaylistPage(ctx, channel.UploadsPlaylist, pageToken)
		if err != nil {
			return touched, err
		}

		// Dedup video ids within the page.
		seen := make(map[string]struct{}, len(items))
		videoIDs := make([]string, 0, len(items))
		for _, item := range items {
			id := item.ContentDetails.VideoID
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			videoIDs = append(videoIDs, id)
		}

		// This is the terminal page unless a full sync has more to walk.
		lastPage := !full || nextPageToken == ""

		payloads, err := s.client.Videos(ctx, videoIDs)
		if err != nil {
			return touched, err
		}

		categoryIDs, err := collectCategoryIDs(payloads)
		if err != nil {
			return touched, err
		}
		if _, err := s.ResolveCategories(ctx, st, categoryIDs); err != nil {
			return touched, err
		}

		for i := range payloads {
			if _, err := s.UpsertVideo(ctx, st, channel, &payloads[i]); err != nil {
				return touched, err
			}
			touched++
		}

		log.Debug().
			Str("channel", channel.ChannelID).
			Int("page_videos", len(payloads)).
			Int("touched", touched).
			Bool("last_page", lastPage).
			Msg("Processed playlist page")

		if lastPage {
			break
		}
		pageToken = nextPageToken
	}

	return touched, nil
}
