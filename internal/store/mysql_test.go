package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/user/ytcatalog-go/internal/config"
	"github.com/user/ytcatalog-go/internal/model"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testStore is a helper to create a test store with a real MySQL database
func setupTestStore(t *testing.T) (*MySQLStore, func()) {
	// Use environment variables or defaults for test database
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		host = "localhost"
	}
	port := 3306
	user := os.Getenv("TEST_DB_USER")
	if user == "" {
		user = "root"
	}
	password := os.Getenv("TEST_DB_PASSWORD")
	if password == "" {
		password = "root"
	}
	database := os.Getenv("TEST_DB_NAME")
	if database == "" {
		database = "ytcatalog_test"
	}

	cfg := &config.DBConfig{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		Database: database,
		MaxConns: 5,
	}

	// First connect without database to create it if needed
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.User, cfg.Password, cfg.Host, cfg.Port)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Skipf("Skipping test: cannot connect to MySQL: %v", err)
	}

	// Create test database
	db.Exec(fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database))

	sqlDB, _ := db.DB()
	sqlDB.Close()

	// Now connect to the test database
	store, err := NewMySQLStore(cfg)
	if err != nil {
		t.Skipf("Skipping test: cannot create store: %v", err)
	}

	// Cleanup function
	cleanup := func() {
		// Clean up tables
		store.db.Exec("DELETE FROM videos")
		store.db.Exec("DELETE FROM channels")
		store.db.Exec("DELETE FROM categories")
		store.Close()
	}

	return store, cleanup
}

func mustCreateChannel(t *testing.T, store *MySQLStore, channelID string, hidden bool) *model.Channel {
	t.Helper()
	channel := &model.Channel{
		ChannelID:       channelID,
		Title:           "Channel " + channelID,
		UploadsPlaylist: "UU" + channelID[2:],
		Hidden:          hidden,
		Updated:         time.Now(),
	}
	if err := store.CreateChannel(context.Background(), channel); err != nil {
		t.Fatalf("CreateChannel() error = %v", err)
	}
	return channel
}

func mustCreateVideo(t *testing.T, store *MySQLStore, channel *model.Channel, category *model.Category, youtubeID string, uploaded time.Time) *model.Video {
	t.Helper()
	video := &model.Video{
		YouTubeID:   youtubeID,
		ChannelRef:  channel.ID,
		CategoryRef: category.ID,
		Title:       "Video " + youtubeID,
		Duration:    120,
		Uploaded:    uploaded,
		Updated:     uploaded,
	}
	if err := store.CreateVideo(context.Background(), video); err != nil {
		t.Fatalf("CreateVideo() error = %v", err)
	}
	return video
}

// genCategoryID generates plausible external category ids
func genCategoryID() gopter.Gen {
	return gen.IntRange(1, 44)
}

// For any category id, ensuring it multiple times results in exactly one row,
// and the first stored name wins.
func TestProperty_EnsureCategoryIdempotent(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("ensuring category multiple times results in exactly one row", prop.ForAll(
		func(id int, ensureCount int) bool {
			ctx := context.Background()

			store.db.Where("id = ?", id).Delete(&model.Category{})

			for i := 0; i < ensureCount; i++ {
				category := &model.Category{ID: id, Name: fmt.Sprintf("Category %d run %d", id, i)}
				if err := store.EnsureCategory(ctx, category); err != nil {
					return false
				}
			}

			var count int64
			store.db.Model(&model.Category{}).Where("id = ?", id).Count(&count)

			var stored model.Category
			store.db.First(&stored, id)
			firstNameKept := stored.Name == fmt.Sprintf("Category %d run 0", id)

			store.db.Where("id = ?", id).Delete(&model.Category{})

			return count == 1 && firstNameKept
		},
		genCategoryID(),
		gen.IntRange(2, 5), // Ensure 2-5 times
	))

	properties.TestingRun(t)
}

func TestRecentActiveVideos(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	channel := mustCreateChannel(t, store, "UCrecent000000000000001", false)
	category := &model.Category{ID: 10, Name: "Music"}
	if err := store.EnsureCategory(ctx, category); err != nil {
		t.Fatalf("EnsureCategory() error = %v", err)
	}

	now := time.Now().Truncate(time.Second)
	oldest := mustCreateVideo(t, store, channel, category, "recent_0001", now.Add(-3*time.Hour))
	middle := mustCreateVideo(t, store, channel, category, "recent_0002", now.Add(-2*time.Hour))
	newest := mustCreateVideo(t, store, channel, category, "recent_0003", now.Add(-1*time.Hour))

	if err := store.MarkVideoDeleted(ctx, middle.ID); err != nil {
		t.Fatalf("MarkVideoDeleted() error = %v", err)
	}

	videos, err := store.RecentActiveVideos(ctx, 10)
	if err != nil {
		t.Fatalf("RecentActiveVideos() error = %v", err)
	}

	if len(videos) != 2 {
		t.Fatalf("got %d videos, want 2 (deleted one excluded)", len(videos))
	}
	if videos[0].YouTubeID != newest.YouTubeID || videos[1].YouTubeID != oldest.YouTubeID {
		t.Errorf("order = [%s %s], want newest first", videos[0].YouTubeID, videos[1].YouTubeID)
	}

	limited, err := store.RecentActiveVideos(ctx, 1)
	if err != nil {
		t.Fatalf("RecentActiveVideos() error = %v", err)
	}
	if len(limited) != 1 || limited[0].YouTubeID != newest.YouTubeID {
		t.Errorf("limit 1 returned %v, want just the newest", limited)
	}
}

func TestDeleteChannel_RemovesVideos(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	channel := mustCreateChannel(t, store, "UCdelete00000000000001", false)
	other := mustCreateChannel(t, store, "UCdelete00000000000002", false)
	category := &model.Category{ID: 22, Name: "People & Blogs"}
	if err := store.EnsureCategory(ctx, category); err != nil {
		t.Fatalf("EnsureCategory() error = %v", err)
	}

	mustCreateVideo(t, store, channel, category, "delete_0001", time.Now())
	kept := mustCreateVideo(t, store, other, category, "delete_0002", time.Now())

	if err := store.DeleteChannel(ctx, channel.ID); err != nil {
		t.Fatalf("DeleteChannel() error = %v", err)
	}

	if c, err := store.GetChannel(ctx, channel.ID); err != nil || c != nil {
		t.Errorf("GetChannel() = (%v, %v), want channel gone", c, err)
	}
	if v, _ := store.GetVideoByYouTubeID(ctx, "delete_0001"); v != nil {
		t.Error("deleted channel's video survived")
	}
	if v, _ := store.GetVideoByYouTubeID(ctx, kept.YouTubeID); v == nil {
		t.Error("other channel's video was removed")
	}
}

func TestVisibleVideos_ExcludesHiddenChannels(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	visible := mustCreateChannel(t, store, "UCvisible0000000000001", false)
	hidden := mustCreateChannel(t, store, "UChidden00000000000001", true)
	category := &model.Category{ID: 24, Name: "Entertainment"}
	if err := store.EnsureCategory(ctx, category); err != nil {
		t.Fatalf("EnsureCategory() error = %v", err)
	}

	mustCreateVideo(t, store, visible, category, "visible_001", time.Now())
	mustCreateVideo(t, store, hidden, category, "hidden_0001", time.Now())

	videos, err := store.VisibleVideos(ctx, 50, 0)
	if err != nil {
		t.Fatalf("VisibleVideos() error = %v", err)
	}

	for _, v := range videos {
		if v.YouTubeID == "hidden_0001" {
			t.Error("hidden channel's video listed")
		}
	}
	found := false
	for _, v := range videos {
		if v.YouTubeID == "visible_001" {
			found = true
		}
	}
	if !found {
		t.Error("visible channel's video missing")
	}
}

func TestGetByLookup_AbsentReturnsNil(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	if v, err := store.GetVideoByYouTubeID(ctx, "no_such_vid"); err != nil || v != nil {
		t.Errorf("GetVideoByYouTubeID() = (%v, %v), want (nil, nil)", v, err)
	}
	if c, err := store.GetChannelByChannelID(ctx, "UCno_such_channel00001"); err != nil || c != nil {
		t.Errorf("GetChannelByChannelID() = (%v, %v), want (nil, nil)", c, err)
	}
	if c, err := store.GetChannelByAuthor(ctx, "nobody"); err != nil || c != nil {
		t.Errorf("GetChannelByAuthor() = (%v, %v), want (nil, nil)", c, err)
	}
}

func TestSetChannelHidden(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	channel := mustCreateChannel(t, store, "UChide000000000000001", false)

	if err := store.SetChannelHidden(ctx, channel.ID, true); err != nil {
		t.Fatalf("SetChannelHidden() error = %v", err)
	}
	stored, err := store.GetChannel(ctx, channel.ID)
	if err != nil {
		t.Fatalf("GetChannel() error = %v", err)
	}
	if !stored.Hidden {
		t.Error("channel not hidden after SetChannelHidden(true)")
	}

	visible, err := store.VisibleChannels(ctx)
	if err != nil {
		t.Fatalf("VisibleChannels() error = %v", err)
	}
	for _, c := range visible {
		if c.ID == channel.ID {
			t.Error("hidden channel returned by VisibleChannels")
		}
	}
}
