package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/user/ytcatalog-go/internal/config"
	"github.com/user/ytcatalog-go/internal/model"
	"github.com/user/ytcatalog-go/internal/store"
	syncer "github.com/user/ytcatalog-go/internal/sync"
	"github.com/user/ytcatalog-go/internal/youtube"
)

var (
	syncRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ytcatalog_sync_runs_total",
		Help: "Total number of maintenance runs",
	}, []string{"status"})

	videosFetchedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ytcatalog_videos_fetched_total",
		Help: "Total number of videos touched by channel syncs",
	})

	videosDeletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ytcatalog_videos_deleted_total",
		Help: "Total number of videos marked deleted by the sweep",
	})

	syncDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ytcatalog_sync_duration_seconds",
		Help:    "Duration of maintenance runs in seconds",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(syncRunsTotal)
	prometheus.MustRegister(videosFetchedTotal)
	prometheus.MustRegister(videosDeletedTotal)
	prometheus.MustRegister(syncDurationSeconds)
}

// Prober is the liveness probe used by the deletion sweep
type Prober interface {
	CheckThumbnail(ctx context.Context, videoID string) (bool, error)
}

// Scheduler runs the periodic maintenance job: refresh and sync every tracked
// channel, then sweep recent videos for deletions.
type Scheduler struct {
	store   store.Store
	syncer  *syncer.Syncer
	prober  Prober
	config  *config.SyncConfig
	running atomic.Bool
	mu      sync.Mutex // prevents overlapping maintenance runs
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a new scheduler instance
func NewScheduler(st store.Store, sy *syncer.Syncer, prober Prober, cfg *config.SyncConfig) *Scheduler {
	return &Scheduler{
		store:  st,
		syncer: sy,
		prober: prober,
		config: cfg,
		stopCh: make(chan struct{}),
	}
}

// Start begins periodic execution. The first run happens after a short
// initial delay so startup is not serialized behind a full sync.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.config.Enabled {
		log.Info().Msg("Scheduler is disabled")
		return
	}

	s.wg.Add(1)
	go s.run(ctx)
}

// run is the main scheduler loop
func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	initialDelay := 5 * time.Second
	log.Info().Dur("delay", initialDelay).Msg("Scheduler starting with initial delay")

	select {
	case <-time.After(initialDelay):
		s.executeRun(ctx)
	case <-s.stopCh:
		log.Info().Msg("Scheduler stopped during initial delay")
		return
	case <-ctx.Done():
		log.Info().Msg("Scheduler context cancelled during initial delay")
		return
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	log.Info().Dur("interval", s.config.Interval).Msg("Scheduler started periodic execution")

	for {
		select {
		case <-ticker.C:
			s.executeRun(ctx)
		case <-s.stopCh:
			log.Info().Msg("Scheduler stopped")
			return
		case <-ctx.Done():
			log.Info().Msg("Scheduler context cancelled")
			return
		}
	}
}

// executeRun runs a single maintenance pass with overlap protection
func (s *Scheduler) executeRun(ctx context.Context) {
	if !s.mu.TryLock() {
		log.Warn().Msg("Maintenance run already in progress, skipping this trigger")
		return
	}
	defer s.mu.Unlock()

	s.running.Store(true)
	defer s.running.Store(false)

	startTime := time.Now()
	log.Info().Bool("full", s.config.Full).Msg("Starting scheduled maintenance run")

	if err := s.RunOnce(ctx, s.config.Full); err != nil {
		syncRunsTotal.WithLabelValues("error").Inc()
		log.Error().Err(err).Msg("Scheduled maintenance run failed")
	} else {
		syncRunsTotal.WithLabelValues("ok").Inc()
	}

	duration := time.Since(startTime)
	syncDurationSeconds.Observe(duration.Seconds())
	log.Info().Dur("duration", duration).Msg("Scheduled maintenance run completed")
}

// RunOnce executes one maintenance pass: sync all channels, then sweep for
// deleted videos. A channel that still fails after the configured number of
// attempts aborts the whole run; so does any permanent error.
func (s *Scheduler) RunOnce(ctx context.Context, full bool) error {
	if full {
		log.Warn().Msg("Doing full fetch on all channels, this might take a long time")
	}

	channels, err := s.store.ListChannels(ctx)
	if err != nil {
		return err
	}

	if len(channels) == 0 {
		log.Warn().Msg("There are no channels to update")
	}

	for i, channel := range channels {
		log.Info().
			Int("index", i+1).
			Int("total", len(channels)).
			Str("channel", channel.ChannelID).
			Str("title", channel.Title).
			Msg("Fetching channel data")

		channel := channel
		err := s.store.Transaction(ctx, func(tx store.Store) error {
			return s.updateChannel(ctx, tx, channel, full)
		})
		if err != nil {
			return err
		}
	}

	return s.sweepDeleted(ctx)
}

// updateChannel refreshes one channel's metadata and videos with a bounded
// fixed-delay retry. Only network-layer failures are retried; the final
// attempt's failure, and every permanent failure, propagates.
func (s *Scheduler) updateChannel(ctx context.Context, tx store.Store, channel *model.Channel, full bool) error {
	for attempt := 1; ; attempt++ {
		err := s.syncChannel(ctx, tx, channel, full)
		if err == nil {
			return nil
		}

		if !youtube.IsTransient(err) || attempt == s.config.MaxAttempts {
			return err
		}

		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Str("channel", channel.ChannelID).
			Msg("Transient failure fetching channel data, retrying")

		select {
		case <-time.After(s.config.RetryDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// syncChannel is one attempt at a channel's refresh-and-sync
func (s *Scheduler) syncChannel(ctx context.Context, tx store.Store, channel *model.Channel, full bool) error {
	if err := s.syncer.RefreshInfo(ctx, tx, channel, true); err != nil {
		return err
	}

	fetched, err := s.syncer.SyncVideos(ctx, tx, channel, full)
	if err != nil {
		return err
	}

	channel.Updated = time.Now()
	if err := tx.SaveChannel(ctx, channel); err != nil {
		return err
	}

	videosFetchedTotal.Add(float64(fetched))
	log.Info().
		Str("channel", channel.ChannelID).
		Int("fetched", fetched).
		Msg("Fetched videos for channel")
	return nil
}

// sweepDeleted probes the thumbnails of the most recently uploaded videos and
// soft-deletes the ones whose thumbnail is gone. Each mark commits in its own
// transaction, so a later probe failure never rolls back earlier marks.
func (s *Scheduler) sweepDeleted(ctx context.Context) error {
	log.Info().Int("limit", s.config.SweepLimit).Msg("Marking deleted videos as deleted")

	videos, err := s.store.RecentActiveVideos(ctx, s.config.SweepLimit)
	if err != nil {
		return err
	}

	for _, video := range videos {
		alive, err := s.prober.CheckThumbnail(ctx, video.YouTubeID)
		if err != nil {
			return err
		}
		if alive {
			continue
		}

		video := video
		err = s.store.Transaction(ctx, func(tx store.Store) error {
			return tx.MarkVideoDeleted(ctx, video.ID)
		})
		if err != nil {
			return err
		}

		videosDeletedTotal.Inc()
		log.Info().Str("youtube_id", video.YouTubeID).Msg("Marked video as deleted")
	}

	return nil
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	log.Info().Msg("Stopping scheduler...")
	close(s.stopCh)
	s.wg.Wait()
	log.Info().Msg("Scheduler stopped")
}

// IsRunning returns true if a maintenance run is currently in progress
func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

// TryRun attempts to run a maintenance pass immediately.
// Returns false if one is already in progress.
func (s *Scheduler) TryRun(ctx context.Context, full bool) bool {
	if !s.mu.TryLock() {
		return false
	}
	defer s.mu.Unlock()

	s.running.Store(true)
	defer s.running.Store(false)

	startTime := time.Now()
	log.Info().Bool("full", full).Msg("Starting manual maintenance run")

	if err := s.RunOnce(ctx, full); err != nil {
		log.Error().Err(err).Msg("Manual maintenance run failed")
	}

	duration := time.Since(startTime)
	log.Info().Dur("duration", duration).Msg("Manual maintenance run completed")

	return true
}
