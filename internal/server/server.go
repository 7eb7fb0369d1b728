package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/user/ytcatalog-go/internal/model"
	"github.com/user/ytcatalog-go/internal/store"
	syncer "github.com/user/ytcatalog-go/internal/sync"
	"github.com/user/ytcatalog-go/internal/youtube"
)

var (
	videosTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ytcatalog_videos_total",
		Help: "Total number of non-deleted videos in database",
	})

	channelOpsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ytcatalog_channel_ops_total",
		Help: "Total number of operator channel actions",
	}, []string{"op"})
)

func init() {
	prometheus.MustRegister(videosTotal)
	prometheus.MustRegister(channelOpsTotal)
}

// Validator is the slice of the API client used to vet operator input
type Validator interface {
	ChannelIDForAuthor(ctx context.Context, author string) (string, error)
	ChannelExists(ctx context.Context, channelID string) (bool, error)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Uptime   string `json:"uptime"`
}

// Server handles the operator API plus health checks and metrics
type Server struct {
	store     store.Store
	syncer    *syncer.Syncer
	validator Validator
	router    *http.ServeMux
	server    *http.Server
	startTime time.Time
}

// NewServer creates a new HTTP server instance
func NewServer(st store.Store, sy *syncer.Syncer, validator Validator) *Server {
	s := &Server{
		store:     st,
		syncer:    sy,
		validator: validator,
		router:    http.NewServeMux(),
		startTime: time.Now(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.Handle("GET /metrics", s.metricsHandler())

	s.router.HandleFunc("GET /api/videos", s.handleListVideos)
	s.router.HandleFunc("GET /api/channels", s.handleListChannels)
	s.router.HandleFunc("GET /api/channels/{id}/videos", s.handleChannelVideos)
	s.router.HandleFunc("POST /api/channels", s.handleAddChannel)
	s.router.HandleFunc("POST /api/channels/{id}/hidden", s.handleToggleHidden)
	s.router.HandleFunc("DELETE /api/channels/{id}", s.handleDeleteChannel)
	s.router.HandleFunc("POST /api/channels/{id}/sync", s.handleSyncChannel)
}

// Start begins listening on the specified port
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute, // manual full syncs are slow
		IdleTimeout:  60 * time.Second,
	}

	log.Info().Int("port", port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	log.Info().Msg("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// metricsHandler refreshes the video gauge before serving the registry
func (s *Server) metricsHandler() http.Handler {
	promHandler := promhttp.Handler()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if count, err := s.store.CountVideos(r.Context()); err == nil {
			videosTotal.Set(float64(count))
		}
		promHandler.ServeHTTP(w, r)
	})
}

// handleHealth handles the /health endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dbStatus := "healthy"
	if err := s.store.Ping(ctx); err != nil {
		dbStatus = fmt.Sprintf("unhealthy: %v", err)
	}

	uptime := time.Since(s.startTime).Round(time.Second).String()

	status := "healthy"
	if dbStatus != "healthy" {
		status = "unhealthy"
	}

	response := HealthResponse{
		Status:   status,
		Database: dbStatus,
		Uptime:   uptime,
	}

	w.Header().Set("Content-Type", "application/json")
	if status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Error().Err(err).Msg("Failed to encode health response")
	}
}

// channelResponse is the operator-facing view of a channel
type channelResponse struct {
	ID        uint      `json:"id"`
	ChannelID string    `json:"channelid"`
	Author    *string   `json:"author"`
	Title     string    `json:"title"`
	Thumbnail string    `json:"thumbnail"`
	Hidden    bool      `json:"hidden"`
	Updated   time.Time `json:"updated"`
	URL       string    `json:"url,omitempty"`
}

func toChannelResponse(c *model.Channel) channelResponse {
	return channelResponse{
		ID:        c.ID,
		ChannelID: c.ChannelID,
		Author:    c.Author,
		Title:     c.Title,
		Thumbnail: c.Thumbnail,
		Hidden:    c.Hidden,
		Updated:   c.Updated,
		URL:       c.URL(),
	}
}

// videoResponse is the operator-facing view of a video
type videoResponse struct {
	YouTubeID     string    `json:"youtubeid"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Duration      int       `json:"duration"`
	Category      int       `json:"category"`
	ViewCount     *int64    `json:"view_count"`
	FavoriteCount *int64    `json:"favorite_count"`
	Uploaded      time.Time `json:"uploaded"`
	Updated       time.Time `json:"updated"`
	URL           string    `json:"url"`
}

func toVideoResponses(videos []*model.Video) []videoResponse {
	out := make([]videoResponse, 0, len(videos))
	for _, v := range videos {
		out = append(out, videoResponse{
			YouTubeID:     v.YouTubeID,
			Title:         v.Title,
			Description:   v.Description,
			Duration:      v.Duration,
			Category:      v.CategoryRef,
			ViewCount:     v.ViewCount,
			FavoriteCount: v.FavoriteCount,
			Uploaded:      v.Uploaded,
			Updated:       v.Updated,
			URL:           v.WatchURL(),
		})
	}
	return out
}

// handleListVideos serves non-deleted videos of visible channels, newest first
func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	if limit > 200 {
		limit = 200
	}

	videos, err := s.store.VisibleVideos(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, toVideoResponses(videos))
}

// handleListChannels serves the full channel list, visible channels first
func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := s.store.ListChannels(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	out := make([]channelResponse, 0, len(channels))
	for _, c := range channels {
		out = append(out, toChannelResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleChannelVideos serves one channel's non-deleted videos
func (s *Server) handleChannelVideos(w http.ResponseWriter, r *http.Request) {
	channel, ok := s.channelFromPath(w, r)
	if !ok {
		return
	}

	videos, err := s.store.VideosForChannel(r.Context(), channel.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, toVideoResponses(videos))
}

type addChannelRequest struct {
	Channel string `json:"channel"`
}

// handleAddChannel validates and registers a new channel, then runs an
// immediate fast sync. Interactive, so no retrying: a flaky API call surfaces
// straight back to the operator.
func (s *Server) handleAddChannel(w http.ResponseWriter, r *http.Request) {
	var req addChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Channel == "" {
		writeErrorMsg(w, http.StatusBadRequest, "missing channel")
		return
	}
	ctx := r.Context()

	input := NormalizeChannelInput(req.Channel)

	var channel *model.Channel
	if LooksLikeChannelID(input) {
		existing, err := s.store.GetChannelByChannelID(ctx, input)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if existing != nil {
			writeErrorMsg(w, http.StatusConflict,
				fmt.Sprintf("channel already exists under the title: %s", existing.Title))
			return
		}

		exists, err := s.validator.ChannelExists(ctx, input)
		if err != nil {
			writeError(w, http.StatusBadGateway, err)
			return
		}
		if !exists {
			writeErrorMsg(w, http.StatusUnprocessableEntity,
				fmt.Sprintf("channel does not seem to exist: %s", input))
			return
		}
		channel = &model.Channel{ChannelID: input}
	} else {
		existing, err := s.store.GetChannelByAuthor(ctx, input)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if existing != nil {
			writeErrorMsg(w, http.StatusConflict,
				fmt.Sprintf("channel already exists under the title: %s", existing.Title))
			return
		}

		channelID, err := s.validator.ChannelIDForAuthor(ctx, input)
		if err != nil {
			writeError(w, http.StatusBadGateway, err)
			return
		}
		if channelID == "" {
			writeErrorMsg(w, http.StatusUnprocessableEntity,
				fmt.Sprintf("channel does not seem to exist: %s", input))
			return
		}
		author := input
		channel = &model.Channel{ChannelID: channelID, Author: &author}
	}

	if err := s.store.CreateChannel(ctx, channel); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if err := s.syncer.RefreshInfo(ctx, s.store, channel, true); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	if _, err := s.syncer.SyncVideos(ctx, s.store, channel, false); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}

	channelOpsTotal.WithLabelValues("add").Inc()
	log.Info().Str("channel", channel.ChannelID).Str("title", channel.Title).Msg("Added channel")
	writeJSON(w, http.StatusCreated, toChannelResponse(channel))
}

// handleToggleHidden flips a channel's visibility flag
func (s *Server) handleToggleHidden(w http.ResponseWriter, r *http.Request) {
	channel, ok := s.channelFromPath(w, r)
	if !ok {
		return
	}

	if err := s.store.SetChannelHidden(r.Context(), channel.ID, !channel.Hidden); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	channel.Hidden = !channel.Hidden

	channelOpsTotal.WithLabelValues("toggle_hidden").Inc()
	log.Info().Str("channel", channel.ChannelID).Bool("hidden", channel.Hidden).Msg("Changed channel visibility")
	writeJSON(w, http.StatusOK, toChannelResponse(channel))
}

// handleDeleteChannel removes a channel and all of its videos
func (s *Server) handleDeleteChannel(w http.ResponseWriter, r *http.Request) {
	channel, ok := s.channelFromPath(w, r)
	if !ok {
		return
	}

	if err := s.store.DeleteChannel(r.Context(), channel.ID); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	channelOpsTotal.WithLabelValues("delete").Inc()
	log.Info().Str("channel", channel.ChannelID).Str("title", channel.Title).Msg("Removed channel")
	w.WriteHeader(http.StatusNoContent)
}

type syncResponse struct {
	Fetched int  `json:"fetched"`
	Full    bool `json:"full"`
}

// handleSyncChannel triggers an immediate fast or full sync for one channel.
// Interactive, so no retrying.
func (s *Server) handleSyncChannel(w http.ResponseWriter, r *http.Request) {
	channel, ok := s.channelFromPath(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	full := r.URL.Query().Get("full") == "1" || r.URL.Query().Get("full") == "true"

	var fetched int
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		if err := s.syncer.RefreshInfo(ctx, tx, channel, true); err != nil {
			return err
		}
		n, err := s.syncer.SyncVideos(ctx, tx, channel, full)
		if err != nil {
			return err
		}
		fetched = n
		channel.Updated = time.Now()
		return tx.SaveChannel(ctx, channel)
	})
	if err != nil {
		if errors.Is(err, youtube.ErrNotFound) {
			writeErrorMsg(w, http.StatusUnprocessableEntity,
				fmt.Sprintf("channel does not seem to exist: %s", channel.ChannelID))
			return
		}
		writeError(w, http.StatusBadGateway, err)
		return
	}

	channelOpsTotal.WithLabelValues("sync").Inc()
	writeJSON(w, http.StatusOK, syncResponse{Fetched: fetched, Full: full})
}

// channelFromPath loads the channel named by the {id} path segment, writing
// an error response when it cannot
func (s *Server) channelFromPath(w http.ResponseWriter, r *http.Request) (*model.Channel, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid channel id")
		return nil, false
	}

	channel, err := s.store.GetChannel(r.Context(), uint(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return nil, false
	}
	if channel == nil {
		writeErrorMsg(w, http.StatusNotFound, "channel not found")
		return nil, false
	}
	return channel, true
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	log.Error().Err(err).Msg("Request failed")
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeErrorMsg(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// GetUptime returns the server uptime
func (s *Server) GetUptime() time.Duration {
	return time.Since(s.startTime)
}
