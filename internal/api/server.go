package api

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/david/fundscout/internal/db"
	"github.com/david/fundscout/internal/discover"
	"github.com/david/fundscout/internal/feedback"
	"github.com/david/fundscout/internal/models"
	"github.com/david/fundscout/internal/scoring"
)

// Server exposes the engine over HTTP. Reads are public; anything that
// triggers spend or mutates state sits behind the admin secret.
type Server struct {
	Echo   *echo.Echo
	Store  *db.Store
	Runner *discover.Runner
	Loop   *feedback.Loop
	Log    *zap.Logger

	adminSecret string

	jobMu      sync.Mutex
	runningJob *backgroundJob
}

// backgroundJob tracks one in-flight discovery run. Only one runs at a time;
// a second trigger while busy is rejected rather than queued.
type backgroundJob struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"` // running, completed, failed
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
	Result    any       `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
}

type Config struct {
	AdminSecret string
	CORSOrigins []string
}

func NewServer(store *db.Store, runner *discover.Runner, loop *feedback.Loop, cfg Config, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:4200"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Admin-Secret"},
	}))

	secret := strings.TrimSpace(cfg.AdminSecret)
	if secret == "" {
		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err == nil {
			secret = base64.RawURLEncoding.EncodeToString(buf)
			log.Warn("admin secret not configured; using ephemeral in-memory fallback")
		}
	}

	s := &Server{
		Echo:        e,
		Store:       store,
		Runner:      runner,
		Loop:        loop,
		Log:         log,
		adminSecret: secret,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)

	api := s.Echo.Group("/api/v1")
	api.GET("/records", s.handleListRecords)
	api.GET("/records/:id", s.handleGetRecord)
	api.GET("/matches", s.handleListMatches)
	api.GET("/sources", s.handleGetSources)
	api.GET("/feedback/accuracy", s.handleAccuracy)
	api.GET("/jobs/current", s.handleCurrentJob)

	admin := api.Group("")
	admin.Use(s.adminMiddleware)
	admin.POST("/discover/:source", s.handleDiscoverSource)
	admin.POST("/discover/all", s.handleDiscoverAll)
	admin.POST("/records/:id/feedback", s.handleFeedback)
	admin.POST("/rescore", s.handleRescore)
	admin.POST("/profile", s.handleSaveProfile)
}

// Start blocks serving HTTP until Shutdown.
func (s *Server) Start(addr string) error {
	return s.Echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.adminSecret == "" {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "server admin configuration error"})
		}
		if c.Request().Header.Get("X-Admin-Secret") == s.adminSecret {
			return next(c)
		}
		authHeader := c.Request().Header.Get("Authorization")
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") && authHeader[7:] == s.adminSecret {
			return next(c)
		}
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized admin access"})
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListRecords(c echo.Context) error {
	params := db.ListParams{
		Source:    c.QueryParam("source"),
		SinceDays: intParam(c, "since_days", 0),
		Limit:     intParam(c, "limit", 100),
		Offset:    intParam(c, "offset", 0),
	}
	records, err := s.Store.ListRecords(c.Request().Context(), params)
	if err != nil {
		s.Log.Error("listing records failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list records"})
	}
	return c.JSON(http.StatusOK, map[string]any{"records": records, "count": len(records)})
}

func (s *Server) handleGetRecord(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid record id"})
	}
	rec, err := s.Store.GetRecord(c.Request().Context(), id)
	if err == db.ErrNotFound {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "record not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load record"})
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) handleListMatches(c echo.Context) error {
	ctx := c.Request().Context()
	profile, err := s.Store.ActiveProfile(ctx)
	if err == db.ErrNotFound {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no organization profile configured"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load profile"})
	}

	matches, err := s.Store.ListScoredMatches(ctx, profile.ID,
		intParam(c, "min_score", 0), intParam(c, "limit", 50))
	if err != nil {
		s.Log.Error("listing matches failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list matches"})
	}
	return c.JSON(http.StatusOK, map[string]any{"matches": matches, "count": len(matches)})
}

func (s *Server) handleGetSources(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Runner.Registry.Sources)
}

func (s *Server) handleAccuracy(c echo.Context) error {
	events, err := s.Store.ListFeedback(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to read feedback log"})
	}
	return c.JSON(http.StatusOK, feedback.ComputeAccuracy(events))
}

func (s *Server) handleDiscoverSource(c echo.Context) error {
	src := s.Runner.Registry.Get(c.Param("source"))
	if src == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown source"})
	}
	return s.startJob(c, "discover:"+src.ID, func(ctx context.Context, profile models.OrgProfile) any {
		return s.Runner.RunSource(ctx, *src, profile)
	})
}

func (s *Server) handleDiscoverAll(c echo.Context) error {
	return s.startJob(c, "discover:all", func(ctx context.Context, profile models.OrgProfile) any {
		return s.Runner.RunAll(ctx, profile)
	})
}

// startJob launches a discovery run in the background and answers 202 with
// the job id. Runs always produce a structured result, so job Result is a
// summary (or summaries) even under partial failure.
func (s *Server) startJob(c echo.Context, name string, run func(context.Context, models.OrgProfile) any) error {
	profile, err := s.Store.ActiveProfile(c.Request().Context())
	if err != nil && err != db.ErrNotFound {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load profile"})
	}

	s.jobMu.Lock()
	if s.runningJob != nil && s.runningJob.Status == "running" {
		job := *s.runningJob
		s.jobMu.Unlock()
		return c.JSON(http.StatusConflict, map[string]any{"error": "a job is already running", "job": job})
	}
	job := &backgroundJob{
		ID:        name + "-" + uuid.NewString()[:8],
		Status:    "running",
		StartedAt: time.Now().UTC(),
	}
	s.runningJob = job
	s.jobMu.Unlock()

	go func() {
		result := run(context.Background(), profile)
		s.jobMu.Lock()
		job.Status = "completed"
		job.Result = result
		job.EndedAt = time.Now().UTC()
		s.jobMu.Unlock()
	}()

	return c.JSON(http.StatusAccepted, job)
}

func (s *Server) handleCurrentJob(c echo.Context) error {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	if s.runningJob == nil {
		return c.JSON(http.StatusOK, map[string]string{"status": "idle"})
	}
	return c.JSON(http.StatusOK, s.runningJob)
}

type feedbackRequest struct {
	Action         string `json:"action"`
	PredictedScore int    `json:"predicted_score"`
	Note           string `json:"note"`
}

func (s *Server) handleFeedback(c echo.Context) error {
	recordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid record id"})
	}
	var req feedbackRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid body"})
	}

	signal, err := s.Loop.Record(c.Request().Context(), recordID, req.PredictedScore,
		models.FeedbackAction(req.Action), req.Note)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	resp := map[string]any{"recorded": true}
	if signal != nil {
		resp["revision_signal"] = signal
	}
	return c.JSON(http.StatusOK, resp)
}

type rescoreRequest struct {
	SinceDays int  `json:"since_days"`
	Force     bool `json:"force"`
	DryRun    bool `json:"dry_run"`
}

type RescoreResult struct {
	Considered int  `json:"considered"`
	Filtered   int  `json:"filtered"`
	Scored     int  `json:"scored"`
	Saved      int  `json:"saved"`
	Errored    int  `json:"errored"`
	DryRun     bool `json:"dry_run"`
}

func (s *Server) handleRescore(c echo.Context) error {
	var req rescoreRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid body"})
	}
	ctx := c.Request().Context()

	profile, err := s.Store.ActiveProfile(ctx)
	if err == db.ErrNotFound {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no organization profile configured"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load profile"})
	}

	resp, err := Rescore(ctx, s.Store, s.Runner.Pipeline, profile, RescoreParams{
		SinceDays: req.SinceDays,
		Force:     req.Force,
		DryRun:    req.DryRun,
	}, s.Log)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSaveProfile(c echo.Context) error {
	var profile models.OrgProfile
	if err := c.Bind(&profile); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid body"})
	}
	id, err := s.Store.SaveProfile(c.Request().Context(), profile)
	if err != nil {
		s.Log.Error("saving profile failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to save profile"})
	}
	return c.JSON(http.StatusOK, map[string]any{"id": id})
}

// RescoreParams select which records a batch re-score touches.
type RescoreParams struct {
	SinceDays int
	Force     bool // also re-score records that already have a stored score
	DryRun    bool
}

// Rescore runs the pre-filter and scorer over stored records. Shared by the
// HTTP handler and the batch CLI.
func Rescore(ctx context.Context, store *db.Store, pipeline *scoring.Pipeline, profile models.OrgProfile, params RescoreParams, log *zap.Logger) (RescoreResult, error) {
	if log == nil {
		log = zap.NewNop()
	}
	listParams := db.ListParams{SinceDays: params.SinceDays, Limit: 1000}
	if !params.Force {
		unscored := false
		listParams.HasScore = &unscored
	}

	records, err := store.ListRecords(ctx, listParams)
	if err != nil {
		return RescoreResult{}, err
	}

	resp := RescoreResult{Considered: len(records), DryRun: params.DryRun}
	results := pipeline.ScoreBatch(ctx, profile, records)
	for _, res := range results {
		switch {
		case res.Filtered, res.Excluded:
			resp.Filtered++
			continue
		case res.Err != nil:
			resp.Errored++
			continue
		}
		resp.Scored++
		if params.DryRun {
			continue
		}
		if err := store.UpsertScore(ctx, res.Record.ID, profile.ID, res.Breakdown); err != nil {
			log.Error("persisting rescored match failed",
				zap.String("record", res.Record.DedupKey()), zap.Error(err))
			resp.Errored++
			continue
		}
		resp.Saved++
	}
	return resp, nil
}

func intParam(c echo.Context, name string, fallback int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
