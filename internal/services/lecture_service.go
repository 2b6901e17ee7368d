package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"gorm.io/datatypes"

	"github.com/yungbote/lecturegen/internal/data/repos"
	types "github.com/yungbote/lecturegen/internal/domain"
	"github.com/yungbote/lecturegen/internal/modules/lecture"
	"github.com/yungbote/lecturegen/internal/pkg/dbctx"
	"github.com/yungbote/lecturegen/internal/platform/apierr"
	"github.com/yungbote/lecturegen/internal/platform/ctxutil"
	"github.com/yungbote/lecturegen/internal/platform/logger"
	"github.com/yungbote/lecturegen/internal/platform/redis"
)

const (
	maxDurationMinutes = 60
	maxTopicBytes      = 120
)

type SubmitLectureRequest struct {
	Topic           string `json:"topic"`
	Audience        string `json:"audience,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	Prompt          string `json:"prompt,omitempty"`
}

type LectureService interface {
	Submit(ctx context.Context, req SubmitLectureRequest) (*types.LectureRun, error)
	Get(ctx context.Context, id uuid.UUID) (*types.LectureRun, error)
	List(ctx context.Context, filter repos.LectureRunFilter) ([]*types.LectureRun, error)
	PreviewPlan(ctx context.Context, req SubmitLectureRequest) (types.LecturePlan, error)
	Close(ctx context.Context) error
}

// LecturePipeline is the part of lecture.Pipeline the service drives.
type LecturePipeline interface {
	Generate(ctx context.Context, req lecture.Request) (string, types.LecturePlan, error)
	Run(ctx context.Context, req lecture.Request, progress lecture.ProgressFunc) (*lecture.Result, error)
}

type RunEventPublisher interface {
	Publish(ctx context.Context, ev redis.RunEvent) error
}

type LectureServiceConfig struct {
	// RunsDir holds one working directory per run.
	RunsDir           string
	Concurrency       int
	RunTimeout        time.Duration
	KeepIntermediates bool
}

type lectureService struct {
	log      *logger.Logger
	runs     repos.LectureRunRepo
	pipeline LecturePipeline
	events   RunEventPublisher
	cfg      LectureServiceConfig

	sem *semaphore.Weighted
	// mu orders wg.Add in Submit against the shutdown in Close.
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	base   context.Context
	cancel context.CancelFunc
}

func NewLectureService(log *logger.Logger, runs repos.LectureRunRepo, pipeline LecturePipeline, events RunEventPublisher, cfg LectureServiceConfig) (LectureService, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if runs == nil || pipeline == nil {
		return nil, fmt.Errorf("lecture service requires runs repo and pipeline")
	}
	if strings.TrimSpace(cfg.RunsDir) == "" {
		cfg.RunsDir = filepath.Join("output", "runs")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 30 * time.Minute
	}
	base, cancel := context.WithCancel(context.Background())
	return &lectureService{
		log:      log.With("service", "LectureService"),
		runs:     runs,
		pipeline: pipeline,
		events:   events,
		cfg:      cfg,
		sem:      semaphore.NewWeighted(int64(cfg.Concurrency)),
		base:     base,
		cancel:   cancel,
	}, nil
}

func validateSubmit(req SubmitLectureRequest) error {
	if strings.TrimSpace(req.Topic) == "" && strings.TrimSpace(req.Prompt) == "" {
		return apierr.New(http.StatusBadRequest, "missing_topic", errors.New("topic or prompt required"))
	}
	if req.DurationMinutes < 0 || req.DurationMinutes > maxDurationMinutes {
		return apierr.New(http.StatusBadRequest, "invalid_duration", fmt.Errorf("duration_minutes must be between 0 and %d (0 uses the default)", maxDurationMinutes))
	}
	return nil
}

func pipelineRequest(req SubmitLectureRequest, workDir string) lecture.Request {
	d := req.DurationMinutes
	if d == 0 {
		d = 5
	}
	return lecture.Request{
		Topic:           strings.TrimSpace(req.Topic),
		Audience:        strings.TrimSpace(req.Audience),
		DurationMinutes: d,
		Prompt:          strings.TrimSpace(req.Prompt),
		WorkDir:         workDir,
	}
}

// Submit records a queued run and builds it in the background.
func (s *lectureService) Submit(ctx context.Context, req SubmitLectureRequest) (*types.LectureRun, error) {
	ctx = ctxutil.Default(ctx)
	if err := validateSubmit(req); err != nil {
		return nil, err
	}
	if s.isClosed() {
		return nil, errShuttingDown
	}
	preq := pipelineRequest(req, "")
	run := &types.LectureRun{
		Topic:           preq.Topic,
		Audience:        preq.Audience,
		DurationMinutes: preq.DurationMinutes,
		Prompt:          preq.Prompt,
		Status:          types.RunStatusQueued,
		Stage:           types.RunStatusQueued,
	}
	if run.Topic == "" {
		run.Topic = firstLine(preq.Prompt)
	}
	run, err := s.runs.Create(dbctx.Context{Ctx: ctx}, run)
	if err != nil {
		return nil, fmt.Errorf("create lecture run: %w", err)
	}
	s.publish(run.ID, types.RunStatusQueued, types.RunStatusQueued, 0, "")

	preq.WorkDir = filepath.Join(s.cfg.RunsDir, run.ID.String())
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.finish(run.ID, nil, errShuttingDown)
		return nil, errShuttingDown
	}
	s.wg.Add(1)
	s.mu.Unlock()
	go s.execute(run.ID, preq)
	return run, nil
}

var errShuttingDown = apierr.New(http.StatusServiceUnavailable, "shutting_down", errors.New("service is shutting down"))

func (s *lectureService) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *lectureService) execute(id uuid.UUID, req lecture.Request) {
	defer s.wg.Done()
	log := s.log.With("run_id", id.String())

	if err := s.sem.Acquire(s.base, 1); err != nil {
		s.finish(id, nil, fmt.Errorf("run not started: %w", err))
		return
	}
	defer s.sem.Release(1)

	ctx, cancel := context.WithTimeout(s.base, s.cfg.RunTimeout)
	defer cancel()
	ctx = ctxutil.WithTraceData(ctx, &ctxutil.TraceData{RequestID: id.String()})

	now := time.Now().UTC()
	if err := s.runs.UpdateFields(dbctx.Context{Ctx: ctx}, id, map[string]interface{}{
		"status":     types.RunStatusRunning,
		"started_at": now,
	}); err != nil {
		log.Warn("mark run running failed", "error", err)
	}

	log.Info("lecture run started", "topic", req.Topic, "work_dir", req.WorkDir)
	res, err := s.pipeline.Run(ctx, req, func(stage string, progress int) {
		if uErr := s.runs.UpdateFields(dbctx.Context{Ctx: ctx}, id, map[string]interface{}{"stage": stage}); uErr != nil {
			log.Warn("update run stage failed", "stage", stage, "error", uErr)
		}
		s.publish(id, types.RunStatusRunning, stage, progress, "")
	})
	if err == nil && !s.cfg.KeepIntermediates {
		if cErr := lecture.CleanupIntermediates(res); cErr != nil {
			log.Warn("cleanup intermediates failed", "error", cErr)
		}
	}
	s.finish(id, res, err)
}

func (s *lectureService) finish(id uuid.UUID, res *lecture.Result, runErr error) {
	// The run context may already be cancelled; record the outcome regardless.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	updates := map[string]interface{}{
		"finished_at": time.Now().UTC(),
	}
	if res != nil && len(res.Plan.Slides) > 0 {
		if raw, err := lecture.PlanJSON(res.Plan); err == nil {
			updates["plan"] = datatypes.JSON(raw)
		}
	}
	status, stage, msg := types.RunStatusSucceeded, lecture.StageDone, ""
	if runErr != nil {
		status, stage, msg = types.RunStatusFailed, types.RunStatusFailed, runErr.Error()
		updates["error"] = msg
		s.log.Error("lecture run failed", "run_id", id.String(), "error", runErr, "kind", lecture.KindOf(runErr).String())
	} else if res != nil && res.Artifact != nil {
		updates["video_path"] = res.Artifact.LocalPath
		updates["cloud_url"] = res.Artifact.CloudURL
		s.log.Info("lecture run succeeded", "run_id", id.String(), "video", res.Artifact.LocalPath)
	}
	updates["status"] = status
	updates["stage"] = stage

	if err := s.runs.UpdateFields(dbctx.Context{Ctx: ctx}, id, updates); err != nil {
		s.log.Error("record run outcome failed", "run_id", id.String(), "error", err)
	}
	progress := 100
	if runErr != nil {
		progress = 0
	}
	s.publish(id, status, stage, progress, msg)
}

func (s *lectureService) publish(id uuid.UUID, status, stage string, progress int, msg string) {
	if s.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.events.Publish(ctx, redis.RunEvent{
		RunID:    id.String(),
		Status:   status,
		Stage:    stage,
		Progress: progress,
		Error:    msg,
	}); err != nil {
		s.log.Debug("publish run event failed", "run_id", id.String(), "error", err)
	}
}

func (s *lectureService) Get(ctx context.Context, id uuid.UUID) (*types.LectureRun, error) {
	run, err := s.runs.GetByID(dbctx.Context{Ctx: ctxutil.Default(ctx)}, id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, apierr.New(http.StatusNotFound, "lecture_not_found", fmt.Errorf("lecture run %s not found", id))
	}
	return run, nil
}

func (s *lectureService) List(ctx context.Context, filter repos.LectureRunFilter) ([]*types.LectureRun, error) {
	return s.runs.List(dbctx.Context{Ctx: ctxutil.Default(ctx)}, filter)
}

// PreviewPlan runs only content generation. It never fails on backend
// trouble: the fallback plans come back instead.
func (s *lectureService) PreviewPlan(ctx context.Context, req SubmitLectureRequest) (types.LecturePlan, error) {
	if err := validateSubmit(req); err != nil {
		return types.LecturePlan{}, err
	}
	_, plan, err := s.pipeline.Generate(ctxutil.Default(ctx), pipelineRequest(req, ""))
	if err != nil {
		return plan, apierr.New(http.StatusBadGateway, "plan_generation_failed", err)
	}
	return plan, nil
}

// Close stops accepting runs, cancels in-flight ones and waits for them to
// record their outcome.
func (s *lectureService) Close(ctx context.Context) error {
	ctx = ctxutil.Default(ctx)
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > maxTopicBytes {
		n := maxTopicBytes
		for n > 0 && !utf8.RuneStart(s[n]) {
			n--
		}
		s = s[:n]
	}
	return s
}

// EnsureRunsDir creates the directory runs are written under.
func EnsureRunsDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
