package qa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/snt-portal/snt-portal/internal/rbac"
)

const (
	// reportTTL keeps finished reports around long enough for ops to read
	// them.
	reportTTL = 7 * 24 * time.Hour
	// runLockKey serialises full runs: two engines walking the matrix at once
	// would trip the rate limiter and fail each other.
	runLockKey = "qa:full_run:lock"
	runLockTTL = 15 * time.Minute
)

// ErrRunInProgress indicates another full run currently holds the lock.
var ErrRunInProgress = errors.New("qa full run already in progress")

// HealthResult is the health-check component of a full run.
type HealthResult struct {
	OK         bool `json:"ok"`
	HTTPStatus int  `json:"httpStatus"`
}

// Report is the persisted result of a full QA run.
type Report struct {
	ID         string         `json:"id"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Health     HealthResult   `json:"health"`
	Matrix     *MatrixReport  `json:"matrix"`
	DeadEnds   []DeadEndIssue `json:"deadEnds"`
	Smoke      []SmokeIssue   `json:"smoke"`
	// Pass requires health OK and zero issues in every component; the
	// itemized counts below are for diagnosis.
	Pass           bool `json:"pass"`
	MatrixMismatch int  `json:"matrixMismatches"`
	DeadEndCount   int  `json:"deadEndCount"`
	SmokeCount     int  `json:"smokeCount"`
}

// ReportStore persists QA reports keyed by report id.
type ReportStore struct {
	client *redis.Client
}

// NewReportStore constructs a ReportStore.
func NewReportStore(client *redis.Client) *ReportStore {
	return &ReportStore{client: client}
}

// ErrReportNotFound indicates no report under the given id.
var ErrReportNotFound = errors.New("qa report not found")

// Save persists a report as JSON.
func (s *ReportStore) Save(ctx context.Context, report *Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(report.ID), data, reportTTL).Err()
}

// Get loads a report by id.
func (s *ReportStore) Get(ctx context.Context, id string) (*Report, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *ReportStore) key(id string) string {
	return "qa:report:" + id
}

// Builder composes the full QA run: health check, access matrix, dead-end
// scan and smoke scan, rolled up into one persisted report.
type Builder struct {
	engine *Engine
	store  *ReportStore
	logger *slog.Logger
}

// NewBuilder constructs a Builder.
func NewBuilder(engine *Engine, store *ReportStore, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{engine: engine, store: store, logger: logger}
}

// NewReportID generates a report id for an enqueued run.
func NewReportID() string {
	return uuid.NewString()
}

// Run executes the full QA suite and persists the report under id.
func (b *Builder) Run(ctx context.Context, id string) (*Report, error) {
	if id == "" {
		id = NewReportID()
	}
	if b.store != nil {
		acquired, err := b.store.client.SetNX(ctx, runLockKey, id, runLockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("qa: acquire run lock: %w", err)
		}
		if !acquired {
			return nil, ErrRunInProgress
		}
		defer b.store.client.Del(context.WithoutCancel(ctx), runLockKey)
	}
	report := &Report{ID: id, StartedAt: time.Now()}

	report.Health = b.checkHealth(ctx)

	matrix, err := b.engine.RunMatrix(ctx, DefaultRoutes())
	if err != nil {
		return nil, fmt.Errorf("qa: matrix run: %w", err)
	}
	report.Matrix = matrix
	report.MatrixMismatch = matrix.Mismatches

	// The dead-end scan walks deep pages, so it runs with an admin session;
	// the smoke scan is anonymous on purpose.
	adminCookie, _, err := b.engine.sessionFor(ctx, rbac.RoleAdmin)
	if err != nil {
		b.logger.Warn("dead-end scan without session", slog.Any("error", err))
	}
	deadEnds, err := b.engine.ScanDeadEnds(ctx, CriticalRoutes(), adminCookie)
	if err != nil {
		return nil, fmt.Errorf("qa: dead-end scan: %w", err)
	}
	report.DeadEnds = deadEnds
	report.DeadEndCount = len(deadEnds)

	smoke, err := b.engine.ScanSmoke(ctx, CriticalRoutes())
	if err != nil {
		return nil, fmt.Errorf("qa: smoke scan: %w", err)
	}
	report.Smoke = smoke
	report.SmokeCount = len(smoke)

	report.FinishedAt = time.Now()
	report.Pass = report.Health.OK && report.MatrixMismatch == 0 && report.DeadEndCount == 0 && report.SmokeCount == 0

	if b.store != nil {
		if err := b.store.Save(ctx, report); err != nil {
			return nil, fmt.Errorf("qa: persist report: %w", err)
		}
	}
	return report, nil
}

func (b *Builder) checkHealth(ctx context.Context) HealthResult {
	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, b.engine.baseURL+"/healthz", nil)
	if err != nil {
		return HealthResult{}
	}
	resp, err := b.engine.client.Do(req)
	if err != nil {
		return HealthResult{}
	}
	defer resp.Body.Close()
	return HealthResult{OK: resp.StatusCode == http.StatusOK, HTTPStatus: resp.StatusCode}
}

// Engine exposes the underlying engine; the worker wires it at startup.
func (b *Builder) Engine() *Engine {
	return b.engine
}
