package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rthallapally/AI-Research-Agent/pkg/graph"
	"github.com/rthallapally/AI-Research-Agent/pkg/research"
)

var (
	// ErrBusy is returned when a run is requested while another is in progress.
	ErrBusy = errors.New("a research run is already in progress")
	// ErrNotFound is returned for unknown run ids and runs without a graph.
	ErrNotFound = errors.New("research run not found")
)

// DB is the subset of a pgx pool the service uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PipelineFactory builds a pipeline whose components log to logger.
type PipelineFactory func(logger *slog.Logger) (*research.Pipeline, error)

// Service records research runs and executes them in the background, one at
// a time.
type Service struct {
	db          DB
	newPipeline PipelineFactory
	logger      *slog.Logger
	gate        chan struct{}
	wg          sync.WaitGroup
}

func NewService(db DB, newPipeline PipelineFactory, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:          db,
		newPipeline: newPipeline,
		logger:      logger,
		gate:        make(chan struct{}, 1),
	}
}

type Run struct {
	ID        uuid.UUID `json:"id"`
	Query     string    `json:"query"`
	Status    string    `json:"status"`
	Stage     *string   `json:"stage,omitempty"`
	Report    *string   `json:"report,omitempty"`
	Error     *string   `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type StartRunRequest struct {
	Query string `json:"query" binding:"required"`
	Graph bool   `json:"graph"`
}

// StartRun records a pending run and starts it. It returns ErrBusy without
// touching the database when a run is already executing.
func (s *Service) StartRun(ctx context.Context, req StartRunRequest) (*Run, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, &research.ValidationError{Field: "query", Reason: "must not be empty"}
	}

	select {
	case s.gate <- struct{}{}:
	default:
		return nil, ErrBusy
	}

	run := &Run{}
	err := s.db.QueryRow(ctx, `
		INSERT INTO research_runs (id, query, status)
		VALUES ($1, $2, 'pending')
		RETURNING id, query, status, created_at, updated_at
	`, uuid.New(), query).Scan(&run.ID, &run.Query, &run.Status, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		<-s.gate
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	s.wg.Add(1)
	go s.execute(run.ID, query, req.Graph)

	return run, nil
}

// Wait blocks until the background run, if any, has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

const runColumns = "id, query, status, stage, report, error, created_at, updated_at"

func (s *Service) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	run := &Run{}
	err := s.db.QueryRow(ctx, "SELECT "+runColumns+" FROM research_runs WHERE id = $1", id).Scan(
		&run.ID, &run.Query, &run.Status, &run.Stage, &run.Report, &run.Error, &run.CreatedAt, &run.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

func (s *Service) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.Query(ctx, "SELECT "+runColumns+" FROM research_runs ORDER BY created_at DESC LIMIT 50")
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.Query, &run.Status, &run.Stage, &run.Report, &run.Error, &run.CreatedAt, &run.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type LogEntry struct {
	ID        int             `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata"`
}

func (s *Service) GetRunLogs(ctx context.Context, runID uuid.UUID) ([]LogEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, timestamp, level, message, metadata
		FROM research_logs
		WHERE run_id = $1
		ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get logs: %w", err)
	}
	defer rows.Close()

	var logs []LogEntry
	for rows.Next() {
		var l LogEntry
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Level, &l.Message, &l.Metadata); err != nil {
			return nil, fmt.Errorf("failed to scan log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// GetRunGraph returns the stored graph artifact of a completed run.
func (s *Service) GetRunGraph(ctx context.Context, runID uuid.UUID) (json.RawMessage, error) {
	var raw []byte
	err := s.db.QueryRow(ctx, "SELECT graph FROM research_runs WHERE id = $1", runID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get graph: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrNotFound
	}
	return raw, nil
}

func (s *Service) execute(runID uuid.UUID, query string, withGraph bool) {
	defer s.wg.Done()
	defer func() { <-s.gate }()

	ctx := context.Background()
	runLogger := slog.New(NewDBLogHandler(s.db, runID, s.logger.Handler()))

	_, _ = s.db.Exec(ctx, "UPDATE research_runs SET status = 'running', updated_at = NOW() WHERE id = $1", runID)

	p, err := s.newPipeline(runLogger)
	if err != nil {
		s.failRun(ctx, runLogger, runID, fmt.Errorf("failed to init pipeline: %w", err))
		return
	}
	p.Logger = runLogger

	p.OnStage = func(stage research.Stage, state research.ResearchState) {
		stateJSON, err := json.Marshal(state)
		if err != nil {
			runLogger.Error("Failed to marshal state", "error", err)
			return
		}
		_, err = s.db.Exec(ctx,
			"UPDATE research_runs SET stage = $2, state = $3, updated_at = NOW() WHERE id = $1",
			runID, stage.String(), stateJSON)
		if err != nil {
			runLogger.Error("Failed to save state to DB", "stage", stage.String(), "error", err)
		}
	}

	final, err := p.Run(ctx, query)
	if err != nil {
		s.failRun(ctx, runLogger, runID, fmt.Errorf("research failed: %w", err))
		return
	}

	var graphJSON []byte
	if withGraph {
		g, err := p.BuildGraph(ctx, final)
		if err != nil {
			runLogger.Error("Failed to save knowledge graph", "error", err)
		}
		if graphJSON, err = graph.Marshal(g); err != nil {
			runLogger.Error("Failed to marshal knowledge graph", "error", err)
			graphJSON = nil
		}
	}

	_, err = s.db.Exec(ctx,
		"UPDATE research_runs SET status = 'completed', report = $2, graph = $3, updated_at = NOW() WHERE id = $1",
		runID, final.Report, graphJSON)
	if err != nil {
		runLogger.Error("Failed to save final report to DB", "error", err)
	}
}

func (s *Service) failRun(ctx context.Context, logger *slog.Logger, runID uuid.UUID, cause error) {
	logger.Error("Research run failed", "error", cause)
	_, _ = s.db.Exec(ctx,
		"UPDATE research_runs SET status = 'failed', error = $2, updated_at = NOW() WHERE id = $1",
		runID, cause.Error())
}
