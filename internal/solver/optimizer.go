package solver

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dragonseats/optimizer/config"
	"github.com/dragonseats/optimizer/internal/model"
	"github.com/dragonseats/optimizer/pkg/geo"
)

// WeekStore loads solver inputs from the tabular store.
type WeekStore interface {
	LoadWeekData(ctx context.Context, seasonYear, weekNumber int) (*model.WeekData, error)
	LoadNextWeekSchedule(ctx context.Context, seasonYear, weekNumber int) ([]model.Game, map[string]*model.Venue, error)
}

// RunWriter persists optimization runs and their trips.
type RunWriter interface {
	CreateRun(ctx context.Context, seasonYear, weekNumber int, triggeredBy string) (string, error)
	WriteResult(ctx context.Context, runID string, result *model.OptimizationResult, durationMS int64) error
	FailRun(ctx context.Context, runID string, durationMS int64, cause error) error
}

// MatrixSource builds the distance matrix for a location set.
type MatrixSource interface {
	Build(ctx context.Context, locations []geo.Coordinate) *Matrix
}

// RunSummary is the orchestrator's answer for one optimize request.
type RunSummary struct {
	RunID                 *string                  `json:"run_id"`
	Status                model.RunStatus          `json:"status"`
	TripsGenerated        int                      `json:"trips_generated"`
	Score                 float64                  `json:"score"`
	DurationMS            int64                    `json:"duration_ms"`
	Warnings              []string                 `json:"warnings"`
	Errors                []string                 `json:"errors"`
	UnassignedDemands     []model.UnassignedDemand `json:"unassigned_demands"`
	ConstraintRelaxations []model.RelaxationEntry  `json:"constraint_relaxations"`
}

// Service glues the planning pipeline to the store, the matrix
// builder, and the run writer.
type Service struct {
	store   WeekStore
	writer  RunWriter
	matrix  MatrixSource
	cfg     config.SolverConfig
	planner *Planner
}

// NewService wires the optimization service.
func NewService(store WeekStore, writer RunWriter, matrix MatrixSource, cfg config.SolverConfig) *Service {
	return &Service{
		store:   store,
		writer:  writer,
		matrix:  matrix,
		cfg:     cfg,
		planner: NewPlanner(cfg.Timeout()),
	}
}

// Optimize runs the full weekly pipeline: load inputs, assemble the
// matrix, derive constraints, cluster, plan (preseason variant at week
// 0), cascade on infeasibility, decide dispositions, score, and
// persist. A week with no games short-circuits without creating a run.
func (s *Service) Optimize(ctx context.Context, seasonYear, weekNumber int, triggeredBy string) (*RunSummary, error) {
	start := time.Now()

	data, err := s.store.LoadWeekData(ctx, seasonYear, weekNumber)
	if err != nil {
		return nil, fmt.Errorf("load week data: %w", err)
	}

	if len(data.Games) == 0 {
		return &RunSummary{
			Status:   model.RunCompleted,
			Score:    100,
			Warnings: []string{"No games scheduled for this week"},
		}, nil
	}

	runID, err := s.writer.CreateRun(ctx, seasonYear, weekNumber, triggeredBy)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	result, solveErr := s.solve(ctx, data, seasonYear, weekNumber)
	if solveErr != nil {
		durationMS := time.Since(start).Milliseconds()
		if failErr := s.writer.FailRun(ctx, runID, durationMS, solveErr); failErr != nil {
			log.Printf("[optimizer] failed to mark run %s failed: %v", runID, failErr)
		}
		return nil, solveErr
	}

	durationMS := time.Since(start).Milliseconds()
	if err := s.writer.WriteResult(ctx, runID, result, durationMS); err != nil {
		if failErr := s.writer.FailRun(ctx, runID, durationMS, err); failErr != nil {
			log.Printf("[optimizer] failed to mark run %s failed: %v", runID, failErr)
		}
		return nil, fmt.Errorf("write results: %w", err)
	}

	log.Printf("[optimizer] run %s: week %d/%d, %d trips, status=%s, score=%.1f",
		runID, seasonYear, weekNumber, len(result.Trips), result.Status, result.AverageScore)

	return &RunSummary{
		RunID:                 &runID,
		Status:                result.Status,
		TripsGenerated:        len(result.Trips),
		Score:                 result.AverageScore,
		DurationMS:            durationMS,
		Warnings:              result.Warnings,
		Errors:                result.Errors,
		UnassignedDemands:     result.UnassignedDemands,
		ConstraintRelaxations: result.ConstraintRelaxations,
	}, nil
}

func (s *Service) solve(ctx context.Context, data *model.WeekData, seasonYear, weekNumber int) (*model.OptimizationResult, error) {
	m := s.matrix.Build(ctx, data.AllLocations())
	cons := BuildConstraints(data, s.cfg.SetupBufferHours)
	clusters := ClusterVenues(data, m, s.cfg.MaxClusterRadiusMi, s.cfg.MaxStopsPerTrip)

	log.Printf("[optimizer] week %d: %d games, %d demands, %d clusters, %d locations",
		weekNumber, len(data.Games), len(cons.Demands), len(clusters), m.Size())

	var result *model.OptimizationResult
	if weekNumber == 0 {
		result = s.planner.OptimizeWeek0(data, m, cons, s.cfg.MaxClusterRadiusMi, s.cfg.MaxStopsPerTrip)
	} else {
		result = s.planner.OptimizeWeek(data, m, cons, clusters, nil)
		if result.HasUnassigned() {
			result = s.planner.HandleInfeasibility(data, m, cons, clusters, result)
		}
	}

	nextGames, nextVenues, err := s.store.LoadNextWeekSchedule(ctx, seasonYear, weekNumber)
	if err != nil {
		// Lookahead is advisory; plan without it rather than failing.
		log.Printf("[optimizer] next-week schedule load failed: %v", err)
		result.Warnings = append(result.Warnings, "Next-week schedule unavailable; dispositions default to leave on site")
		nextGames, nextVenues = nil, nil
	}
	ApplyPostGameDisposition(result, weekNumber, data, nextGames, nextVenues)

	result.AverageScore = ScoreRun(result, data)
	return result, nil
}
