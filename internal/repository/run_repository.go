package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dragonseats/optimizer/internal/model"
)

// RunRepository persists optimizer runs, trips, and their child rows.
// Plans are immutable: a new run always creates new trip rows.
type RunRepository struct {
	pool *pgxpool.Pool
}

// NewRunRepository creates the run writer.
func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

// CreateRun inserts the run row in status "running" and returns its ID.
func (r *RunRepository) CreateRun(ctx context.Context, seasonYear, weekNumber int, triggeredBy string) (string, error) {
	runID := uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO optimizer_runs
			(id, season_year, week_number, triggered_by, status, started_at)
		VALUES ($1, $2, $3, $4, 'running', $5)`,
		runID, seasonYear, weekNumber, triggeredBy, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return runID, nil
}

// WriteResult writes every trip with its stops, assets, and crew, then
// patches the run row to its final state. A single trip's write
// failure becomes an errors entry and does not block the others.
func (r *RunRepository) WriteResult(ctx context.Context, runID string, result *model.OptimizationResult, durationMS int64) error {
	written := 0
	for i := range result.Trips {
		trip := &result.Trips[i]
		if err := r.writeTrip(ctx, runID, trip); err != nil {
			venue := "unknown venue"
			if len(trip.Stops) > 0 {
				venue = trip.Stops[0].VenueName
			}
			result.Errors = append(result.Errors,
				fmt.Sprintf("Failed to write trip to %s: %v", venue, err))
			log.Printf("[writer] trip write failed (run %s): %v", runID, err)
			continue
		}
		written++
	}

	_, err := r.pool.Exec(ctx, `
		UPDATE optimizer_runs
		SET status = $2, completed_at = $3, duration_ms = $4, trips_generated = $5,
		    average_score = $6, warnings = $7, errors = $8,
		    unassigned_demands = $9, constraint_relaxations = $10
		WHERE id = $1`,
		runID, string(result.Status), time.Now().UTC(), durationMS, written,
		result.AverageScore,
		jsonOrNull(result.Warnings),
		jsonOrNull(result.Errors),
		jsonOrNull(result.UnassignedDemands),
		jsonOrNull(result.ConstraintRelaxations))
	if err != nil {
		return fmt.Errorf("finalize run: %w", err)
	}
	return nil
}

// FailRun patches the run row to "failed" with the error text.
func (r *RunRepository) FailRun(ctx context.Context, runID string, durationMS int64, cause error) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE optimizer_runs
		SET status = 'failed', completed_at = $2, duration_ms = $3, errors = $4
		WHERE id = $1`,
		runID, time.Now().UTC(), durationMS,
		jsonOrNull([]string{cause.Error()}))
	if err != nil {
		return fmt.Errorf("mark run failed: %w", err)
	}
	return nil
}

func (r *RunRepository) writeTrip(ctx context.Context, runID string, trip *model.Trip) error {
	tripID := uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO trips
			(id, optimizer_run_id, vehicle_id, origin_type, origin_id,
			 status, is_recommended, is_manual,
			 total_miles, total_drive_hrs, optimizer_score, depart_at, return_at)
		VALUES ($1, $2, $3, 'hub', $4, 'recommended', true, false, $5, $6, $7, $8, $9)`,
		tripID, runID, trip.VehicleID, trip.HubID,
		trip.TotalMiles, trip.TotalDriveHrs, trip.OptimizerScore,
		trip.DepartAt, trip.ReturnAt)
	if err != nil {
		return fmt.Errorf("insert trip: %w", err)
	}

	batch := &pgx.Batch{}
	for _, stop := range trip.Stops {
		batch.Queue(`
			INSERT INTO trip_stops
				(id, trip_id, venue_id, stop_order, action,
				 requires_hub_return, hub_return_reason)
			VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))`,
			uuid.NewString(), tripID, stop.VenueID, stop.StopOrder,
			string(stop.Action), stop.RequiresHubRet, stop.HubReturnReason)
	}
	for _, assetID := range trip.AssetIDs {
		batch.Queue(`
			INSERT INTO trip_assets (id, trip_id, asset_id)
			VALUES ($1, $2, $3)`,
			uuid.NewString(), tripID, assetID)
	}
	for _, personID := range trip.PersonnelIDs {
		batch.Queue(`
			INSERT INTO trip_personnel (id, trip_id, person_id)
			VALUES ($1, $2, $3)`,
			uuid.NewString(), tripID, personID)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert trip children: %w", err)
	}
	return nil
}

// jsonOrNull marshals a slice, mapping empty to SQL NULL so the run
// row keeps nulls instead of empty arrays.
func jsonOrNull[T any](items []T) any {
	if len(items) == 0 {
		return nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil
	}
	return string(b)
}
