package repository

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dragonseats/optimizer/internal/model"
)

// finalWeekNumber is the last regular-season week.
const finalWeekNumber = 18

// WeekRepository loads all solver inputs for a season week.
type WeekRepository struct {
	pool *pgxpool.Pool
}

// NewWeekRepository creates the week input loader.
func NewWeekRepository(pool *pgxpool.Pool) *WeekRepository {
	return &WeekRepository{pool: pool}
}

// LoadWeekData gathers hubs, the week's games, contracts, assets,
// vehicles, personnel, branding tasks, and season assignments.
//
// Week 0 has no schedule of its own: it derives from the week-1 games
// with times cleared and the phase set to preseason, and skips the
// availability filtering since deployment spans several days.
func (r *WeekRepository) LoadWeekData(ctx context.Context, seasonYear, weekNumber int) (*model.WeekData, error) {
	data := &model.WeekData{
		SeasonYear: seasonYear,
		WeekNumber: weekNumber,
		Venues:     make(map[string]*model.Venue),
	}

	var err error
	if data.Hubs, err = r.loadHubs(ctx); err != nil {
		return nil, err
	}
	if err = r.loadVenues(ctx, data.Venues); err != nil {
		return nil, err
	}

	scheduleWeek := weekNumber
	preseason := weekNumber == 0
	if preseason {
		scheduleWeek = 1
	}
	if data.Games, err = r.loadGames(ctx, seasonYear, scheduleWeek); err != nil {
		return nil, err
	}
	if preseason {
		for i := range data.Games {
			data.Games[i].WeekNumber = 0
			data.Games[i].GameTime = nil
			data.Games[i].SeasonPhase = model.SeasonPhasePreseason
		}
	}

	customerIDs := make([]string, 0, len(data.Games))
	seen := make(map[string]bool)
	for _, g := range data.Games {
		if !seen[g.CustomerID] {
			seen[g.CustomerID] = true
			customerIDs = append(customerIDs, g.CustomerID)
		}
	}
	if data.ContractItems, err = r.loadContractItems(ctx, customerIDs); err != nil {
		return nil, err
	}

	if data.Assets, err = r.loadAssets(ctx); err != nil {
		return nil, err
	}
	if data.Vehicles, err = r.loadVehicles(ctx, seasonYear, weekNumber, preseason); err != nil {
		return nil, err
	}
	if data.Personnel, err = r.loadPersonnel(ctx, seasonYear, weekNumber, preseason); err != nil {
		return nil, err
	}
	if data.BrandingTasks, err = r.loadBrandingTasks(ctx); err != nil {
		return nil, err
	}
	if data.Assignments, err = r.loadAssignments(ctx, seasonYear); err != nil {
		return nil, err
	}

	log.Printf("[loader] week %d/%d: %d games, %d assets, %d vehicles, %d personnel",
		seasonYear, weekNumber, len(data.Games), len(data.Assets),
		len(data.Vehicles), len(data.Personnel))
	return data, nil
}

// LoadNextWeekSchedule returns the following week's games and their
// venues for lookahead. Past the final week it returns nothing.
func (r *WeekRepository) LoadNextWeekSchedule(ctx context.Context, seasonYear, weekNumber int) ([]model.Game, map[string]*model.Venue, error) {
	next := weekNumber + 1
	if next > finalWeekNumber {
		return nil, nil, nil
	}

	games, err := r.loadGames(ctx, seasonYear, next)
	if err != nil {
		return nil, nil, err
	}
	venues := make(map[string]*model.Venue)
	if err := r.loadVenues(ctx, venues); err != nil {
		return nil, nil, err
	}
	return games, venues, nil
}

func (r *WeekRepository) loadHubs(ctx context.Context) ([]model.Hub, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, city, state, latitude, longitude FROM hubs`)
	if err != nil {
		return nil, fmt.Errorf("load hubs: %w", err)
	}
	defer rows.Close()

	var hubs []model.Hub
	for rows.Next() {
		var h model.Hub
		if err := rows.Scan(&h.ID, &h.Name, &h.City, &h.State, &h.Lat, &h.Lng); err != nil {
			log.Printf("[loader] skipping hub row: %v", err)
			continue
		}
		hubs = append(hubs, h)
	}
	return hubs, rows.Err()
}

func (r *WeekRepository) loadVenues(ctx context.Context, out map[string]*model.Venue) error {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, COALESCE(customer_id, ''), latitude, longitude, is_primary
		FROM venues`)
	if err != nil {
		return fmt.Errorf("load venues: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v model.Venue
		if err := rows.Scan(&v.ID, &v.Name, &v.CustomerID, &v.Lat, &v.Lng, &v.IsPrimary); err != nil {
			log.Printf("[loader] skipping venue row: %v", err)
			continue
		}
		out[v.ID] = &v
	}
	return rows.Err()
}

func (r *WeekRepository) loadGames(ctx context.Context, seasonYear, weekNumber int) ([]model.Game, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT gs.id, gs.customer_id, c.name, COALESCE(gs.venue_id, ''),
		       gs.season_year, gs.week_number,
		       COALESCE(gs.game_date::text, ''), gs.game_time::text,
		       COALESCE(gs.sidelines_served, 1), COALESCE(gs.season_phase, 'regular')
		FROM game_schedule gs
		JOIN customers c ON c.id = gs.customer_id
		WHERE gs.season_year = $1 AND gs.week_number = $2`,
		seasonYear, weekNumber)
	if err != nil {
		return nil, fmt.Errorf("load games: %w", err)
	}
	defer rows.Close()

	var games []model.Game
	for rows.Next() {
		var g model.Game
		if err := rows.Scan(&g.ID, &g.CustomerID, &g.CustomerName, &g.VenueID,
			&g.SeasonYear, &g.WeekNumber, &g.GameDate, &g.GameTime,
			&g.SidelinesServed, &g.SeasonPhase); err != nil {
			log.Printf("[loader] skipping game row: %v", err)
			continue
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

func (r *WeekRepository) loadContractItems(ctx context.Context, customerIDs []string) ([]model.ContractItem, error) {
	if len(customerIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT ci.id, ci.contract_id, co.customer_id, cu.name,
		       ci.asset_type, ci.model_version, ci.quantity, ci.branding_spec
		FROM contract_items ci
		JOIN contracts co ON co.id = ci.contract_id
		JOIN customers cu ON cu.id = co.customer_id
		WHERE co.status = 'active' AND co.customer_id = ANY($1)`,
		customerIDs)
	if err != nil {
		return nil, fmt.Errorf("load contract items: %w", err)
	}
	defer rows.Close()

	var items []model.ContractItem
	for rows.Next() {
		var it model.ContractItem
		if err := rows.Scan(&it.ID, &it.ContractID, &it.CustomerID, &it.CustomerName,
			&it.AssetType, &it.ModelVersion, &it.Quantity, &it.BrandingSpec); err != nil {
			log.Printf("[loader] skipping contract item row: %v", err)
			continue
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *WeekRepository) loadAssets(ctx context.Context) ([]model.Asset, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, asset_type, model_version, condition, status,
		       COALESCE(home_hub_id, ''), current_hub_id, current_venue_id,
		       current_trip_id, COALESCE(weight_lbs, 0), current_branding
		FROM assets`)
	if err != nil {
		return nil, fmt.Errorf("load assets: %w", err)
	}
	defer rows.Close()

	var assets []model.Asset
	for rows.Next() {
		var a model.Asset
		if err := rows.Scan(&a.ID, &a.AssetType, &a.ModelVersion, &a.Condition, &a.Status,
			&a.HomeHubID, &a.CurrentHubID, &a.CurrentVenueID,
			&a.CurrentTripID, &a.WeightLbs, &a.CurrentBranding); err != nil {
			log.Printf("[loader] skipping asset row: %v", err)
			continue
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

func (r *WeekRepository) loadVehicles(ctx context.Context, seasonYear, weekNumber int, preseason bool) ([]model.Vehicle, error) {
	query := `
		SELECT v.id, v.name, v.home_hub_id, v.capacity_lbs, v.status
		FROM vehicles v
		WHERE v.status = 'active'`
	args := []any{}
	if !preseason {
		query += `
		  AND NOT EXISTS (
			SELECT 1 FROM vehicle_availability va
			WHERE va.vehicle_id = v.id
			  AND va.season_year = $1 AND va.week_number = $2
			  AND va.is_available = false)`
		args = append(args, seasonYear, weekNumber)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []model.Vehicle
	for rows.Next() {
		var v model.Vehicle
		if err := rows.Scan(&v.ID, &v.Name, &v.HomeHubID, &v.CapacityLbs, &v.Status); err != nil {
			log.Printf("[loader] skipping vehicle row: %v", err)
			continue
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

func (r *WeekRepository) loadPersonnel(ctx context.Context, seasonYear, weekNumber int, preseason bool) ([]model.Person, error) {
	query := `
		SELECT p.id, p.name, p.role, p.home_hub_id, COALESCE(p.max_drive_hours, 11)
		FROM personnel p`
	args := []any{}
	if !preseason {
		query += `
		WHERE NOT EXISTS (
			SELECT 1 FROM personnel_availability pa
			WHERE pa.person_id = p.id
			  AND pa.season_year = $1 AND pa.week_number = $2
			  AND pa.is_available = false)`
		args = append(args, seasonYear, weekNumber)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load personnel: %w", err)
	}
	defer rows.Close()

	var people []model.Person
	for rows.Next() {
		var p model.Person
		if err := rows.Scan(&p.ID, &p.Name, &p.Role, &p.HomeHubID, &p.MaxDriveHours); err != nil {
			log.Printf("[loader] skipping personnel row: %v", err)
			continue
		}
		people = append(people, p)
	}
	return people, rows.Err()
}

func (r *WeekRepository) loadBrandingTasks(ctx context.Context) ([]model.BrandingTask, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, asset_id, from_branding, to_branding,
		       COALESCE(hub_id, ''), needed_by::text, status
		FROM branding_tasks`)
	if err != nil {
		return nil, fmt.Errorf("load branding tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.BrandingTask
	for rows.Next() {
		var t model.BrandingTask
		if err := rows.Scan(&t.ID, &t.AssetID, &t.FromBranding, &t.ToBranding,
			&t.HubID, &t.NeededBy, &t.Status); err != nil {
			log.Printf("[loader] skipping branding task row: %v", err)
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *WeekRepository) loadAssignments(ctx context.Context, seasonYear int) ([]model.AssetAssignment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, asset_id, customer_id, season_year, COALESCE(is_permanent, false)
		FROM asset_assignments
		WHERE season_year = $1`, seasonYear)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load asset assignments: %w", err)
	}
	defer rows.Close()

	var assignments []model.AssetAssignment
	for rows.Next() {
		var a model.AssetAssignment
		if err := rows.Scan(&a.ID, &a.AssetID, &a.CustomerID, &a.SeasonYear, &a.IsPermanent); err != nil {
			log.Printf("[loader] skipping assignment row: %v", err)
			continue
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}
