package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	intdb "conductor/internal/db"
	"conductor/internal/domain/models"
)

// RouteRepository reads the route graph and vehicle reference tables.
type RouteRepository struct{}

// GetRoute returns the route with its stops in travel order.
func (r RouteRepository) GetRoute(ctx context.Context, q intdb.Querier, id string) (models.Route, error) {
	var route models.Route
	id = strings.TrimSpace(id)
	if id == "" {
		return route, sql.ErrNoRows
	}
	if err := q.QueryRowContext(ctx, `SELECT id, name FROM routes WHERE id=? LIMIT 1`, id).
		Scan(&route.ID, &route.Name); err != nil {
		return route, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT s.id, s.name, s.lat, s.lon
		FROM route_stops rs
		JOIN stops s ON s.id = rs.stop_id
		WHERE rs.route_id=?
		ORDER BY rs.position ASC
	`, id)
	if err != nil {
		return route, fmt.Errorf("query route stops: %w", err)
	}
	defer rows.Close()

	route.Stops = []models.Stop{}
	for rows.Next() {
		var s models.Stop
		if err := rows.Scan(&s.ID, &s.Name, &s.Lat, &s.Lon); err != nil {
			return route, err
		}
		route.Stops = append(route.Stops, s)
	}
	return route, rows.Err()
}

// GetStop returns one stop by id.
func (r RouteRepository) GetStop(ctx context.Context, q intdb.Querier, id string) (models.Stop, error) {
	var s models.Stop
	err := q.QueryRowContext(ctx, `SELECT id, name, lat, lon FROM stops WHERE id=? LIMIT 1`, strings.TrimSpace(id)).
		Scan(&s.ID, &s.Name, &s.Lat, &s.Lon)
	return s, err
}

// GetVehicle returns the vehicle and its seating capacity.
func (r RouteRepository) GetVehicle(ctx context.Context, q intdb.Querier, id string) (models.Vehicle, error) {
	var v models.Vehicle
	err := q.QueryRowContext(ctx, `SELECT id, plate, capacity FROM vehicles WHERE id=? LIMIT 1`, strings.TrimSpace(id)).
		Scan(&v.ID, &v.Plate, &v.Capacity)
	return v, err
}

// ReplaceAll swaps stops, routes and vehicles for the given reference document.
func (r RouteRepository) ReplaceAll(ctx context.Context, q intdb.Querier, data models.ReferenceData) error {
	for _, table := range []string{"route_stops", "routes", "stops", "vehicles"} {
		if _, err := q.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, s := range data.Stops {
		if _, err := q.ExecContext(ctx, `INSERT INTO stops (id, name, lat, lon) VALUES (?,?,?,?)`,
			strings.TrimSpace(s.ID), strings.TrimSpace(s.Name), s.Lat, s.Lon); err != nil {
			return fmt.Errorf("insert stop %s: %w", s.ID, err)
		}
	}
	for _, rt := range data.Routes {
		if _, err := q.ExecContext(ctx, `INSERT INTO routes (id, name) VALUES (?,?)`,
			strings.TrimSpace(rt.ID), strings.TrimSpace(rt.Name)); err != nil {
			return fmt.Errorf("insert route %s: %w", rt.ID, err)
		}
		for pos, stopID := range rt.StopIDs {
			if _, err := q.ExecContext(ctx, `INSERT INTO route_stops (route_id, position, stop_id) VALUES (?,?,?)`,
				strings.TrimSpace(rt.ID), pos, strings.TrimSpace(stopID)); err != nil {
				return fmt.Errorf("insert route stop %s/%d: %w", rt.ID, pos, err)
			}
		}
	}
	for _, v := range data.Vehicles {
		if _, err := q.ExecContext(ctx, `INSERT INTO vehicles (id, plate, capacity) VALUES (?,?,?)`,
			strings.TrimSpace(v.ID), strings.TrimSpace(v.Plate), v.Capacity); err != nil {
			return fmt.Errorf("insert vehicle %s: %w", v.ID, err)
		}
	}
	return nil
}
