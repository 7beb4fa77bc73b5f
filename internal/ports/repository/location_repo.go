package repository

import (
	"context"
	"database/sql"

	"attendance.service/internal/core/model"
)

// PostgresLocationRepository is the concrete implementation for a PostgreSQL database.
type PostgresLocationRepository struct {
	DB *sql.DB
}

// NewLocationRepository create new instance
func NewLocationRepository(db *sql.DB) LocationRepository {
	return &PostgresLocationRepository{DB: db}
}

// ListActive returns every active admission zone, in insertion order so the
// resolver's tie-break stays deterministic.
func (r *PostgresLocationRepository) ListActive(ctx context.Context) ([]model.Location, error) {
	query := `SELECT id, name, short_name, district, lat, lng, radius_meters,
                     is_headquarters, is_active, created_at
              FROM locations
              WHERE is_active = true
              ORDER BY created_at`

	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locations []model.Location
	for rows.Next() {
		var loc model.Location
		if err := rows.Scan(&loc.ID, &loc.Name, &loc.ShortName, &loc.District,
			&loc.Lat, &loc.Lng, &loc.RadiusMeters, &loc.IsHeadquarters,
			&loc.IsActive, &loc.CreatedAt); err != nil {
			return nil, err
		}
		locations = append(locations, loc)
	}
	return locations, rows.Err()
}
