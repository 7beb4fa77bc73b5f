package repository

import (
	"context"
	"database/sql"
	"time"

	"attendance.service/internal/core/model"
)

// PostgresSettingsRepository is the concrete implementation for a PostgreSQL database.
type PostgresSettingsRepository struct {
	DB *sql.DB
}

// NewSettingsRepository create new instance
func NewSettingsRepository(db *sql.DB) SettingsRepository {
	return &PostgresSettingsRepository{DB: db}
}

// Get loads the singleton settings row, or nil when it has never been seeded.
func (r *PostgresSettingsRepository) Get(ctx context.Context) (*model.Settings, error) {
	query := `SELECT id, check_in_start, check_in_end, check_out_start, check_out_end,
                     late_after, face_match_threshold, updated_at
              FROM attendance_settings
              ORDER BY id
              LIMIT 1`

	var s model.Settings
	err := r.DB.QueryRowContext(ctx, query).Scan(&s.ID, &s.CheckInStart, &s.CheckInEnd,
		&s.CheckOutStart, &s.CheckOutEnd, &s.LateAfter, &s.FaceMatchThreshold, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Update rewrites the singleton and returns the stored row.
func (r *PostgresSettingsRepository) Update(ctx context.Context, s model.Settings) (*model.Settings, error) {
	query := `UPDATE attendance_settings
              SET check_in_start = $1,
                  check_in_end = $2,
                  check_out_start = $3,
                  check_out_end = $4,
                  late_after = $5,
                  face_match_threshold = $6,
                  updated_at = $7
              WHERE id = $8`

	s.UpdatedAt = time.Now().UTC()
	res, err := r.DB.ExecContext(ctx, query, s.CheckInStart, s.CheckInEnd, s.CheckOutStart,
		s.CheckOutEnd, s.LateAfter, s.FaceMatchThreshold, s.UpdatedAt, s.ID)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}
