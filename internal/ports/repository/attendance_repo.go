package repository

import (
	"context"
	"database/sql"
	"time"

	"attendance.service/internal/core/model"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PostgresAttendanceRepository is the concrete implementation for a PostgreSQL database.
type PostgresAttendanceRepository struct {
	DB *sql.DB
}

// NewAttendanceRepository create new instance
func NewAttendanceRepository(db *sql.DB) AttendanceRepository {
	return &PostgresAttendanceRepository{DB: db}
}

const recordColumns = `id, employee_id, location_id, date, check_in_time, check_out_time,
       check_in_lat, check_in_lng, check_out_lat, check_out_lng, device_fingerprint,
       check_in_liveness, check_out_liveness, check_in_face_match, check_out_face_match,
       status, late_reason, auto_checkout, created_at`

// GetByEmployeeAndDate fetches the record for one employee on one calendar
// day, or nil when there is none yet.
func (r *PostgresAttendanceRepository) GetByEmployeeAndDate(ctx context.Context, employeeID uuid.UUID, date string) (*model.AttendanceRecord, error) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("app.employeeId", employeeID.String()))

	query := `SELECT ` + recordColumns + ` FROM attendance_records WHERE employee_id = $1 AND date = $2`
	rec, err := scanRecord(r.DB.QueryRowContext(ctx, query, employeeID, date))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// DeviceUsedByOther reports whether a different employee already used this
// device fingerprint today. Point check only; see the engine for the
// documented race.
func (r *PostgresAttendanceRepository) DeviceUsedByOther(ctx context.Context, deviceFingerprint, date string, employeeID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (
                  SELECT 1 FROM attendance_records
                  WHERE device_fingerprint = $1 AND date = $2 AND employee_id <> $3)`

	var used bool
	err := r.DB.QueryRowContext(ctx, query, deviceFingerprint, date, employeeID).Scan(&used)
	return used, err
}

// CreateCheckIn inserts the day's record. The unique key on
// (employee_id, date) makes concurrent first check-ins race-safe: the loser
// gets no row back and the caller reports "already checked in".
func (r *PostgresAttendanceRepository) CreateCheckIn(ctx context.Context, rec *model.AttendanceRecord) (bool, error) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("app.employeeId", rec.EmployeeID.String()))

	query := `INSERT INTO attendance_records
                  (id, employee_id, location_id, date, check_in_time, check_in_lat, check_in_lng,
                   device_fingerprint, check_in_liveness, check_in_face_match, status, late_reason,
                   auto_checkout, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, false, $13)
              ON CONFLICT (employee_id, date) DO NOTHING
              RETURNING id`

	var locationID any
	if rec.LocationID != nil {
		locationID = *rec.LocationID
	}
	var lateReason any
	if rec.LateReason != nil {
		lateReason = *rec.LateReason
	}

	var id uuid.UUID
	err := r.DB.QueryRowContext(ctx, query,
		rec.ID, rec.EmployeeID, locationID, rec.Date, rec.CheckInTime,
		rec.CheckInLat, rec.CheckInLng, rec.DeviceFingerprint, rec.CheckInLiveness,
		rec.CheckInFaceMatch, rec.Status, lateReason, rec.CreatedAt,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpdateCheckOut closes a record with a worker-initiated check-out.
func (r *PostgresAttendanceRepository) UpdateCheckOut(ctx context.Context, id uuid.UUID, at time.Time, lat, lng float64, matchScore float64) error {
	query := `UPDATE attendance_records
              SET check_out_time = $1,
                  check_out_lat = $2,
                  check_out_lng = $3,
                  check_out_liveness = true,
                  check_out_face_match = $4
              WHERE id = $5 AND check_out_time IS NULL`

	_, err := r.DB.ExecContext(ctx, query, at, lat, lng, matchScore, id)
	return err
}

// ListOpenSince returns every record from cutoffDate onward that has a
// check-in but no check-out, oldest first, for the recovery sweep.
func (r *PostgresAttendanceRepository) ListOpenSince(ctx context.Context, cutoffDate string) ([]model.AttendanceRecord, error) {
	query := `SELECT ` + recordColumns + `
              FROM attendance_records
              WHERE date >= $1 AND check_in_time IS NOT NULL AND check_out_time IS NULL
              ORDER BY date`

	rows, err := r.DB.QueryContext(ctx, query, cutoffDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.AttendanceRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// ForceCheckOut is the sweeper's administrative close: no liveness, no match
// score, auto_checkout flagged. A record already closed is left alone.
func (r *PostgresAttendanceRepository) ForceCheckOut(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE attendance_records
              SET check_out_time = $1,
                  check_out_liveness = false,
                  check_out_face_match = NULL,
                  auto_checkout = true
              WHERE id = $2 AND check_out_time IS NULL`

	_, err := r.DB.ExecContext(ctx, query, at, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*model.AttendanceRecord, error) {
	var (
		rec         model.AttendanceRecord
		locationID  sql.Null[uuid.UUID]
		checkIn     sql.NullTime
		checkOut    sql.NullTime
		ciLat       sql.NullFloat64
		ciLng       sql.NullFloat64
		coLat       sql.NullFloat64
		coLng       sql.NullFloat64
		ciFaceMatch sql.NullFloat64
		coFaceMatch sql.NullFloat64
		lateReason  sql.NullString
	)

	err := row.Scan(&rec.ID, &rec.EmployeeID, &locationID, &rec.Date, &checkIn, &checkOut,
		&ciLat, &ciLng, &coLat, &coLng, &rec.DeviceFingerprint,
		&rec.CheckInLiveness, &rec.CheckOutLiveness, &ciFaceMatch, &coFaceMatch,
		&rec.Status, &lateReason, &rec.AutoCheckout, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}

	if locationID.Valid {
		rec.LocationID = &locationID.V
	}
	if checkIn.Valid {
		rec.CheckInTime = &checkIn.Time
	}
	if checkOut.Valid {
		rec.CheckOutTime = &checkOut.Time
	}
	if ciLat.Valid {
		rec.CheckInLat = &ciLat.Float64
	}
	if ciLng.Valid {
		rec.CheckInLng = &ciLng.Float64
	}
	if coLat.Valid {
		rec.CheckOutLat = &coLat.Float64
	}
	if coLng.Valid {
		rec.CheckOutLng = &coLng.Float64
	}
	if ciFaceMatch.Valid {
		rec.CheckInFaceMatch = &ciFaceMatch.Float64
	}
	if coFaceMatch.Valid {
		rec.CheckOutFaceMatch = &coFaceMatch.Float64
	}
	if lateReason.Valid {
		rec.LateReason = &lateReason.String
	}
	return &rec, nil
}
