package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"attendance.service/internal/core/model"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PostgresEmployeeRepository is the concrete implementation for a PostgreSQL database.
type PostgresEmployeeRepository struct {
	DB *sql.DB
}

// NewEmployeeRepository create new instance
func NewEmployeeRepository(db *sql.DB) EmployeeRepository {
	return &PostgresEmployeeRepository{DB: db}
}

const employeeColumns = `id, employee_code, full_name, position, location_id, pin_hash,
       is_admin, is_active, enrollment_status, face_descriptor, enrolled_at,
       device_fingerprint, device_bound_at, created_at`

// GetByID fetches an employee by primary key.
func (r *PostgresEmployeeRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Employee, error) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("app.employeeId", id.String()))

	query := `SELECT ` + employeeColumns + ` FROM employees WHERE id = $1`
	return r.scanEmployee(r.DB.QueryRowContext(ctx, query, id))
}

// GetByCode fetches an employee by the external staff code used at login.
func (r *PostgresEmployeeRepository) GetByCode(ctx context.Context, code string) (*model.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE employee_code = $1`
	return r.scanEmployee(r.DB.QueryRowContext(ctx, query, code))
}

// SaveEnrollment stores the face template, marks the employee enrolled and
// binds the submitting device.
func (r *PostgresEmployeeRepository) SaveEnrollment(ctx context.Context, id uuid.UUID, descriptor []float64, deviceFingerprint string, enrolledAt time.Time) error {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("app.employeeId", id.String()))

	raw, err := json.Marshal(descriptor)
	if err != nil {
		return err
	}

	query := `UPDATE employees
              SET face_descriptor = $1,
                  enrollment_status = $2,
                  enrolled_at = $3,
                  device_fingerprint = NULLIF($4, ''),
                  device_bound_at = CASE WHEN $4 = '' THEN NULL ELSE $3 END
              WHERE id = $5`

	_, err = r.DB.ExecContext(ctx, query, raw, model.EnrollmentEnrolled, enrolledAt, deviceFingerprint, id)
	return err
}

// ClearEnrollment drops the template and sets the given terminal status
// (revoked for admin revocation, none for a self-service face reset).
func (r *PostgresEmployeeRepository) ClearEnrollment(ctx context.Context, id uuid.UUID, status model.EnrollmentStatus) error {
	query := `UPDATE employees
              SET face_descriptor = NULL,
                  enrollment_status = $1,
                  enrolled_at = NULL
              WHERE id = $2`

	_, err := r.DB.ExecContext(ctx, query, status, id)
	return err
}

// UpdateDescriptor rewrites just the stored template, used by the adaptive
// blend after a successful verification.
func (r *PostgresEmployeeRepository) UpdateDescriptor(ctx context.Context, id uuid.UUID, descriptor []float64) error {
	raw, err := json.Marshal(descriptor)
	if err != nil {
		return err
	}

	query := `UPDATE employees SET face_descriptor = $1 WHERE id = $2 AND enrollment_status = $3`
	_, err = r.DB.ExecContext(ctx, query, raw, id, model.EnrollmentEnrolled)
	return err
}

func (r *PostgresEmployeeRepository) scanEmployee(row *sql.Row) (*model.Employee, error) {
	var (
		e          model.Employee
		locationID sql.Null[uuid.UUID]
		descriptor []byte
		enrolledAt sql.NullTime
		deviceFP   sql.NullString
		boundAt    sql.NullTime
	)

	err := row.Scan(&e.ID, &e.EmployeeCode, &e.FullName, &e.Position, &locationID,
		&e.PINHash, &e.IsAdmin, &e.IsActive, &e.EnrollmentStatus, &descriptor,
		&enrolledAt, &deviceFP, &boundAt, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if locationID.Valid {
		e.LocationID = &locationID.V
	}
	if len(descriptor) > 0 {
		if err := json.Unmarshal(descriptor, &e.FaceDescriptor); err != nil {
			return nil, err
		}
	}
	if enrolledAt.Valid {
		e.EnrolledAt = &enrolledAt.Time
	}
	if deviceFP.Valid {
		e.DeviceFingerprint = &deviceFP.String
	}
	if boundAt.Valid {
		e.DeviceBoundAt = &boundAt.Time
	}
	return &e, nil
}
