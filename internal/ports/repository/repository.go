package repository

import (
	"context"
	"time"

	"attendance.service/internal/core/model"
	"github.com/google/uuid"
)

// EmployeeRepository is the persistence contract for staff records. The
// engine reads enrollment data for matching and writes the adaptive template
// update; account lifecycle beyond that lives elsewhere.
type EmployeeRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Employee, error)
	GetByCode(ctx context.Context, code string) (*model.Employee, error)
	SaveEnrollment(ctx context.Context, id uuid.UUID, descriptor []float64, deviceFingerprint string, enrolledAt time.Time) error
	ClearEnrollment(ctx context.Context, id uuid.UUID, status model.EnrollmentStatus) error
	UpdateDescriptor(ctx context.Context, id uuid.UUID, descriptor []float64) error
}

// LocationRepository lists the registered admission zones.
type LocationRepository interface {
	ListActive(ctx context.Context) ([]model.Location, error)
}

// AttendanceRepository is the contract for the one-per-day records.
// CreateCheckIn is insert-if-absent on (employee_id, date): a conflict means
// the employee already checked in and must not be treated as an error here.
type AttendanceRepository interface {
	GetByEmployeeAndDate(ctx context.Context, employeeID uuid.UUID, date string) (*model.AttendanceRecord, error)
	DeviceUsedByOther(ctx context.Context, deviceFingerprint, date string, employeeID uuid.UUID) (bool, error)
	CreateCheckIn(ctx context.Context, rec *model.AttendanceRecord) (bool, error)
	UpdateCheckOut(ctx context.Context, id uuid.UUID, at time.Time, lat, lng float64, matchScore float64) error
	ListOpenSince(ctx context.Context, cutoffDate string) ([]model.AttendanceRecord, error)
	ForceCheckOut(ctx context.Context, id uuid.UUID, at time.Time) error
}

// SettingsRepository loads and updates the singleton attendance settings.
// Get returns (nil, nil) when the row is missing; callers decide whether that
// is ConfigMissing.
type SettingsRepository interface {
	Get(ctx context.Context) (*model.Settings, error)
	Update(ctx context.Context, s model.Settings) (*model.Settings, error)
}
