package core

import (
	"context"
	"time"

	"attendance.service/internal/core/apperr"
	"attendance.service/internal/core/face"
	"attendance.service/internal/core/geofence"
	"attendance.service/internal/core/model"
	"attendance.service/internal/ports/repository"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// FaceResetCooldown is the minimum gap between self-service face resets.
const FaceResetCooldown = 24 * time.Hour

// EnrollmentService handles account linking and the face-template lifecycle
// around the verification engine: enroll, revoke, self-service reset.
type EnrollmentService struct {
	employees repository.EmployeeRepository
	locations repository.LocationRepository
	now       func() time.Time
}

func NewEnrollmentService(employees repository.EmployeeRepository, locations repository.LocationRepository) *EnrollmentService {
	return &EnrollmentService{
		employees: employees,
		locations: locations,
		now:       time.Now,
	}
}

// Session is what the client keeps after a successful account link.
type Session struct {
	EmployeeID        uuid.UUID              `json:"employeeId"`
	EmployeeCode      string                 `json:"employeeCode"`
	FullName          string                 `json:"fullName"`
	Position          string                 `json:"position"`
	LocationID        *uuid.UUID             `json:"locationId,omitempty"`
	EnrollmentStatus  model.EnrollmentStatus `json:"enrollmentStatus"`
	DeviceFingerprint *string                `json:"deviceFingerprint,omitempty"`
	IsAdmin           bool                   `json:"isAdmin"`
}

// Link authenticates an employee by staff code and PIN.
func (s *EnrollmentService) Link(ctx context.Context, code, pin string) (*Session, error) {
	if code == "" || pin == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "employee code and PIN are required")
	}

	employee, err := s.employees.GetByCode(ctx, code)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorageFailure, err, "failed to load employee")
	}
	if employee == nil || !employee.IsActive {
		return nil, apperr.New(apperr.KindUnauthenticated, "employee code or PIN is incorrect")
	}
	if bcrypt.CompareHashAndPassword([]byte(employee.PINHash), []byte(pin)) != nil {
		return nil, apperr.New(apperr.KindUnauthenticated, "employee code or PIN is incorrect")
	}

	return &Session{
		EmployeeID:        employee.ID,
		EmployeeCode:      employee.EmployeeCode,
		FullName:          employee.FullName,
		Position:          employee.Position,
		LocationID:        employee.LocationID,
		EnrollmentStatus:  employee.EnrollmentStatus,
		DeviceFingerprint: employee.DeviceFingerprint,
		IsAdmin:           employee.IsAdmin,
	}, nil
}

// Enroll stores the face template and binds the submitting device. Clients
// either submit the finished template or the raw samples taken at different
// head angles; samples are averaged into the centroid here.
func (s *EnrollmentService) Enroll(ctx context.Context, employeeID uuid.UUID, descriptor []float64, samples [][]float64, deviceFingerprint string) error {
	if len(samples) > 0 {
		centroid, err := face.Centroid(samples)
		if err != nil {
			return apperr.Wrap(apperr.KindInvalidInput, err, "enrollment sample contained no face")
		}
		descriptor = centroid
	}
	if len(descriptor) != model.DescriptorLength {
		return apperr.New(apperr.KindInvalidInput, "face descriptor must have %d components", model.DescriptorLength)
	}

	employee, err := s.employees.GetByID(ctx, employeeID)
	if err != nil {
		return apperr.Wrap(apperr.KindStorageFailure, err, "failed to load employee")
	}
	if employee == nil || !employee.IsActive {
		return apperr.New(apperr.KindUnauthenticated, "employee not found")
	}

	if err := s.employees.SaveEnrollment(ctx, employeeID, descriptor, deviceFingerprint, s.now().UTC()); err != nil {
		return apperr.Wrap(apperr.KindStorageFailure, err, "failed to save enrollment")
	}
	return nil
}

// Revoke is the administrative path: it clears the template and marks the
// enrollment revoked, blocking verification until a fresh enrollment.
func (s *EnrollmentService) Revoke(ctx context.Context, employeeID uuid.UUID) error {
	if err := s.employees.ClearEnrollment(ctx, employeeID, model.EnrollmentRevoked); err != nil {
		return apperr.Wrap(apperr.KindStorageFailure, err, "failed to revoke enrollment")
	}
	return nil
}

// ResetFace is the self-service path for a changed appearance or new device:
// PIN-authorized, rate-limited, and only allowed from inside a registered
// zone. It drops the template back to "none" so the employee re-enrolls.
func (s *EnrollmentService) ResetFace(ctx context.Context, employeeID uuid.UUID, pin string, lat, lng *float64) error {
	if pin == "" {
		return apperr.New(apperr.KindInvalidInput, "PIN is required")
	}

	employee, err := s.employees.GetByID(ctx, employeeID)
	if err != nil {
		return apperr.Wrap(apperr.KindStorageFailure, err, "failed to load employee")
	}
	if employee == nil || !employee.IsActive {
		return apperr.New(apperr.KindUnauthenticated, "employee not found")
	}
	if bcrypt.CompareHashAndPassword([]byte(employee.PINHash), []byte(pin)) != nil {
		return apperr.New(apperr.KindUnauthorized, "PIN is incorrect")
	}

	if employee.EnrolledAt != nil {
		since := s.now().Sub(*employee.EnrolledAt)
		if since < FaceResetCooldown {
			remaining := (FaceResetCooldown - since).Round(time.Hour)
			return apperr.New(apperr.KindUnauthorized,
				"face can be reset again in %d hours", int(remaining.Hours()))
		}
	}

	if lat != nil && lng != nil {
		locations, err := s.locations.ListActive(ctx)
		if err != nil {
			return apperr.Wrap(apperr.KindStorageFailure, err, "failed to load locations")
		}
		if len(locations) > 0 {
			if match, _ := geofence.Resolve(*lat, *lng, nil, locations); match == nil {
				return apperr.New(apperr.KindOutOfGeofence,
					"face reset is only allowed inside a registered zone")
			}
		}
	}

	if err := s.employees.ClearEnrollment(ctx, employeeID, model.EnrollmentNone); err != nil {
		return apperr.Wrap(apperr.KindStorageFailure, err, "failed to reset enrollment")
	}
	return nil
}
