package core

import (
	"context"
	"fmt"
	"time"

	"attendance.service/internal/core/apperr"
	"attendance.service/internal/core/face"
	"attendance.service/internal/core/geofence"
	"attendance.service/internal/core/model"
	"attendance.service/internal/core/timewindow"
	"attendance.service/internal/ports/messaging"
	"attendance.service/internal/ports/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// VerificationRequest is the envelope a client submits for either action.
// LivenessPassed and FaceMatchScore are hints: the server re-validates every
// decision it can and threshold-checks the rest. FaceDescriptor, when the
// client includes the fresh embedding, lets the server recompute the distance
// itself and feed the adaptive template update.
type VerificationRequest struct {
	EmployeeID        uuid.UUID
	Action            model.Action
	Lat               float64
	Lng               float64
	LocationHint      *uuid.UUID
	DeviceFingerprint string
	LivenessPassed    bool
	FaceMatchScore    *float64
	FaceDescriptor    []float64
	LateReason        string
}

// VerificationResult is returned on a committed transition.
type VerificationResult struct {
	Message string                  `json:"message"`
	Record  *model.AttendanceRecord `json:"record"`
}

// verifiedMatch only ever exists after the server-side face check has passed;
// nothing constructs one from client-asserted booleans.
type verifiedMatch struct {
	distance   float64
	descriptor []float64
}

// AttendanceService is the server-side state machine that turns a verified
// envelope into the day's attendance record.
type AttendanceService struct {
	employees repository.EmployeeRepository
	locations repository.LocationRepository
	records   repository.AttendanceRepository
	settings  repository.SettingsRepository
	producer  messaging.QueueProducer
	orgTZ     *time.Location
	now       func() time.Time
}

// NewAttendanceService creates a new instance of our main application service,
// wiring up the repositories, the message queue producer and the fixed
// organizational timezone every date bucket is computed in.
func NewAttendanceService(
	employees repository.EmployeeRepository,
	locations repository.LocationRepository,
	records repository.AttendanceRepository,
	settings repository.SettingsRepository,
	producer messaging.QueueProducer,
	orgTZ *time.Location,
) *AttendanceService {
	return &AttendanceService{
		employees: employees,
		locations: locations,
		records:   records,
		settings:  settings,
		producer:  producer,
		orgTZ:     orgTZ,
		now:       time.Now,
	}
}

// WithClock overrides the service clock, for tests.
func (s *AttendanceService) WithClock(now func() time.Time) *AttendanceService {
	s.now = now
	return s
}

// Verify is the core business logic: it re-validates the whole envelope
// server-side and commits exactly one state transition, or rejects with a
// typed error and writes nothing.
func (s *AttendanceService) Verify(ctx context.Context, req VerificationRequest) (*VerificationResult, error) {
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("app.employeeId", req.EmployeeID.String()),
		attribute.String("app.action", string(req.Action)),
	)

	if req.Action != model.ActionCheckIn && req.Action != model.ActionCheckOut {
		return nil, apperr.New(apperr.KindInvalidInput, "unknown action %q", req.Action)
	}
	if req.EmployeeID == uuid.Nil || req.DeviceFingerprint == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "missing required fields")
	}

	employee, err := s.employees.GetByID(ctx, req.EmployeeID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorageFailure, err, "failed to load employee")
	}
	if employee == nil || !employee.IsActive {
		return nil, apperr.New(apperr.KindUnauthenticated, "employee not found")
	}
	if employee.EnrollmentStatus != model.EnrollmentEnrolled {
		return nil, apperr.New(apperr.KindUnauthorized, "face not enrolled")
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorageFailure, err, "failed to load settings")
	}
	if settings == nil {
		return nil, apperr.New(apperr.KindConfigMissing, "attendance settings not configured")
	}

	// The liveness flag and a match score are both required. Their absence
	// is a hard reject; their presence is only a hint until verified below.
	if !req.LivenessPassed {
		return nil, apperr.New(apperr.KindLivenessFailed, "liveness check did not pass")
	}
	if req.FaceMatchScore == nil && len(req.FaceDescriptor) == 0 {
		return nil, apperr.New(apperr.KindInvalidInput, "no face verification result supplied")
	}

	match, err := s.verifyFace(employee, settings, req)
	if err != nil {
		return nil, err
	}

	now := s.now().In(s.orgTZ)
	if err := timewindow.Permit(req.Action, now, *settings); err != nil {
		return nil, err
	}

	zone, err := s.resolveGeofence(ctx, req, employee)
	if err != nil {
		return nil, err
	}

	if req.Action == model.ActionCheckIn {
		return s.checkIn(ctx, employee, settings, req, match, zone, now)
	}
	return s.checkOut(ctx, employee, req, match, now)
}

// verifyFace is the only constructor of verifiedMatch. With a fresh
// descriptor it recomputes the distance against the stored template; without
// one it still threshold-checks the client-computed distance.
func (s *AttendanceService) verifyFace(employee *model.Employee, settings *model.Settings, req VerificationRequest) (*verifiedMatch, error) {
	threshold := settings.FaceMatchThreshold
	if threshold <= 0 {
		threshold = face.DefaultThreshold
	}

	if len(req.FaceDescriptor) > 0 {
		ok, d := face.Match(req.FaceDescriptor, employee.FaceDescriptor, threshold)
		if !ok {
			return nil, apperr.New(apperr.KindFaceMismatch,
				"face does not match the enrolled template (distance %.3f)", d)
		}
		return &verifiedMatch{distance: d, descriptor: req.FaceDescriptor}, nil
	}

	d := *req.FaceMatchScore
	if d >= threshold {
		return nil, apperr.New(apperr.KindFaceMismatch,
			"face does not match the enrolled template (distance %.3f)", d)
	}
	return &verifiedMatch{distance: d}, nil
}

// resolveGeofence verifies the submitted coordinates against the registered
// zones. A client-supplied location hint is never authoritative; when it
// disagrees with the resolved zone the resolution wins.
func (s *AttendanceService) resolveGeofence(ctx context.Context, req VerificationRequest, employee *model.Employee) (*geofence.Match, error) {
	locations, err := s.locations.ListActive(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorageFailure, err, "failed to load locations")
	}

	zone, miss := geofence.Resolve(req.Lat, req.Lng, employee.LocationID, locations)
	if zone == nil {
		if miss != nil && miss.NearestName != "" {
			return nil, apperr.New(apperr.KindOutOfGeofence,
				"outside every admission zone; nearest is %s, %.0f m away",
				miss.NearestName, miss.NearestDistance)
		}
		return nil, apperr.New(apperr.KindOutOfGeofence, "no admission zones are registered")
	}

	if req.LocationHint != nil && *req.LocationHint != zone.Location.ID {
		log.Ctx(ctx).Warn().
			Str("hinted", req.LocationHint.String()).
			Str("resolved", zone.Location.ID.String()).
			Msg("Client location hint disagrees with resolved geofence")
	}
	return zone, nil
}

// checkIn handles the Absent -> CheckedIn transition.
func (s *AttendanceService) checkIn(ctx context.Context, employee *model.Employee, settings *model.Settings,
	req VerificationRequest, match *verifiedMatch, zone *geofence.Match, now time.Time) (*VerificationResult, error) {

	today := now.Format(time.DateOnly)

	// Best-effort anti-sharing check. Not atomic against a concurrent
	// check-in from the same device; the (employee, date) key below is the
	// only hard constraint.
	used, err := s.records.DeviceUsedByOther(ctx, req.DeviceFingerprint, today, employee.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorageFailure, err, "failed to check device usage")
	}
	if used {
		return nil, apperr.New(apperr.KindDeviceConflict,
			"this device already recorded attendance for another employee today")
	}

	existing, err := s.records.GetByEmployeeAndDate(ctx, employee.ID, today)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorageFailure, err, "failed to load today's record")
	}
	if existing != nil && existing.CheckInTime != nil {
		return nil, apperr.New(apperr.KindAlreadyCheckedIn, "already checked in today")
	}

	class, err := timewindow.Classify(now, *settings, zone.Location.IsHeadquarters)
	if err != nil {
		return nil, err
	}

	rec := &model.AttendanceRecord{
		ID:                uuid.New(),
		EmployeeID:        employee.ID,
		LocationID:        &zone.Location.ID,
		Date:              today,
		CheckInTime:       &class.RecordedTime,
		CheckInLat:        &req.Lat,
		CheckInLng:        &req.Lng,
		DeviceFingerprint: req.DeviceFingerprint,
		CheckInLiveness:   true,
		CheckInFaceMatch:  &match.distance,
		Status:            class.Status,
		CreatedAt:         now,
	}
	if class.Status == model.StatusLate && req.LateReason != "" {
		rec.LateReason = &req.LateReason
	}

	created, err := s.records.CreateCheckIn(ctx, rec)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorageFailure, err, "failed to record check-in")
	}
	if !created {
		// Lost the insert race; same outcome as the idempotency guard.
		return nil, apperr.New(apperr.KindAlreadyCheckedIn, "already checked in today")
	}

	s.blendTemplate(ctx, employee, match)

	msg := fmt.Sprintf("checked in - %s", employee.FullName)
	if class.Status == model.StatusLate {
		msg += " (late)"
	}
	return &VerificationResult{Message: msg, Record: rec}, nil
}

// checkOut handles the CheckedIn -> CheckedOut transition. CheckedOut is
// terminal for the day.
func (s *AttendanceService) checkOut(ctx context.Context, employee *model.Employee,
	req VerificationRequest, match *verifiedMatch, now time.Time) (*VerificationResult, error) {

	today := now.Format(time.DateOnly)

	rec, err := s.records.GetByEmployeeAndDate(ctx, employee.ID, today)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorageFailure, err, "failed to load today's record")
	}
	if rec == nil || rec.CheckInTime == nil {
		return nil, apperr.New(apperr.KindNotCheckedIn, "not checked in yet today")
	}
	if rec.CheckOutTime != nil {
		return nil, apperr.New(apperr.KindAlreadyCheckedOut, "already checked out today")
	}
	if rec.DeviceFingerprint != req.DeviceFingerprint {
		return nil, apperr.New(apperr.KindUnauthorized, "check-out must use the device used at check-in")
	}

	if err := s.records.UpdateCheckOut(ctx, rec.ID, now, req.Lat, req.Lng, match.distance); err != nil {
		return nil, apperr.Wrap(apperr.KindStorageFailure, err, "failed to record check-out")
	}

	rec.CheckOutTime = &now
	rec.CheckOutLat = &req.Lat
	rec.CheckOutLng = &req.Lng
	rec.CheckOutLiveness = true
	rec.CheckOutFaceMatch = &match.distance

	s.blendTemplate(ctx, employee, match)
	s.publishClosed(ctx, employee, rec)

	return &VerificationResult{
		Message: fmt.Sprintf("checked out - %s", employee.FullName),
		Record:  rec,
	}, nil
}

// blendTemplate folds the fresh descriptor into the stored template after a
// successful verification. Best-effort: a failure here never unwinds the
// attendance transition.
func (s *AttendanceService) blendTemplate(ctx context.Context, employee *model.Employee, match *verifiedMatch) {
	if len(match.descriptor) != len(employee.FaceDescriptor) || len(match.descriptor) == 0 {
		return
	}
	blended := face.Blend(employee.FaceDescriptor, match.descriptor, face.BlendWeight)
	if err := s.employees.UpdateDescriptor(ctx, employee.ID, blended); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("Adaptive template update failed")
	}
}

// publishClosed emits the closed-record events for the HR export and email
// workers. The record is already committed, so publish failures are logged
// and absorbed.
func (s *AttendanceService) publishClosed(ctx context.Context, employee *model.Employee, rec *model.AttendanceRecord) {
	closed := messaging.AttendanceClosedEvent{
		RecordID:     rec.ID.String(),
		EmployeeID:   employee.EmployeeCode,
		Date:         rec.Date,
		CheckInTime:  *rec.CheckInTime,
		CheckOutTime: *rec.CheckOutTime,
		Status:       string(rec.Status),
		AutoCheckout: rec.AutoCheckout,
	}
	if err := s.producer.PublishHRExport(ctx, closed); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("Failed to publish HR export event")
	}

	email := messaging.EmailEvent{
		RecordID:    rec.ID.String(),
		EmployeeID:  employee.EmployeeCode,
		FullName:    employee.FullName,
		HoursWorked: rec.CheckOutTime.Sub(*rec.CheckInTime).Hours(),
		OccurredAt:  s.now(),
	}
	if err := s.producer.PublishEmail(ctx, email); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("Failed to publish email event")
	}
}

// TodayRecord returns the employee's record for the current organizational
// day, or nil when none exists yet. Used by the status screen.
func (s *AttendanceService) TodayRecord(ctx context.Context, employeeID uuid.UUID) (*model.AttendanceRecord, error) {
	today := s.now().In(s.orgTZ).Format(time.DateOnly)
	rec, err := s.records.GetByEmployeeAndDate(ctx, employeeID, today)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorageFailure, err, "failed to load today's record")
	}
	return rec, nil
}

// GetSettings loads the singleton settings for the admin screen and clients.
func (s *AttendanceService) GetSettings(ctx context.Context) (*model.Settings, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorageFailure, err, "failed to load settings")
	}
	if settings == nil {
		return nil, apperr.New(apperr.KindConfigMissing, "attendance settings not configured")
	}
	return settings, nil
}

// UpdateSettings validates and stores the singleton settings.
func (s *AttendanceService) UpdateSettings(ctx context.Context, settings model.Settings) (*model.Settings, error) {
	for _, clock := range []string{settings.CheckInStart, settings.CheckInEnd,
		settings.CheckOutStart, settings.CheckOutEnd, settings.LateAfter} {
		if _, err := timewindow.ParseClock(clock); err != nil {
			return nil, apperr.Wrap(apperr.KindInvalidInput, err, "invalid time-of-day value")
		}
	}
	if settings.FaceMatchThreshold <= 0 || settings.FaceMatchThreshold >= 1 {
		return nil, apperr.New(apperr.KindInvalidInput, "face match threshold must be in (0, 1)")
	}

	updated, err := s.settings.Update(ctx, settings)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorageFailure, err, "failed to update settings")
	}
	return updated, nil
}
