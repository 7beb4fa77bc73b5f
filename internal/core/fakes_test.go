package core

import (
	"context"
	"time"

	"attendance.service/internal/core/model"
	"github.com/google/uuid"
)

// In-memory ports for the service tests. They mirror the semantics of the
// Postgres repositories: lookups return copies, CreateCheckIn is
// insert-if-absent on (employee, date), ForceCheckOut is a no-op on records
// that are already closed.

type fakeEmployeeRepo struct {
	byID    map[uuid.UUID]*model.Employee
	updated map[uuid.UUID][]float64
}

func newFakeEmployeeRepo(employees ...*model.Employee) *fakeEmployeeRepo {
	r := &fakeEmployeeRepo{
		byID:    make(map[uuid.UUID]*model.Employee),
		updated: make(map[uuid.UUID][]float64),
	}
	for _, e := range employees {
		r.byID[e.ID] = e
	}
	return r
}

func (r *fakeEmployeeRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Employee, error) {
	e, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (r *fakeEmployeeRepo) GetByCode(_ context.Context, code string) (*model.Employee, error) {
	for _, e := range r.byID {
		if e.EmployeeCode == code {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeEmployeeRepo) SaveEnrollment(_ context.Context, id uuid.UUID, descriptor []float64, deviceFingerprint string, enrolledAt time.Time) error {
	e := r.byID[id]
	e.FaceDescriptor = descriptor
	e.EnrollmentStatus = model.EnrollmentEnrolled
	e.EnrolledAt = &enrolledAt
	if deviceFingerprint != "" {
		e.DeviceFingerprint = &deviceFingerprint
		e.DeviceBoundAt = &enrolledAt
	}
	return nil
}

func (r *fakeEmployeeRepo) ClearEnrollment(_ context.Context, id uuid.UUID, status model.EnrollmentStatus) error {
	e := r.byID[id]
	e.FaceDescriptor = nil
	e.EnrollmentStatus = status
	return nil
}

func (r *fakeEmployeeRepo) UpdateDescriptor(_ context.Context, id uuid.UUID, descriptor []float64) error {
	r.updated[id] = descriptor
	r.byID[id].FaceDescriptor = descriptor
	return nil
}

type fakeLocationRepo struct {
	list []model.Location
}

func (r *fakeLocationRepo) ListActive(_ context.Context) ([]model.Location, error) {
	return r.list, nil
}

type fakeAttendanceRepo struct {
	records  map[string]*model.AttendanceRecord
	forceErr map[uuid.UUID]error
}

func newFakeAttendanceRepo() *fakeAttendanceRepo {
	return &fakeAttendanceRepo{
		records:  make(map[string]*model.AttendanceRecord),
		forceErr: make(map[uuid.UUID]error),
	}
}

func recordKey(employeeID uuid.UUID, date string) string {
	return employeeID.String() + "|" + date
}

func (r *fakeAttendanceRepo) GetByEmployeeAndDate(_ context.Context, employeeID uuid.UUID, date string) (*model.AttendanceRecord, error) {
	rec, ok := r.records[recordKey(employeeID, date)]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (r *fakeAttendanceRepo) DeviceUsedByOther(_ context.Context, deviceFingerprint, date string, employeeID uuid.UUID) (bool, error) {
	for _, rec := range r.records {
		if rec.Date == date && rec.DeviceFingerprint == deviceFingerprint && rec.EmployeeID != employeeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeAttendanceRepo) CreateCheckIn(_ context.Context, rec *model.AttendanceRecord) (bool, error) {
	key := recordKey(rec.EmployeeID, rec.Date)
	if _, exists := r.records[key]; exists {
		return false, nil
	}
	cp := *rec
	r.records[key] = &cp
	return true, nil
}

func (r *fakeAttendanceRepo) UpdateCheckOut(_ context.Context, id uuid.UUID, at time.Time, lat, lng float64, matchScore float64) error {
	for _, rec := range r.records {
		if rec.ID == id && rec.CheckOutTime == nil {
			rec.CheckOutTime = &at
			rec.CheckOutLat = &lat
			rec.CheckOutLng = &lng
			rec.CheckOutLiveness = true
			rec.CheckOutFaceMatch = &matchScore
			return nil
		}
	}
	return nil
}

func (r *fakeAttendanceRepo) ListOpenSince(_ context.Context, cutoffDate string) ([]model.AttendanceRecord, error) {
	var out []model.AttendanceRecord
	for _, rec := range r.records {
		if rec.Date >= cutoffDate && rec.CheckInTime != nil && rec.CheckOutTime == nil {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (r *fakeAttendanceRepo) ForceCheckOut(_ context.Context, id uuid.UUID, at time.Time) error {
	if err := r.forceErr[id]; err != nil {
		return err
	}
	for _, rec := range r.records {
		if rec.ID != id {
			continue
		}
		if rec.CheckOutTime != nil {
			return nil
		}
		rec.CheckOutTime = &at
		rec.CheckOutLiveness = false
		rec.CheckOutFaceMatch = nil
		rec.AutoCheckout = true
		return nil
	}
	return nil
}

func (r *fakeAttendanceRepo) byID(id uuid.UUID) *model.AttendanceRecord {
	for _, rec := range r.records {
		if rec.ID == id {
			return rec
		}
	}
	return nil
}

type fakeSettingsRepo struct {
	settings *model.Settings
}

func (r *fakeSettingsRepo) Get(_ context.Context) (*model.Settings, error) {
	if r.settings == nil {
		return nil, nil
	}
	cp := *r.settings
	return &cp, nil
}

func (r *fakeSettingsRepo) Update(_ context.Context, s model.Settings) (*model.Settings, error) {
	s.UpdatedAt = time.Now()
	r.settings = &s
	cp := s
	return &cp, nil
}

type fakeProducer struct {
	hrExports []interface{}
	emails    []interface{}
}

func (p *fakeProducer) PublishHRExport(_ context.Context, body interface{}) error {
	p.hrExports = append(p.hrExports, body)
	return nil
}

func (p *fakeProducer) PublishEmail(_ context.Context, body interface{}) error {
	p.emails = append(p.emails, body)
	return nil
}
