package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"attendance.service/internal/core/apperr"
	"attendance.service/internal/core/model"
	"attendance.service/internal/ports/messaging"
	"github.com/google/uuid"
)

var orgTZ = time.FixedZone("ICT", 7*3600)

var defaultSettings = model.Settings{
	ID:                 1,
	CheckInStart:       "06:00",
	CheckInEnd:         "08:30",
	CheckOutStart:      "15:30",
	CheckOutEnd:        "20:00",
	LateAfter:          "08:30",
	FaceMatchThreshold: 0.5,
}

func orgTime(hour, minute int) time.Time {
	return time.Date(2025, 1, 15, hour, minute, 0, 0, orgTZ)
}

type fixture struct {
	employees *fakeEmployeeRepo
	locations *fakeLocationRepo
	records   *fakeAttendanceRepo
	settings  *fakeSettingsRepo
	producer  *fakeProducer
	service   *AttendanceService
	employee  *model.Employee
	zone      model.Location
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()

	zone := model.Location{
		ID:             uuid.New(),
		Name:           "Head Office",
		Lat:            13.7563,
		Lng:            100.5018,
		RadiusMeters:   300,
		IsHeadquarters: true,
		IsActive:       true,
	}
	employee := &model.Employee{
		ID:               uuid.New(),
		EmployeeCode:     "EMP001",
		FullName:         "Somchai J.",
		IsActive:         true,
		EnrollmentStatus: model.EnrollmentEnrolled,
		FaceDescriptor:   []float64{0, 0, 0, 0},
	}

	f := &fixture{
		employees: newFakeEmployeeRepo(employee),
		locations: &fakeLocationRepo{list: []model.Location{zone}},
		records:   newFakeAttendanceRepo(),
		settings:  &fakeSettingsRepo{settings: &defaultSettings},
		producer:  &fakeProducer{},
		employee:  employee,
		zone:      zone,
	}
	f.service = NewAttendanceService(f.employees, f.locations, f.records, f.settings, f.producer, orgTZ).
		WithClock(func() time.Time { return now })
	return f
}

func (f *fixture) request(action model.Action) VerificationRequest {
	return VerificationRequest{
		EmployeeID:        f.employee.ID,
		Action:            action,
		Lat:               f.zone.Lat,
		Lng:               f.zone.Lng,
		DeviceFingerprint: "device-a",
		LivenessPassed:    true,
		FaceDescriptor:    []float64{0.1, 0, 0, 0},
	}
}

func TestVerifyCheckInHappyPath(t *testing.T) {
	f := newFixture(t, orgTime(8, 0))

	res, err := f.service.Verify(context.Background(), f.request(model.ActionCheckIn))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Record.Status != model.StatusPresent {
		t.Fatalf("status = %s, want present", res.Record.Status)
	}
	if !res.Record.CheckInTime.Equal(orgTime(8, 0)) {
		t.Fatalf("check-in time = %v, want 08:00", res.Record.CheckInTime)
	}
	if res.Record.LocationID == nil || *res.Record.LocationID != f.zone.ID {
		t.Fatalf("record not bound to the resolved zone: %+v", res.Record)
	}

	stored := f.records.byID(res.Record.ID)
	if stored == nil || stored.CheckInTime == nil {
		t.Fatalf("record was not persisted")
	}

	// The fresh descriptor gets folded into the stored template.
	blended := f.employees.updated[f.employee.ID]
	if blended == nil {
		t.Fatalf("adaptive template update did not run")
	}
	if got := blended[0]; got < 0.0199 || got > 0.0201 {
		t.Fatalf("blended[0] = %f, want 0.02 (old*0.8 + live*0.2)", got)
	}
}

func TestVerifyCheckInLateKeepsReason(t *testing.T) {
	f := newFixture(t, orgTime(8, 45))

	req := f.request(model.ActionCheckIn)
	req.LateReason = "traffic"
	res, err := f.service.Verify(context.Background(), req)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Record.Status != model.StatusLate {
		t.Fatalf("status = %s, want late at headquarters after the cutoff", res.Record.Status)
	}
	if res.Record.LateReason == nil || *res.Record.LateReason != "traffic" {
		t.Fatalf("late reason not kept: %+v", res.Record)
	}
	if !strings.Contains(res.Message, "late") {
		t.Fatalf("message %q does not flag lateness", res.Message)
	}
}

func TestVerifyDoubleCheckInRejected(t *testing.T) {
	f := newFixture(t, orgTime(8, 0))

	first, err := f.service.Verify(context.Background(), f.request(model.ActionCheckIn))
	if err != nil {
		t.Fatalf("first Verify: %v", err)
	}

	_, err = f.service.Verify(context.Background(), f.request(model.ActionCheckIn))
	if apperr.KindOf(err) != apperr.KindAlreadyCheckedIn {
		t.Fatalf("second check-in err = %v, want AlreadyCheckedIn", err)
	}

	// The original record must be untouched.
	stored := f.records.byID(first.Record.ID)
	if !stored.CheckInTime.Equal(*first.Record.CheckInTime) {
		t.Fatalf("second attempt modified the committed record")
	}
	if len(f.records.records) != 1 {
		t.Fatalf("second attempt created a record")
	}
}

func TestVerifyDeviceConflict(t *testing.T) {
	f := newFixture(t, orgTime(8, 0))

	// Another employee already used this device today.
	other := orgTime(7, 30)
	f.records.records["other"] = &model.AttendanceRecord{
		ID:                uuid.New(),
		EmployeeID:        uuid.New(),
		Date:              "2025-01-15",
		CheckInTime:       &other,
		DeviceFingerprint: "device-a",
	}

	_, err := f.service.Verify(context.Background(), f.request(model.ActionCheckIn))
	if apperr.KindOf(err) != apperr.KindDeviceConflict {
		t.Fatalf("err = %v, want DeviceConflict", err)
	}
}

func TestVerifyCheckOutFlow(t *testing.T) {
	f := newFixture(t, orgTime(8, 0))
	if _, err := f.service.Verify(context.Background(), f.request(model.ActionCheckIn)); err != nil {
		t.Fatalf("check-in: %v", err)
	}

	f.service.WithClock(func() time.Time { return orgTime(16, 0) })
	res, err := f.service.Verify(context.Background(), f.request(model.ActionCheckOut))
	if err != nil {
		t.Fatalf("check-out: %v", err)
	}
	if res.Record.CheckOutTime == nil || !res.Record.CheckOutTime.Equal(orgTime(16, 0)) {
		t.Fatalf("check-out time = %v, want 16:00", res.Record.CheckOutTime)
	}

	stored := f.records.byID(res.Record.ID)
	if stored.CheckOutTime == nil || !stored.CheckOutLiveness {
		t.Fatalf("check-out not persisted: %+v", stored)
	}

	if len(f.producer.hrExports) != 1 || len(f.producer.emails) != 1 {
		t.Fatalf("published %d HR / %d email events, want 1 / 1",
			len(f.producer.hrExports), len(f.producer.emails))
	}
	email, ok := f.producer.emails[0].(messaging.EmailEvent)
	if !ok {
		t.Fatalf("email payload has type %T", f.producer.emails[0])
	}
	if email.HoursWorked < 7.99 || email.HoursWorked > 8.01 {
		t.Fatalf("HoursWorked = %f, want 8", email.HoursWorked)
	}
}

func TestVerifyCheckOutDeviceMismatch(t *testing.T) {
	f := newFixture(t, orgTime(8, 0))
	if _, err := f.service.Verify(context.Background(), f.request(model.ActionCheckIn)); err != nil {
		t.Fatalf("check-in: %v", err)
	}

	f.service.WithClock(func() time.Time { return orgTime(16, 0) })
	req := f.request(model.ActionCheckOut)
	req.DeviceFingerprint = "device-b"

	_, err := f.service.Verify(context.Background(), req)
	if apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Fatalf("err = %v, want Unauthorized for a different device", err)
	}

	// Nothing was written and nothing was published.
	for _, rec := range f.records.records {
		if rec.CheckOutTime != nil {
			t.Fatalf("record was closed despite the device mismatch")
		}
	}
	if len(f.producer.hrExports)+len(f.producer.emails) != 0 {
		t.Fatalf("events published on a rejected check-out")
	}
}

func TestVerifyCheckOutWithoutCheckIn(t *testing.T) {
	f := newFixture(t, orgTime(16, 0))
	_, err := f.service.Verify(context.Background(), f.request(model.ActionCheckOut))
	if apperr.KindOf(err) != apperr.KindNotCheckedIn {
		t.Fatalf("err = %v, want NotCheckedIn", err)
	}
}

func TestVerifyCheckOutTwiceRejected(t *testing.T) {
	f := newFixture(t, orgTime(8, 0))
	if _, err := f.service.Verify(context.Background(), f.request(model.ActionCheckIn)); err != nil {
		t.Fatalf("check-in: %v", err)
	}

	f.service.WithClock(func() time.Time { return orgTime(16, 0) })
	if _, err := f.service.Verify(context.Background(), f.request(model.ActionCheckOut)); err != nil {
		t.Fatalf("first check-out: %v", err)
	}

	_, err := f.service.Verify(context.Background(), f.request(model.ActionCheckOut))
	if apperr.KindOf(err) != apperr.KindAlreadyCheckedOut {
		t.Fatalf("err = %v, want AlreadyCheckedOut", err)
	}
	if len(f.producer.emails) != 1 {
		t.Fatalf("second check-out republished events")
	}
}

func TestVerifyRejectsBadEnvelopes(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(f *fixture, req *VerificationRequest)
		want   apperr.Kind
	}{
		{"unknown action", func(f *fixture, req *VerificationRequest) {
			req.Action = model.Action("nap")
		}, apperr.KindInvalidInput},
		{"missing device", func(f *fixture, req *VerificationRequest) {
			req.DeviceFingerprint = ""
		}, apperr.KindInvalidInput},
		{"unknown employee", func(f *fixture, req *VerificationRequest) {
			req.EmployeeID = uuid.New()
		}, apperr.KindUnauthenticated},
		{"inactive employee", func(f *fixture, req *VerificationRequest) {
			f.employees.byID[f.employee.ID].IsActive = false
		}, apperr.KindUnauthenticated},
		{"not enrolled", func(f *fixture, req *VerificationRequest) {
			f.employees.byID[f.employee.ID].EnrollmentStatus = model.EnrollmentRevoked
		}, apperr.KindUnauthorized},
		{"settings missing", func(f *fixture, req *VerificationRequest) {
			f.settings.settings = nil
		}, apperr.KindConfigMissing},
		{"liveness not passed", func(f *fixture, req *VerificationRequest) {
			req.LivenessPassed = false
		}, apperr.KindLivenessFailed},
		{"no face evidence", func(f *fixture, req *VerificationRequest) {
			req.FaceDescriptor = nil
			req.FaceMatchScore = nil
		}, apperr.KindInvalidInput},
		{"descriptor too far", func(f *fixture, req *VerificationRequest) {
			req.FaceDescriptor = []float64{2, 2, 2, 2}
		}, apperr.KindFaceMismatch},
		{"client score at threshold", func(f *fixture, req *VerificationRequest) {
			req.FaceDescriptor = nil
			score := 0.5
			req.FaceMatchScore = &score
		}, apperr.KindFaceMismatch},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := newFixture(t, orgTime(8, 0))
			req := f.request(model.ActionCheckIn)
			c.mutate(f, &req)

			_, err := f.service.Verify(context.Background(), req)
			if apperr.KindOf(err) != c.want {
				t.Fatalf("err = %v, want kind %v", err, c.want)
			}
			if len(f.records.records) != 0 {
				t.Fatalf("rejected envelope still wrote a record")
			}
		})
	}
}

func TestVerifyOutOfTimeWindow(t *testing.T) {
	f := newFixture(t, orgTime(10, 0))
	_, err := f.service.Verify(context.Background(), f.request(model.ActionCheckOut))
	if apperr.KindOf(err) != apperr.KindOutOfTimeWindow {
		t.Fatalf("err = %v, want OutOfTimeWindow", err)
	}
}

func TestVerifyOutOfGeofence(t *testing.T) {
	f := newFixture(t, orgTime(8, 0))
	req := f.request(model.ActionCheckIn)
	req.Lat, req.Lng = 14.5, 101.0

	_, err := f.service.Verify(context.Background(), req)
	if apperr.KindOf(err) != apperr.KindOutOfGeofence {
		t.Fatalf("err = %v, want OutOfGeofence", err)
	}
	if !strings.Contains(err.Error(), f.zone.Name) {
		t.Fatalf("miss message %q does not name the nearest zone", err.Error())
	}
}

func TestVerifyClientScoreSkipsBlend(t *testing.T) {
	f := newFixture(t, orgTime(8, 0))
	req := f.request(model.ActionCheckIn)
	req.FaceDescriptor = nil
	score := 0.3
	req.FaceMatchScore = &score

	if _, err := f.service.Verify(context.Background(), req); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(f.employees.updated) != 0 {
		t.Fatalf("template update ran without a fresh descriptor")
	}
}

func TestTodayRecord(t *testing.T) {
	f := newFixture(t, orgTime(8, 0))

	rec, err := f.service.TodayRecord(context.Background(), f.employee.ID)
	if err != nil || rec != nil {
		t.Fatalf("TodayRecord before check-in = (%+v, %v), want (nil, nil)", rec, err)
	}

	if _, err := f.service.Verify(context.Background(), f.request(model.ActionCheckIn)); err != nil {
		t.Fatalf("check-in: %v", err)
	}
	rec, err = f.service.TodayRecord(context.Background(), f.employee.ID)
	if err != nil {
		t.Fatalf("TodayRecord: %v", err)
	}
	if rec == nil || rec.Date != "2025-01-15" {
		t.Fatalf("TodayRecord = %+v, want the committed record for 2025-01-15", rec)
	}
}

func TestUpdateSettingsValidation(t *testing.T) {
	f := newFixture(t, orgTime(8, 0))

	bad := defaultSettings
	bad.LateAfter = "25:00"
	if _, err := f.service.UpdateSettings(context.Background(), bad); apperr.KindOf(err) != apperr.KindInvalidInput {
		t.Fatalf("bad clock err = %v, want InvalidInput", err)
	}

	bad = defaultSettings
	bad.FaceMatchThreshold = 1.2
	if _, err := f.service.UpdateSettings(context.Background(), bad); apperr.KindOf(err) != apperr.KindInvalidInput {
		t.Fatalf("bad threshold err = %v, want InvalidInput", err)
	}

	good := defaultSettings
	good.LateAfter = "09:00"
	updated, err := f.service.UpdateSettings(context.Background(), good)
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if updated.LateAfter != "09:00" || f.settings.settings.LateAfter != "09:00" {
		t.Fatalf("settings not stored: %+v", updated)
	}
}
