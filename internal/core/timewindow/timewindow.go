// Package timewindow decides which attendance action the clock currently
// allows and classifies check-ins as present or late. All evaluation happens
// in minutes since midnight in the organization's timezone; clients are never
// trusted to report "today".
package timewindow

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"attendance.service/internal/core/apperr"
	"attendance.service/internal/core/model"
)

// ServiceUnitGraceMinutes is how long past the late cutoff a service-unit
// check-in still counts as present (with the recorded time clamped).
const ServiceUnitGraceMinutes = 30

// ParseClock converts an "HH:MM" string to minutes since midnight.
func ParseClock(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return h*60 + m, nil
}

// MinutesOfDay returns t's minutes since midnight in its own location.
func MinutesOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// Status is the window evaluation for one instant.
type Status struct {
	CanCheckIn  bool
	CanCheckOut bool
	Message     string
}

// Evaluate computes the allowed actions. Check-in stays open from the
// check-in start all the way until check-out opens, so a late arrival can
// still be recorded; check-out runs [start, end] inclusive.
func Evaluate(now time.Time, s model.Settings) (Status, error) {
	nowMin := MinutesOfDay(now)

	ciStart, err := ParseClock(s.CheckInStart)
	if err != nil {
		return Status{}, err
	}
	coStart, err := ParseClock(s.CheckOutStart)
	if err != nil {
		return Status{}, err
	}
	coEnd, err := ParseClock(s.CheckOutEnd)
	if err != nil {
		return Status{}, err
	}

	st := Status{
		CanCheckIn:  nowMin >= ciStart && nowMin < coStart,
		CanCheckOut: nowMin >= coStart && nowMin <= coEnd,
	}

	switch {
	case st.CanCheckIn:
		st.Message = fmt.Sprintf("check-in open (%s-%s)", s.CheckInStart, s.CheckOutStart)
	case st.CanCheckOut:
		st.Message = fmt.Sprintf("check-out open (%s-%s)", s.CheckOutStart, s.CheckOutEnd)
	case nowMin < ciStart:
		st.Message = fmt.Sprintf("check-in has not started yet (opens %s)", s.CheckInStart)
	default:
		st.Message = "no attendance window left today"
	}
	return st, nil
}

// Permit rejects the action unless its window is open right now.
func Permit(action model.Action, now time.Time, s model.Settings) error {
	st, err := Evaluate(now, s)
	if err != nil {
		return apperr.Wrap(apperr.KindConfigMissing, err, "attendance windows are misconfigured")
	}

	switch action {
	case model.ActionCheckIn:
		if !st.CanCheckIn {
			return apperr.New(apperr.KindOutOfTimeWindow,
				"outside check-in hours (%s-%s)", s.CheckInStart, s.CheckOutStart)
		}
	case model.ActionCheckOut:
		if !st.CanCheckOut {
			return apperr.New(apperr.KindOutOfTimeWindow,
				"outside check-out hours (%s-%s)", s.CheckOutStart, s.CheckOutEnd)
		}
	default:
		return apperr.New(apperr.KindInvalidInput, "unknown action %q", action)
	}
	return nil
}

// Classification is the late-policy outcome for a check-in.
type Classification struct {
	Status model.AttendanceStatus
	// RecordedTime is what goes on the record. For a service-unit arrival
	// inside the grace window this is clamped to the late cutoff, not the
	// real submission time.
	RecordedTime time.Time
}

// Classify applies the late policy. Headquarters staff are late the minute
// after the cutoff. Service-unit staff get a 30-minute grace: inside it they
// are recorded present at exactly the cutoff time; past it they are late at
// the real time.
func Classify(now time.Time, s model.Settings, isHeadquarters bool) (Classification, error) {
	lateAfter, err := ParseClock(s.LateAfter)
	if err != nil {
		return Classification{}, apperr.Wrap(apperr.KindConfigMissing, err, "late cutoff is misconfigured")
	}

	nowMin := MinutesOfDay(now)

	if !isHeadquarters && nowMin > lateAfter && nowMin <= lateAfter+ServiceUnitGraceMinutes {
		clamped := time.Date(now.Year(), now.Month(), now.Day(),
			lateAfter/60, lateAfter%60, 0, 0, now.Location())
		return Classification{Status: model.StatusPresent, RecordedTime: clamped}, nil
	}

	status := model.StatusPresent
	if nowMin > lateAfter {
		status = model.StatusLate
	}
	return Classification{Status: status, RecordedTime: now}, nil
}
