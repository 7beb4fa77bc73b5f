package core

import (
	"context"
	"time"

	"attendance.service/internal/core/apperr"
	"attendance.service/internal/core/model"
	"attendance.service/internal/core/timewindow"
	"attendance.service/internal/ports/messaging"
	"attendance.service/internal/ports/repository"
	"github.com/rs/zerolog/log"
)

// SweepLookbackDays is how far back the sweeper scans for open records, so a
// few missed scheduled runs still get recovered.
const SweepLookbackDays = 7

// Sweeper force-closes records whose owners forgot to check out. It runs off
// an external schedule and bypasses the per-request verification chain: this
// is an administrative close, not an employee action.
type Sweeper struct {
	records   repository.AttendanceRepository
	settings  repository.SettingsRepository
	employees repository.EmployeeRepository
	producer  messaging.QueueProducer
	orgTZ     *time.Location
	now       func() time.Time
}

// NewSweeper creates a sweeper over the given repositories. Force-closed
// records still go to the HR export queue, same as a manual check-out.
func NewSweeper(records repository.AttendanceRepository, settings repository.SettingsRepository,
	employees repository.EmployeeRepository, producer messaging.QueueProducer, orgTZ *time.Location) *Sweeper {
	return &Sweeper{
		records:   records,
		settings:  settings,
		employees: employees,
		producer:  producer,
		orgTZ:     orgTZ,
		now:       time.Now,
	}
}

// WithClock overrides the sweeper clock, for tests.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// SweepResult counts what one run did. Failures are retried by the next
// scheduled run, so partial progress is fine.
type SweepResult struct {
	Closed int `json:"closed"`
	Failed int `json:"failed"`
}

// Sweep closes every record in the lookback window with a check-in and no
// check-out. The forced check-out time is the record's own date combined
// with the configured check-out start, in the organization's timezone, never
// the sweep's execution time. Already-closed records are skipped by the
// repository's guard, which also makes re-runs no-ops.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return SweepResult{}, apperr.Wrap(apperr.KindStorageFailure, err, "failed to load settings")
	}
	if settings == nil {
		return SweepResult{}, apperr.New(apperr.KindConfigMissing, "attendance settings not configured")
	}

	coStart, err := timewindow.ParseClock(settings.CheckOutStart)
	if err != nil {
		return SweepResult{}, apperr.Wrap(apperr.KindConfigMissing, err, "check-out start is misconfigured")
	}

	cutoff := s.now().In(s.orgTZ).AddDate(0, 0, -SweepLookbackDays).Format(time.DateOnly)

	open, err := s.records.ListOpenSince(ctx, cutoff)
	if err != nil {
		return SweepResult{}, apperr.Wrap(apperr.KindStorageFailure, err, "failed to list open records")
	}

	var result SweepResult
	for _, rec := range open {
		day, err := time.ParseInLocation(time.DateOnly, rec.Date, s.orgTZ)
		if err != nil {
			result.Failed++
			log.Ctx(ctx).Error().Err(err).Str("record_id", rec.ID.String()).Msg("Skipping record with unparseable date")
			continue
		}
		closeAt := day.Add(time.Duration(coStart) * time.Minute)

		if err := s.records.ForceCheckOut(ctx, rec.ID, closeAt); err != nil {
			result.Failed++
			log.Ctx(ctx).Error().Err(err).Str("record_id", rec.ID.String()).Msg("Auto check-out failed for record")
			continue
		}
		result.Closed++

		s.exportClosed(ctx, rec, closeAt)
	}

	log.Ctx(ctx).Info().Int("closed", result.Closed).Int("failed", result.Failed).Msg("Auto check-out sweep finished")
	return result, nil
}

// exportClosed pushes a swept record to the HR export queue. The close is
// already committed, so publish failures are logged and absorbed; no summary
// email goes out for a forced close.
func (s *Sweeper) exportClosed(ctx context.Context, rec model.AttendanceRecord, closeAt time.Time) {
	employee, err := s.employees.GetByID(ctx, rec.EmployeeID)
	if err != nil || employee == nil {
		log.Ctx(ctx).Warn().Err(err).Str("record_id", rec.ID.String()).Msg("Could not resolve employee for swept record")
		return
	}

	event := messaging.AttendanceClosedEvent{
		RecordID:     rec.ID.String(),
		EmployeeID:   employee.EmployeeCode,
		Date:         rec.Date,
		CheckInTime:  *rec.CheckInTime,
		CheckOutTime: closeAt,
		Status:       string(rec.Status),
		AutoCheckout: true,
	}
	if err := s.producer.PublishHRExport(ctx, event); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("record_id", rec.ID.String()).Msg("Failed to publish HR export event for swept record")
	}
}
