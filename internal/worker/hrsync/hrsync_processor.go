package hrsync

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"attendance.service/internal/ports/messaging"
	"attendance.service/internal/worker"
	"attendance.service/internal/worker/legacyapi"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// HRSyncProcessor handles jobs from the HR export queue, which involves calling
// the legacy HR attendance API. It uses a circuit breaker to avoid hammering
// the legacy system if it's having issues.
type HRSyncProcessor struct {
	legacy legacyapi.HRExportClient
	cb     *gobreaker.CircuitBreaker
}

// NewProcessor creates a new processor for the HR export queue. It sets up a
// circuit breaker to protect the legacy API from being overwhelmed.
func NewProcessor(legacy legacyapi.HRExportClient) *HRSyncProcessor {
	settings := gobreaker.Settings{
		Name:        "HR-Export-API",
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Trip if failure rate is bigger then 50% after at least 10 requests
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.5
		},
	}

	return &HRSyncProcessor{
		legacy: legacy,
		cb:     gobreaker.NewCircuitBreaker(settings),
	}
}

// Process pushes one closed attendance record to the legacy system through
// the circuit breaker, retrying with exponential backoff via the message's
// visibility timeout. The legacy API upserts on (employee, date), so retried
// deliveries are harmless.
func (p *HRSyncProcessor) Process(ctx context.Context, msg types.Message) (bool, int32, error) {
	var event messaging.AttendanceClosedEvent
	if err := json.Unmarshal([]byte(*msg.Body), &event); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("Failed to unmarshal HR export event")
		return false, 0, err // Do not retry on malformed message
	}

	log.Ctx(ctx).Info().
		Str("employee_id", event.EmployeeID).
		Str("date", event.Date).
		Bool("auto_checkout", event.AutoCheckout).
		Msg("Exporting closed attendance record")

	_, err := p.cb.Execute(func() (interface{}, error) {
		return nil, p.legacy.RecordAttendance(ctx, event)
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			log.Ctx(ctx).Warn().Msg("Circuit Breaker is OPEN; skipping HR export call")
		}
		delay := calculateBackoff(worker.ReceiveCount(msg))
		return true, delay, err
	}

	return false, 0, nil
}

// calculateBackoff determines how long to wait before retrying a failed job.
// It increases the delay exponentially with each retry.
func calculateBackoff(retryCount int) int32 {
	backoff := int32(math.Pow(2, float64(retryCount)) * 10)
	if backoff > 3600 {
		return 3600 // max at 1 hour
	}
	return backoff
}
