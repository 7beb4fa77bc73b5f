package email

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"attendance.service/internal/core"
	"attendance.service/internal/ports/messaging"
	"attendance.service/internal/worker"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog/log"
)

type EmailProcessor struct {
	emailService core.EmailService
	domain       string
}

// NewProcessor sets up a new processor for handling email-related jobs.
// Recipient addresses are the employee code at the organization's mail domain.
func NewProcessor(emailService core.EmailService, domain string) *EmailProcessor {
	return &EmailProcessor{
		emailService: emailService,
		domain:       domain,
	}
}

// Process is the main entry point for handling a message from the email queue.
// It tries to send the check-out summary and will tell the worker to retry if
// something goes wrong.
func (p *EmailProcessor) Process(ctx context.Context, msg types.Message) (bool, int32, error) {
	var event messaging.EmailEvent
	if err := json.Unmarshal([]byte(*msg.Body), &event); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("Failed to unmarshal email event")
		return false, 0, err // Do not retry on malformed message
	}

	to := fmt.Sprintf("%s@%s", event.EmployeeID, p.domain)
	if err := p.emailService.SendCheckOutSummary(ctx, to, event.FullName, event.HoursWorked); err != nil {
		delay := calculateBackoff(worker.ReceiveCount(msg))
		return true, delay, err
	}

	log.Ctx(ctx).Info().Str("employee_id", event.EmployeeID).Msg("Check-out summary sent")
	return false, 0, nil
}

// calculateBackoff determines how long to wait before retrying a failed job.
// It increases the delay exponentially with each retry to avoid overwhelming a struggling service.
func calculateBackoff(retryCount int) int32 {
	backoff := int32(math.Pow(2, float64(retryCount)) * 10)
	if backoff > 3600 { // Cap at 1 hour
		return 3600
	}
	return backoff
}
