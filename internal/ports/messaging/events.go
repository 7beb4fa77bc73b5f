package messaging

import "time"

// AttendanceClosedEvent is the JSON payload sent via SQS for the HR export queue
type AttendanceClosedEvent struct {
	RecordID     string    `json:"recordId"`
	EmployeeID   string    `json:"employeeId"`
	Date         string    `json:"date"`
	CheckInTime  time.Time `json:"checkInTime"`
	CheckOutTime time.Time `json:"checkOutTime"`
	Status       string    `json:"status"`
	AutoCheckout bool      `json:"autoCheckout"`
}

// EmailEvent is the JSON payload sent via SQS for the email queue
type EmailEvent struct {
	RecordID    string    `json:"recordId"`
	EmployeeID  string    `json:"employeeId"`
	FullName    string    `json:"fullName"`
	HoursWorked float64   `json:"hoursWorked"`
	OccurredAt  time.Time `json:"occurredAt"`
}
