package model

import (
	"time"

	"github.com/google/uuid"
)

// EnrollmentStatus tracks whether an employee has a usable face template.
type EnrollmentStatus string

const (
	EnrollmentNone     EnrollmentStatus = "none"
	EnrollmentEnrolled EnrollmentStatus = "enrolled"
	EnrollmentRevoked  EnrollmentStatus = "revoked"
)

// AttendanceStatus is the per-day classification set at check-in.
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusLate    AttendanceStatus = "late"
)

// Action is what the client is asking the engine to do.
type Action string

const (
	ActionCheckIn  Action = "check_in"
	ActionCheckOut Action = "check_out"
)

// Location is a registered admission zone. The headquarters flag drives the
// late policy; everything else is a service unit.
type Location struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	ShortName      string    `json:"shortName"`
	District       string    `json:"district"`
	Lat            float64   `json:"lat"`
	Lng            float64   `json:"lng"`
	RadiusMeters   float64   `json:"radiusMeters"`
	IsHeadquarters bool      `json:"isHeadquarters"`
	IsActive       bool      `json:"isActive"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Employee is a staff record. FaceDescriptor is present iff the employee is
// enrolled; DeviceFingerprint is bound at enrollment.
type Employee struct {
	ID                uuid.UUID        `json:"id"`
	EmployeeCode      string           `json:"employeeCode"`
	FullName          string           `json:"fullName"`
	Position          string           `json:"position"`
	LocationID        *uuid.UUID       `json:"locationId,omitempty"`
	PINHash           string           `json:"-"`
	IsAdmin           bool             `json:"isAdmin"`
	IsActive          bool             `json:"isActive"`
	EnrollmentStatus  EnrollmentStatus `json:"enrollmentStatus"`
	FaceDescriptor    []float64        `json:"-"`
	EnrolledAt        *time.Time       `json:"enrolledAt,omitempty"`
	DeviceFingerprint *string          `json:"-"`
	DeviceBoundAt     *time.Time       `json:"-"`
	CreatedAt         time.Time        `json:"createdAt"`
}

// AttendanceRecord is the one-per-day record, uniquely keyed by
// (EmployeeID, Date) where Date is a calendar day in the organization's
// timezone, formatted 2006-01-02.
type AttendanceRecord struct {
	ID                uuid.UUID        `json:"id"`
	EmployeeID        uuid.UUID        `json:"employeeId"`
	LocationID        *uuid.UUID       `json:"locationId,omitempty"`
	Date              string           `json:"date"`
	CheckInTime       *time.Time       `json:"checkInTime,omitempty"`
	CheckOutTime      *time.Time       `json:"checkOutTime,omitempty"`
	CheckInLat        *float64         `json:"checkInLat,omitempty"`
	CheckInLng        *float64         `json:"checkInLng,omitempty"`
	CheckOutLat       *float64         `json:"checkOutLat,omitempty"`
	CheckOutLng       *float64         `json:"checkOutLng,omitempty"`
	DeviceFingerprint string           `json:"deviceFingerprint"`
	CheckInLiveness   bool             `json:"checkInLiveness"`
	CheckOutLiveness  bool             `json:"checkOutLiveness"`
	CheckInFaceMatch  *float64         `json:"checkInFaceMatch,omitempty"`
	CheckOutFaceMatch *float64         `json:"checkOutFaceMatch,omitempty"`
	Status            AttendanceStatus `json:"status"`
	LateReason        *string          `json:"lateReason,omitempty"`
	AutoCheckout      bool             `json:"autoCheckout"`
	CreatedAt         time.Time        `json:"createdAt"`
}

// Settings is the singleton attendance configuration. Time-of-day fields are
// "HH:MM" strings in the organization's timezone.
type Settings struct {
	ID                 int64     `json:"id"`
	CheckInStart       string    `json:"checkInStart"`
	CheckInEnd         string    `json:"checkInEnd"`
	CheckOutStart      string    `json:"checkOutStart"`
	CheckOutEnd        string    `json:"checkOutEnd"`
	LateAfter          string    `json:"lateAfter"`
	FaceMatchThreshold float64   `json:"faceMatchThreshold"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// DescriptorLength is the fixed embedding size produced by the recognition
// model. Vectors of any other length never match.
const DescriptorLength = 128
