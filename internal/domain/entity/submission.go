package entity

import "time"

// SubmissionKind routes a document to the matching authority workflow
type SubmissionKind string

const (
	SubmissionClearance  SubmissionKind = "CLEARANCE"
	SubmissionReporting  SubmissionKind = "REPORTING"
	SubmissionCompliance SubmissionKind = "COMPLIANCE"
)

// SubmissionStatus is the canonical outcome derived from the authority response
type SubmissionStatus string

const (
	SubmissionCleared  SubmissionStatus = "CLEARED"
	SubmissionReported SubmissionStatus = "REPORTED"
	SubmissionFailed   SubmissionStatus = "FAILED"
)

// Submission records the authority-side fate of one invoice. Every
// reconciliation call is recorded, including failures, to preserve the
// audit trail required for multi-year retention.
type Submission struct {
	InvoiceUUID     string
	Kind            SubmissionKind
	Status          SubmissionStatus
	ReportingStatus string
	ClearanceStatus string
	RawResponse     string
	AttemptCount    int
	LastAttemptAt   time.Time
	CreatedAt       time.Time
}
