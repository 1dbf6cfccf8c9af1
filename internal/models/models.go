package models

import (
	"time"

	"github.com/google/uuid"
)

// Run is one execution of the acceptance suite against a server.
type Run struct {
	ID             uuid.UUID  `json:"id"`
	JenkinsURL     string     `json:"jenkins_url"`
	JenkinsVersion *string    `json:"jenkins_version,omitempty"`
	Driver         string     `json:"driver"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

// TestOutcome records whether a test passed and where the browser was.
type TestOutcome struct {
	ID         int       `json:"id"`
	RunID      uuid.UUID `json:"run_id"`
	TestName   string    `json:"test_name"`
	Passed     bool      `json:"passed"`
	PageURL    *string   `json:"page_url,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Attachment is a diagnostics file written for a failed test.
type Attachment struct {
	OutcomeID int    `json:"outcome_id"`
	Path      string `json:"path"`
}

// OutcomeWithAttachments combines an outcome with its files
type OutcomeWithAttachments struct {
	Outcome     TestOutcome  `json:"outcome"`
	Attachments []Attachment `json:"attachments"`
}
