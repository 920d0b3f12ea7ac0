package model

import "time"

// IssueType classifies a data quality problem found in a batch.
type IssueType string

const (
	IssueMissingField        IssueType = "missing_field"
	IssueNegativeFare        IssueType = "negative_fare"
	IssueExcessiveFare       IssueType = "excessive_fare"
	IssueInvalidCapacity     IssueType = "invalid_capacity"
	IssueInvalidOccupancy    IssueType = "invalid_occupancy"
	IssueImpossibleOccupancy IssueType = "impossible_occupancy"
	IssueUnknownSeatType     IssueType = "unknown_seat_type"
	IssueCoercionFailure     IssueType = "coercion_failure"
	IssueInvalidSchedule     IssueType = "invalid_schedule"
	IssueInvalidRoute        IssueType = "invalid_route"
	IssueLoadFailure         IssueType = "load_failure"
)

// Severity of a quality issue, as stored in data_quality_log.severity.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Action describes what the pipeline did with the offending record.
type Action string

const (
	ActionDropped  Action = "dropped"
	ActionRepaired Action = "repaired"
	ActionSkipped  Action = "skipped"
)

// QualityIssue is one append-only entry of the data quality log.
//
// Fields:
//  RecordID    – batch-scoped id of the offending record ("<batch>:<index>").
//  IssueType   – classification of the problem.
//  Severity    – how bad the problem is.
//  Description – human readable, generated from the failed check.
//  ActionTaken – what happened to the record.
//  DetectedAt  – when the issue was raised.
type QualityIssue struct {
	RecordID    string    `json:"record_id"`    // data_quality_log.record_id
	IssueType   IssueType `json:"issue_type"`   // data_quality_log.issue_type
	Severity    Severity  `json:"severity"`     // data_quality_log.severity
	Description string    `json:"description"`  // data_quality_log.description
	ActionTaken Action    `json:"action_taken"` // data_quality_log.resolution_action
	DetectedAt  time.Time `json:"detected_at"`  // data_quality_log.detected_at
}
