package model

import "strings"

// Status is the classification the validator gives a raw record.
type Status int

const (
	StatusValid Status = iota
	StatusRepaired
	StatusDropped
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusRepaired:
		return "repaired"
	case StatusDropped:
		return "dropped"
	}
	return "unknown"
}

// Outcome is the tagged result of validating and normalizing one raw
// record: Valid, Repaired(reason) or Dropped(reason).  Record is only
// meaningful when the outcome is accepted.
type Outcome struct {
	RecordID string
	Status   Status
	Reason   string
	Record   SeatOccupancyRecord
	Issues   []QualityIssue
}

// Accepted reports whether the record survives into the loaded output.
func (o Outcome) Accepted() bool { return o.Status != StatusDropped }

// Drop demotes the outcome to Dropped, appends issue and rebuilds the
// reason from every issue that caused the drop.
func (o Outcome) Drop(issue QualityIssue) Outcome {
	issues := make([]QualityIssue, 0, len(o.Issues)+1)
	issues = append(issues, o.Issues...)
	issues = append(issues, issue)
	for i := range issues {
		issues[i].ActionTaken = ActionDropped
	}
	o.Issues = issues
	o.Status = StatusDropped
	o.Reason = ReasonFrom(issues)
	return o
}

// ReasonFrom joins the distinct issue types of issues in order.
func ReasonFrom(issues []QualityIssue) string {
	seen := make(map[IssueType]bool, len(issues))
	parts := make([]string, 0, len(issues))
	for _, is := range issues {
		if !seen[is.IssueType] {
			seen[is.IssueType] = true
			parts = append(parts, string(is.IssueType))
		}
	}
	return strings.Join(parts, ",")
}
