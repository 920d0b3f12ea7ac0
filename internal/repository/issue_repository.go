package repository // repository defines data access for the data quality log

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/bus-occupancy-pricing/internal/model"
)

// IssueRepo appends to data_quality_log.  The log is append-only; there
// is no update or delete.
type IssueRepo struct {
	db *sql.DB
	d  Dialect
}

// NewIssueRepo constructs an IssueRepo with the given DB handle.
func NewIssueRepo(db *sql.DB, d Dialect) *IssueRepo {
	return &IssueRepo{db: db, d: d}
}

// issueChunk keeps a multi-row insert well below placeholder limits.
const issueChunk = 500

// AppendIssues inserts issues in one transaction, issueChunk rows per
// statement.  Either all issues are stored or none.
func (r *IssueRepo) AppendIssues(ctx context.Context, issues []model.QualityIssue) error {
	if len(issues) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for start := 0; start < len(issues); start += issueChunk {
		end := min(start+issueChunk, len(issues))
		query := `INSERT INTO data_quality_log (record_id, issue_type, severity, description, resolution_action, detected_at) VALUES `
		args := make([]interface{}, 0, (end-start)*6)
		vals := make([]string, 0, end-start)
		for _, is := range issues[start:end] {
			vals = append(vals, "(?, ?, ?, ?, ?, ?)")
			args = append(args, is.RecordID, string(is.IssueType), string(is.Severity), is.Description, string(is.ActionTaken), is.DetectedAt.UTC())
		}
		query += strings.Join(vals, ",")
		if _, err := tx.ExecContext(ctx, r.d.Rebind(query), args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// IssuesByRecord lists the logged issues of one record in insertion order.
func (r *IssueRepo) IssuesByRecord(ctx context.Context, recordID string) ([]model.QualityIssue, error) {
	q := r.d.Rebind(`SELECT record_id, issue_type, severity, description, resolution_action, detected_at
	           FROM data_quality_log
	           WHERE record_id = ?
	           ORDER BY log_id`)
	rows, err := r.db.QueryContext(ctx, q, recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.QualityIssue
	for rows.Next() {
		var is model.QualityIssue
		var it, sev, act string
		if err := rows.Scan(&is.RecordID, &it, &sev, &is.Description, &act, &is.DetectedAt); err != nil {
			return nil, err
		}
		is.IssueType, is.Severity, is.ActionTaken = model.IssueType(it), model.Severity(sev), model.Action(act)
		is.DetectedAt = is.DetectedAt.UTC()
		result = append(result, is)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
