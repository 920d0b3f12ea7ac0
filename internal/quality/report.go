// Package quality aggregates per-record outcomes of a batch into a data
// quality report.  Everything here is computed from outcomes alone; the
// store is never consulted.
package quality

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/iliyamo/bus-occupancy-pricing/internal/model"
)

// Tally holds the commutative counters of a report.  Partial tallies
// built over disjoint slices of a batch can be merged in any order.
type Tally struct {
	Total       int                     `json:"total_submitted"`
	Valid       int                     `json:"valid"`
	Repaired    int                     `json:"repaired"`
	Dropped     int                     `json:"dropped"`
	IssueCounts map[model.IssueType]int `json:"issue_counts"`
}

// Add counts one outcome.
func (t *Tally) Add(o model.Outcome) {
	t.Total++
	switch o.Status {
	case model.StatusValid:
		t.Valid++
	case model.StatusRepaired:
		t.Repaired++
	case model.StatusDropped:
		t.Dropped++
	}
	for _, is := range o.Issues {
		t.addIssue(is.IssueType)
	}
}

func (t *Tally) addIssue(it model.IssueType) {
	if t.IssueCounts == nil {
		t.IssueCounts = make(map[model.IssueType]int)
	}
	t.IssueCounts[it]++
}

// Merge adds other into t.
func (t *Tally) Merge(other Tally) {
	t.Total += other.Total
	t.Valid += other.Valid
	t.Repaired += other.Repaired
	t.Dropped += other.Dropped
	for it, n := range other.IssueCounts {
		if t.IssueCounts == nil {
			t.IssueCounts = make(map[model.IssueType]int, len(other.IssueCounts))
		}
		t.IssueCounts[it] += n
	}
}

// Score is (valid + repaired) / total.  An empty tally scores 1.0:
// nothing was submitted, so nothing was lost.
func (t Tally) Score() float64 {
	if t.Total == 0 {
		return 1.0
	}
	return float64(t.Valid+t.Repaired) / float64(t.Total)
}

// Report is the quality summary of one batch.
//
// Fields:
//  BatchID      – id of the processed batch.
//  Tally        – outcome and issue counters over the submitted records.
//  LoadFailed   – accepted records the store rejected.
//  Samples      – up to SampleLimit record ids per issue type.
//  QualityScore – (valid + repaired) / total_submitted.
type Report struct {
	BatchID string `json:"batch_id"`
	Tally
	LoadFailed   int                          `json:"load_failed"`
	Samples      map[model.IssueType][]string `json:"samples"`
	QualityScore float64                      `json:"quality_score"`
	SampleLimit  int                          `json:"-"`
}

// Build aggregates outcomes into a report.  Outcomes may be in any
// order; counts do not depend on it, samples follow it.
func Build(batchID string, outcomes []model.Outcome, sampleLimit int) Report {
	r := Report{BatchID: batchID, SampleLimit: sampleLimit, Samples: map[model.IssueType][]string{}}
	for _, o := range outcomes {
		r.Tally.Add(o)
		for _, is := range o.Issues {
			r.sample(is)
		}
	}
	if r.IssueCounts == nil {
		r.IssueCounts = map[model.IssueType]int{}
	}
	r.QualityScore = r.Score()
	return r
}

// AddLoadIssues folds issues raised after validation into the report:
// loader rejections and dropped schedule rows.  They are counted and
// sampled; the score, which measures the submitted records, is left as
// it is.
func (r *Report) AddLoadIssues(issues []model.QualityIssue) {
	for _, is := range issues {
		r.addIssue(is.IssueType)
		r.sample(is)
		if is.IssueType == model.IssueLoadFailure {
			r.LoadFailed++
		}
	}
}

func (r *Report) sample(is model.QualityIssue) {
	if r.Samples == nil {
		r.Samples = map[model.IssueType][]string{}
	}
	ids := r.Samples[is.IssueType]
	if len(ids) >= r.SampleLimit {
		return
	}
	for _, id := range ids {
		if id == is.RecordID {
			return
		}
	}
	r.Samples[is.IssueType] = append(ids, is.RecordID)
}

// Render writes the report as an aligned plain-text table.
func (r Report) Render(w io.Writer) error {
	rows := [][2]string{
		{"batch", r.BatchID},
		{"submitted", fmt.Sprint(r.Total)},
		{"valid", fmt.Sprint(r.Valid)},
		{"repaired", fmt.Sprint(r.Repaired)},
		{"dropped", fmt.Sprint(r.Dropped)},
		{"load failed", fmt.Sprint(r.LoadFailed)},
		{"quality score", fmt.Sprintf("%.3f", r.QualityScore)},
	}
	types := make([]string, 0, len(r.IssueCounts))
	for it := range r.IssueCounts {
		types = append(types, string(it))
	}
	sort.Strings(types)
	for _, it := range types {
		val := fmt.Sprint(r.IssueCounts[model.IssueType(it)])
		if ids := r.Samples[model.IssueType(it)]; len(ids) > 0 {
			val += "  e.g. " + strings.Join(ids, ", ")
		}
		rows = append(rows, [2]string{"issue " + it, val})
	}

	width := 0
	for _, row := range rows {
		if n := runewidth.StringWidth(row[0]); n > width {
			width = n
		}
	}
	for _, row := range rows {
		if _, err := fmt.Fprintf(w, "%s  %s\n", runewidth.FillRight(row[0], width), row[1]); err != nil {
			return err
		}
	}
	return nil
}
