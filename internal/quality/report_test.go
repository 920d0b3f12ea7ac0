package quality

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/iliyamo/bus-occupancy-pricing/internal/model"
)

func outcome(id string, st model.Status, types ...model.IssueType) model.Outcome {
	o := model.Outcome{RecordID: id, Status: st}
	for _, it := range types {
		o.Issues = append(o.Issues, model.QualityIssue{RecordID: id, IssueType: it})
	}
	return o
}

func TestBuild_Scores(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []model.Outcome
		want     float64
	}{
		{"empty batch", nil, 1.0},
		{"all clean", []model.Outcome{outcome("a", model.StatusValid), outcome("b", model.StatusValid)}, 1.0},
		{"repaired counts as kept", []model.Outcome{outcome("a", model.StatusRepaired, model.IssueImpossibleOccupancy)}, 1.0},
		{"all dropped", []model.Outcome{
			outcome("a", model.StatusDropped, model.IssueNegativeFare),
			outcome("b", model.StatusDropped, model.IssueMissingField),
		}, 0.0},
		{"mixed", []model.Outcome{
			outcome("a", model.StatusValid),
			outcome("b", model.StatusRepaired, model.IssueImpossibleOccupancy),
			outcome("c", model.StatusDropped, model.IssueNegativeFare),
			outcome("d", model.StatusDropped, model.IssueUnknownSeatType),
		}, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Build("b1", tt.outcomes, 10)
			if r.QualityScore != tt.want {
				t.Errorf("QualityScore = %v, want %v", r.QualityScore, tt.want)
			}
			if r.Valid+r.Repaired+r.Dropped != r.Total {
				t.Errorf("counts %d+%d+%d != total %d", r.Valid, r.Repaired, r.Dropped, r.Total)
			}
		})
	}
}

func TestBuild_CountsIssuesPerType(t *testing.T) {
	r := Build("b1", []model.Outcome{
		outcome("a", model.StatusDropped, model.IssueNegativeFare, model.IssueInvalidCapacity),
		outcome("b", model.StatusDropped, model.IssueNegativeFare),
		outcome("c", model.StatusRepaired, model.IssueImpossibleOccupancy),
	}, 10)

	want := map[model.IssueType]int{
		model.IssueNegativeFare:        2,
		model.IssueInvalidCapacity:     1,
		model.IssueImpossibleOccupancy: 1,
	}
	for it, n := range want {
		if r.IssueCounts[it] != n {
			t.Errorf("IssueCounts[%s] = %d, want %d", it, r.IssueCounts[it], n)
		}
	}
	if got := r.Samples[model.IssueNegativeFare]; len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("samples = %v, want [a b]", got)
	}
}

func TestBuild_SamplesAreBounded(t *testing.T) {
	var outs []model.Outcome
	for i := 0; i < 25; i++ {
		outs = append(outs, outcome(fmt.Sprintf("r%d", i), model.StatusDropped, model.IssueMissingField))
	}
	r := Build("b1", outs, 3)
	if n := len(r.Samples[model.IssueMissingField]); n != 3 {
		t.Fatalf("sample size = %d, want 3", n)
	}
	if r.IssueCounts[model.IssueMissingField] != 25 {
		t.Errorf("count = %d, want 25", r.IssueCounts[model.IssueMissingField])
	}
}

func TestBuild_SampleIDsAreDistinct(t *testing.T) {
	r := Build("b1", []model.Outcome{
		outcome("a", model.StatusDropped, model.IssueMissingField, model.IssueMissingField),
	}, 5)
	if got := r.Samples[model.IssueMissingField]; len(got) != 1 {
		t.Errorf("samples = %v, want one id", got)
	}
}

func TestTally_MergeIsOrderIndependent(t *testing.T) {
	outs := []model.Outcome{
		outcome("a", model.StatusValid),
		outcome("b", model.StatusDropped, model.IssueNegativeFare),
		outcome("c", model.StatusRepaired, model.IssueImpossibleOccupancy),
		outcome("d", model.StatusDropped, model.IssueNegativeFare, model.IssueMissingField),
	}
	var left, right, whole Tally
	for i, o := range outs {
		whole.Add(o)
		if i%2 == 0 {
			left.Add(o)
		} else {
			right.Add(o)
		}
	}

	var lr, rl Tally
	lr.Merge(left)
	lr.Merge(right)
	rl.Merge(right)
	rl.Merge(left)

	for _, got := range []Tally{lr, rl} {
		if got.Total != whole.Total || got.Valid != whole.Valid || got.Repaired != whole.Repaired || got.Dropped != whole.Dropped {
			t.Errorf("merged %+v, want %+v", got, whole)
		}
		for it, n := range whole.IssueCounts {
			if got.IssueCounts[it] != n {
				t.Errorf("IssueCounts[%s] = %d, want %d", it, got.IssueCounts[it], n)
			}
		}
	}
}

func TestReport_AddLoadIssuesKeepsScore(t *testing.T) {
	r := Build("b1", []model.Outcome{outcome("a", model.StatusValid), outcome("b", model.StatusValid)}, 5)
	r.AddLoadIssues([]model.QualityIssue{{RecordID: "a", IssueType: model.IssueLoadFailure}})

	if r.LoadFailed != 1 {
		t.Errorf("LoadFailed = %d, want 1", r.LoadFailed)
	}
	if r.IssueCounts[model.IssueLoadFailure] != 1 {
		t.Errorf("load_failure count = %d, want 1", r.IssueCounts[model.IssueLoadFailure])
	}
	if r.QualityScore != 1.0 {
		t.Errorf("QualityScore = %v, want 1.0", r.QualityScore)
	}
}

func TestReport_Render(t *testing.T) {
	r := Build("batch-7", []model.Outcome{
		outcome("batch-7:0", model.StatusValid),
		outcome("batch-7:1", model.StatusDropped, model.IssueNegativeFare),
	}, 5)
	var buf bytes.Buffer
	if err := r.Render(&buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"batch-7", "0.500", "issue negative_fare", "e.g. batch-7:1"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	// labels are padded to the widest one, "issue negative_fare"
	col := len("issue negative_fare") + 2
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if len(line) <= col || line[col-1] != ' ' || line[col] == ' ' {
			t.Errorf("misaligned line %q", line)
		}
	}
}
