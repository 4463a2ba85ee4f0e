package models

import "time"

// Stage is the last pipeline stage an URL reached.
type Stage string

const (
	StageFetch   Stage = "fetch"
	StageExtract Stage = "extract"
	StagePersist Stage = "persist"
	StageDone    Stage = "done"
)

// Outcome is the result of running one URL through the pipeline.
// Record is set whenever extraction succeeded, even if persistence failed.
type Outcome struct {
	URL        string         `json:"url"`
	DocumentID string         `json:"document_id,omitempty"`
	Stage      Stage          `json:"stage"`
	Record     *ProductRecord `json:"record,omitempty"`
	Err        error          `json:"-"`
	Duration   time.Duration  `json:"duration_ns"`
}

// OK reports whether the URL was fetched, extracted, and stored.
func (o Outcome) OK() bool {
	return o.Err == nil && o.Stage == StageDone
}

// Error returns the failure message, or "" on success.
func (o Outcome) Error() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Summary counts outcomes of a batch.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Extracted int `json:"extracted"`
	Failed    int `json:"failed"`
}

// Summarize tallies outcomes.
func Summarize(outcomes []Outcome) Summary {
	s := Summary{Total: len(outcomes)}
	for _, o := range outcomes {
		if o.Record != nil {
			s.Extracted++
		}
		if o.OK() {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}
