package worker

import (
	"time"
)

// UnitKind names the kind of unit a pass result belongs to.
type UnitKind string

const (
	UnitApp        UnitKind = "app"
	UnitDeployment UnitKind = "deployment"
	UnitHost       UnitKind = "host"
)

// UnitResult is the outcome of one isolated unit of work in a pass.
type UnitResult struct {
	Kind     UnitKind      `json:"kind"`
	Name     string        `json:"name"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Failed reports whether the unit failed.
func (u UnitResult) Failed() bool {
	return u.Error != ""
}

// Report aggregates a full reconciliation pass: one result per unit, plus
// the fatal error if the pass could not run at all. A failed unit never
// fails the pass; only the outermost boundary (opening the store) does.
type Report struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Units     []UnitResult  `json:"units"`
	Fatal     string        `json:"fatal,omitempty"`
}

// OK reports whether the pass ran and every unit succeeded.
func (r *Report) OK() bool {
	if r.Fatal != "" {
		return false
	}
	for _, unit := range r.Units {
		if unit.Failed() {
			return false
		}
	}
	return true
}

// Failures returns the units that failed.
func (r *Report) Failures() []UnitResult {
	var failed []UnitResult
	for _, unit := range r.Units {
		if unit.Failed() {
			failed = append(failed, unit)
		}
	}
	return failed
}

func (r *Report) add(kind UnitKind, name string, err error, start time.Time) {
	unit := UnitResult{
		Kind:     kind,
		Name:     name,
		Duration: time.Since(start),
	}
	if err != nil {
		unit.Error = err.Error()
	}
	r.Units = append(r.Units, unit)
}
