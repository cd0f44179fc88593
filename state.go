package legalrisk

import (
	"fmt"
	"slices"

	"github.com/brunobiangulo/legalrisk/extractor"
	"github.com/brunobiangulo/legalrisk/retrieval"
)

// Phase is the position of an analysis in the pipeline.
type Phase int

const (
	PhaseCreated Phase = iota
	PhaseExtracting
	PhaseRetrieving
	PhaseSynthesizing
	PhaseCompleted
	PhaseFailed
)

var phaseNames = [...]string{
	PhaseCreated:      "created",
	PhaseExtracting:   "extracting",
	PhaseRetrieving:   "retrieving",
	PhaseSynthesizing: "synthesizing",
	PhaseCompleted:    "completed",
	PhaseFailed:       "failed",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// Terminal reports whether no further transition is allowed.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// State is the record threaded through one analysis. Only the pipeline
// writes it; stages receive typed inputs and return typed outputs.
//
// A field is populated once Phase has moved past the phase that produces
// it, so an empty DocumentText after extraction means the document had no
// text rather than that extraction has not run.
type State struct {
	RunID          string                    `json:"run_id"`
	DocumentPath   string                    `json:"document_path"`
	DocumentText   string                    `json:"document_text"`
	DocumentReport *extractor.DocumentReport `json:"document_report"`
	RetrievedLaws  []retrieval.Clause        `json:"retrieved_laws"`
	// RetrievalWarning is non-nil when retrieval degraded to no clauses.
	RetrievalWarning error  `json:"-"`
	LegalAnalysis    string `json:"legal_analysis"`
	Phase            Phase  `json:"-"`
}

// Reached reports whether the state has progressed past p without failing.
func (s *State) Reached(p Phase) bool {
	return s.Phase != PhaseFailed && s.Phase > p
}

// advance moves to the next phase. Phases only move forward one step at a
// time; PhaseFailed is reachable from any non-terminal phase.
func (s *State) advance(to Phase) error {
	if s.Phase.Terminal() {
		return fmt.Errorf("legalrisk: cannot leave terminal phase %s", s.Phase)
	}
	if to != PhaseFailed && to != s.Phase+1 {
		return fmt.Errorf("legalrisk: invalid transition %s -> %s", s.Phase, to)
	}
	s.Phase = to
	return nil
}

// snapshot returns a copy that shares no mutable memory with s.
func (s *State) snapshot() State {
	c := *s
	c.RetrievedLaws = slices.Clone(s.RetrievedLaws)
	for i, cl := range c.RetrievedLaws {
		if cl.Score != nil {
			v := *cl.Score
			c.RetrievedLaws[i].Score = &v
		}
	}
	if s.DocumentReport != nil {
		r := *s.DocumentReport
		r.Parties = slices.Clone(r.Parties)
		r.ImportantClauses = slices.Clone(r.ImportantClauses)
		r.Date, r.City, r.State, r.Country = cloneStr(r.Date), cloneStr(r.City), cloneStr(r.State), cloneStr(r.Country)
		c.DocumentReport = &r
	}
	return c
}

func cloneStr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
