package main

import (
	"github.com/brunobiangulo/legalrisk"
	"github.com/brunobiangulo/legalrisk/extractor"
	"github.com/brunobiangulo/legalrisk/report"
	"github.com/brunobiangulo/legalrisk/retrieval"
)

// analysisResponse is the JSON body of a successful analysis, on the API
// and for analyze --json.
type analysisResponse struct {
	Status           string                    `json:"status"`
	Message          string                    `json:"message,omitempty"`
	RunID            string                    `json:"run_id"`
	DocumentPath     string                    `json:"document_path"`
	DocumentReport   *extractor.DocumentReport `json:"document_report"`
	RetrievedLaws    []retrieval.Clause        `json:"retrieved_laws"`
	RetrievalWarning string                    `json:"retrieval_warning,omitempty"`
	LegalAnalysis    string                    `json:"legal_analysis"`
	Citations        []report.Citation         `json:"citations"`
}

func newAnalysisResponse(st *legalrisk.State, message string) analysisResponse {
	resp := analysisResponse{
		Status:         "success",
		Message:        message,
		RunID:          st.RunID,
		DocumentPath:   st.DocumentPath,
		DocumentReport: st.DocumentReport,
		RetrievedLaws:  st.RetrievedLaws,
		LegalAnalysis:  st.LegalAnalysis,
		Citations:      report.Citations(st.LegalAnalysis, st.RetrievedLaws),
	}
	if st.RetrievalWarning != nil {
		resp.RetrievalWarning = st.RetrievalWarning.Error()
	}
	if resp.Citations == nil {
		resp.Citations = []report.Citation{}
	}
	return resp
}

func reportInput(st *legalrisk.State) report.Input {
	in := report.Input{
		RunID:        st.RunID,
		DocumentPath: st.DocumentPath,
		Report:       st.DocumentReport,
		Clauses:      st.RetrievedLaws,
		Analysis:     report.Parse(st.LegalAnalysis),
		Citations:    report.Citations(st.LegalAnalysis, st.RetrievedLaws),
	}
	if st.RetrievalWarning != nil {
		in.RetrievalWarning = st.RetrievalWarning.Error()
	}
	return in
}
