// Package report requests AI generated visit summaries from the remote
// summarization endpoints and decodes their envelope format.
package report

import (
	"encoding/json"
	"fmt"
)

// Kind selects which summarization endpoint a request goes to.
type Kind string

const (
	KindPatient Kind = "patient"
	KindDoctor  Kind = "doctor"
)

// Report is the fixed six-field record produced by the summarization
// service. Fields the service omits stay empty strings.
type Report struct {
	ReasonForVisit          string `json:"reason_for_visit"`
	ChiefComplaintHistory   string `json:"chief_complaint_history"`
	ClinicalFindings        string `json:"clinical_findings"`
	DiagnosisTreatmentPlan  string `json:"diagnosis_treatment_plan"`
	MedicationPrescription  string `json:"medication_prescription"`
	FollowUpRecommendations string `json:"follow_up_recommendations"`
}

// MalformedResponseError reports a summary payload that could not be decoded.
type MalformedResponseError struct {
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("report: malformed response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// TransportError reports a non-200 answer from a summarization endpoint.
type TransportError struct {
	StatusCode int
	Body       string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("report: status %d: %s", e.StatusCode, e.Body)
}

// ParseEnvelope decodes the service envelope. The response field is itself a
// JSON-encoded string, so the payload is parsed twice.
func ParseEnvelope(body []byte) (*Report, error) {
	var envelope struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &MalformedResponseError{Err: fmt.Errorf("envelope: %w", err)}
	}
	var rep Report
	if err := json.Unmarshal([]byte(envelope.Response), &rep); err != nil {
		return nil, &MalformedResponseError{Err: fmt.Errorf("payload: %w", err)}
	}
	return &rep, nil
}
