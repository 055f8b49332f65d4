package pdfutil

import (
	"bytes"
	"strings"
	"testing"

	pdf "github.com/ledongthuc/pdf"

	"github.com/naheedk999/docai/internal/report"
)

func extractText(t *testing.T, data []byte) string {
	t.Helper()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open generated pdf: %v", err)
	}
	var builder strings.Builder
	for page := 1; page <= reader.NumPage(); page++ {
		p := reader.Page(page)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			t.Fatalf("extract page %d: %v", page, err)
		}
		builder.WriteString(content)
	}
	return builder.String()
}

func testInfo() VisitInfo {
	return VisitInfo{
		DoctorName:     "Dr. Naheed Khan",
		Specialization: "Cardiology",
		Contact:        "123-456-7890",
		Email:          "doctor@example.com",
		PatientName:    "Mario Rossi",
		PatientID:      "MED-0042",
		DateOfBirth:    "1960-04-02",
		VisitDate:      "2026-09-01",
	}
}

func TestBuildReport(t *testing.T) {
	rep := &report.Report{
		ReasonForVisit:          "Flu",
		ChiefComplaintHistory:   "Fever for three days",
		ClinicalFindings:        "Mild pharyngitis",
		DiagnosisTreatmentPlan:  "Rest and fluids",
		MedicationPrescription:  "Paracetamol 500mg",
		FollowUpRecommendations: "Return if fever persists",
	}
	data, err := BuildReport(testInfo(), rep, "en")
	if err != nil {
		t.Fatalf("BuildReport: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("output is not a PDF")
	}
	text := extractText(t, data)
	for _, want := range []string{
		"Medical Report", "Dr. Naheed Khan", "Mario Rossi", "MED-0042",
		"Flu", "Fever for three days", "Paracetamol 500mg",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("expected pdf text to contain %q", want)
		}
	}
}

func TestBuildReportItalianLabels(t *testing.T) {
	data, err := BuildReport(testInfo(), &report.Report{ReasonForVisit: "Influenza"}, "it")
	if err != nil {
		t.Fatalf("BuildReport: %v", err)
	}
	text := extractText(t, data)
	for _, want := range []string{"Referto Medico", "Nome Paziente", "Influenza"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected italian label %q in pdf text", want)
		}
	}
}

func TestBuildReportEmptySectionsFallBack(t *testing.T) {
	data, err := BuildReport(testInfo(), &report.Report{}, "en")
	if err != nil {
		t.Fatalf("BuildReport: %v", err)
	}
	if !strings.Contains(extractText(t, data), "N/A") {
		t.Errorf("expected empty sections to render as N/A")
	}
}

func TestBuildReportNilReport(t *testing.T) {
	if _, err := BuildReport(testInfo(), nil, "en"); err == nil {
		t.Fatalf("expected error for nil report")
	}
}

func TestBuildReportUnknownLanguageDefaultsToEnglish(t *testing.T) {
	data, err := BuildReport(testInfo(), &report.Report{}, "de")
	if err != nil {
		t.Fatalf("BuildReport: %v", err)
	}
	if !strings.Contains(extractText(t, data), "Medical Report") {
		t.Errorf("expected english fallback labels")
	}
}
