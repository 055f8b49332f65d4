// Package pdfutil renders visit reports as PDF documents using the layout
// of the clinic's printed referti.
package pdfutil

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/naheedk999/docai/internal/report"
)

// VisitInfo carries the clinician letterhead and patient identity printed
// around the report body.
type VisitInfo struct {
	DoctorName     string
	Specialization string
	Contact        string
	Email          string

	PatientName string
	PatientID   string
	DateOfBirth string
	VisitDate   string
}

type labelSet struct {
	reportTitle        string
	patientName        string
	idNumber           string
	dob                string
	reasonForVisit     string
	chiefComplaint     string
	clinicalFindings   string
	diagnosisTreatment string
	medications        string
	followUp           string
	visitDate          string
}

var labels = map[string]labelSet{
	"en": {
		reportTitle:        "Medical Report",
		patientName:        "Patient Name:",
		idNumber:           "ID Number:",
		dob:                "Date of Birth:",
		reasonForVisit:     "Reason for Visit:",
		chiefComplaint:     "Chief Complaint & History of Present Illness",
		clinicalFindings:   "Clinical Examination & Diagnostic Findings",
		diagnosisTreatment: "Diagnosis and Treatment Plan",
		medications:        "Medication Prescription",
		followUp:           "Follow-Up & Recommendations",
		visitDate:          "Visit Date:",
	},
	"it": {
		reportTitle:        "Referto Medico",
		patientName:        "Nome Paziente:",
		idNumber:           "Numero ID:",
		dob:                "Data di Nascita:",
		reasonForVisit:     "Motivo della Visita:",
		chiefComplaint:     "Anamnesi e Sintomatologia",
		clinicalFindings:   "Esame Clinico e Risultati Diagnostici",
		diagnosisTreatment: "Diagnosi e Piano di Trattamento",
		medications:        "Prescrizione Medica",
		followUp:           "Follow-Up e Raccomandazioni",
		visitDate:          "Data della Visita:",
	},
}

// BuildReport renders a report PDF and returns its bytes.
func BuildReport(info VisitInfo, rep *report.Report, language string) ([]byte, error) {
	if rep == nil {
		return nil, fmt.Errorf("render pdf: nil report")
	}
	l, ok := labels[language]
	if !ok {
		l = labels["en"]
	}

	pdf := gofpdf.New("P", "mm", "Letter", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(18, 16, 18)
	pdf.AddPage()

	// Clinician letterhead.
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 6, tr(info.DoctorName), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 5, tr("Specialist in "+info.Specialization), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, tr("Contact: "+info.Contact), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, tr("Email: "+info.Email), "", 1, "L", false, 0, "")
	pdf.Ln(8)

	// Title.
	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetTextColor(0, 90, 40)
	pdf.CellFormat(0, 10, tr(l.reportTitle), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	// Patient information table.
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFillColor(245, 245, 245)
	rows := [][2]string{
		{l.patientName, info.PatientName},
		{l.idNumber, info.PatientID},
		{l.dob, info.DateOfBirth},
		{l.reasonForVisit, rep.ReasonForVisit},
	}
	for _, row := range rows {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(52, 8, tr(row[0]), "1", 0, "L", true, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 8, tr(orNA(row[1])), "1", "L", true)
	}
	pdf.Ln(8)

	section := func(title, content string) {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.SetTextColor(20, 50, 110)
		pdf.CellFormat(0, 7, tr(title), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(0, 0, 0)
		pdf.MultiCell(0, 5, tr(orNA(content)), "", "L", false)
		pdf.Ln(4)
	}
	section(l.chiefComplaint, rep.ChiefComplaintHistory)
	section(l.clinicalFindings, rep.ClinicalFindings)
	section(l.diagnosisTreatment, rep.DiagnosisTreatmentPlan)
	section(l.medications, rep.MedicationPrescription)
	section(l.followUp, rep.FollowUpRecommendations)

	// Footer.
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(95, 6, tr(l.visitDate+" "+info.VisitDate), "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 6, tr(info.DoctorName+" - "+info.Specialization), "", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
