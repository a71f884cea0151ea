// Package export renders consultation records into shareable documents.
package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf/v2"

	"visitscribe/internal/domain"
)

// NotePDF renders a SOAP note as a PDF document.
func NotePDF(note domain.ClinicalNote, patient *domain.PatientContext, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Consultation Note", false)
	pdf.SetAuthor("visitscribe", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "Consultation Note")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	if patient != nil && strings.TrimSpace(patient.FullName) != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Patient: %s", patient.FullName))
		pdf.Ln(6)
		if patient.Diagnosis != "" {
			pdf.Cell(0, 6, fmt.Sprintf("Diagnosis: %s", patient.Diagnosis))
			pdf.Ln(6)
		}
	}
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generatedAt.Format("02 Jan 2006 15:04")))
	pdf.Ln(12)

	writeSection(pdf, "Subjective", note.Subjective)
	writeSection(pdf, "Objective", note.Objective)
	writeSection(pdf, "Assessment", note.Assessment)
	writeSection(pdf, "Plan", note.Plan)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSection(pdf *gofpdf.Fpdf, title, content string) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 8, title)
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 12)

	content = strings.TrimSpace(content)
	if content == "" {
		pdf.MultiCell(0, 6, "(not recorded)", "", "L", false)
		pdf.Ln(6)
		return
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pdf.MultiCell(0, 6, line, "", "L", false)
	}
	pdf.Ln(6)
}
