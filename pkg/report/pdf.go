package report

import (
	"fmt"

	"github.com/go-pdf/fpdf"
)

// severityFill maps verdicts to table row colors.
var severityFill = map[string][3]int{
	"CRITICAL": {192, 57, 43},
	"HIGH":     {230, 126, 34},
	"MEDIUM":   {241, 196, 15},
	"LOW":      {213, 232, 212},
	"INFO":     {238, 238, 238},
}

// renderPDF writes the payload as a one-or-more page PDF report.
func renderPDF(path string, p *Payload) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	// Title block
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "WAF Traffic Report")
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(90, 90, 90)
	pdf.Cell(0, 5, fmt.Sprintf("Generated %s   Run %s",
		p.GeneratedAt.Format("2006-01-02 15:04:05 MST"), p.RunID))
	pdf.Ln(8)

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 6, fmt.Sprintf("Primary tenant: %s (%s)", p.Hostname, p.Identity))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Total attacks: %d", p.TotalAttacks))
	pdf.Ln(10)

	// Severity distribution
	sectionHeader(pdf, "Severity Distribution")
	if len(p.Severity.Labels) == 0 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.Cell(0, 6, "No classified events.")
		pdf.Ln(8)
	} else {
		for i, label := range p.Severity.Labels {
			fill := severityFill[label]
			pdf.SetFillColor(fill[0], fill[1], fill[2])
			pdf.SetFont("Helvetica", "B", 10)
			pdf.CellFormat(40, 7, label, "1", 0, "L", true, 0, "")
			pdf.SetFont("Helvetica", "", 10)
			pdf.CellFormat(30, 7, fmt.Sprintf("%d", p.Severity.Values[i]), "1", 1, "R", false, 0, "")
		}
		pdf.Ln(4)
	}

	// Technique table
	sectionHeader(pdf, "Detected Techniques")
	if len(p.Techniques) == 0 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.Cell(0, 6, "No attack techniques detected.")
		pdf.Ln(8)
	} else {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(244, 244, 248)
		pdf.CellFormat(24, 7, "Technique", "1", 0, "L", true, 0, "")
		pdf.CellFormat(76, 7, "Category", "1", 0, "L", true, 0, "")
		pdf.CellFormat(26, 7, "Severity", "1", 0, "L", true, 0, "")
		pdf.CellFormat(18, 7, "Count", "1", 0, "R", true, 0, "")
		pdf.CellFormat(18, 7, "Risk", "1", 1, "R", true, 0, "")

		pdf.SetFont("Helvetica", "", 9)
		for _, row := range p.Techniques {
			fill := severityFill[row.Severity]
			pdf.CellFormat(24, 7, row.TechniqueID, "1", 0, "L", false, 0, "")
			pdf.CellFormat(76, 7, truncate(row.Category, 52), "1", 0, "L", false, 0, "")
			pdf.SetFillColor(fill[0], fill[1], fill[2])
			pdf.CellFormat(26, 7, row.Severity, "1", 0, "L", true, 0, "")
			pdf.CellFormat(18, 7, fmt.Sprintf("%d", row.Count), "1", 0, "R", false, 0, "")
			pdf.CellFormat(18, 7, fmt.Sprintf("%.1f", row.RiskScore), "1", 1, "R", false, 0, "")
		}
		pdf.Ln(4)
	}

	// Tenant table
	sectionHeader(pdf, "Tenants")
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(244, 244, 248)
	pdf.CellFormat(60, 7, "Hostname", "1", 0, "L", true, 0, "")
	pdf.CellFormat(82, 7, "Identity", "1", 0, "L", true, 0, "")
	pdf.CellFormat(20, 7, "Events", "1", 1, "R", true, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	for _, tenant := range p.Tenants {
		pdf.CellFormat(60, 7, tenant.Hostname, "1", 0, "L", false, 0, "")
		pdf.CellFormat(82, 7, truncate(tenant.Identity, 56), "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 7, fmt.Sprintf("%d", tenant.Events), "1", 1, "R", false, 0, "")
	}

	return pdf.OutputFileAndClose(path)
}

func sectionHeader(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, title)
	pdf.Ln(8)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
