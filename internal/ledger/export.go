package ledger

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"stockbook/backend/internal/domain"
)

// ToCSV serializes a built ledger: one header row, one row per entry, dates as
// YYYY-MM-DD, money with exactly two decimals, every field quoted.
func ToCSV(led *domain.Ledger) string {
	lines := make([]string, 0, len(led.Entries)+1)
	lines = append(lines, `"Date","Type","Reference","Description","Debit","Credit","Balance"`)
	for _, entry := range led.Entries {
		fields := []string{
			quote(entry.Date.Format("2006-01-02")),
			quote(string(entry.Type)),
			quote(entry.Reference),
			quote(entry.Description),
			quote(entry.Debit.StringFixed(2)),
			quote(entry.Credit.StringFixed(2)),
			quote(entry.Balance.StringFixed(2)),
		}
		lines = append(lines, strings.Join(fields, ","))
	}
	return strings.Join(lines, "\n") + "\n"
}

func quote(field string) string {
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}

// ToPDF renders a printable A4 statement: party header, generation timestamp,
// the four summary figures, and one tabular line per entry.
func ToPDF(led *domain.Ledger) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Ledger - %s", led.Party.Name), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, fmt.Sprintf("Ledger Statement - %s", led.Party.Name), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 5, fmt.Sprintf("%s %s", string(led.Party.Kind), led.Party.Number), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, "Generated: "+led.GeneratedAt.UTC().Format(time.RFC3339), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	summary := []struct {
		label string
		value string
	}{
		{"Total Orders", led.Summary.TotalOrders.StringFixed(2)},
		{"Total Paid", led.Summary.TotalPaid.StringFixed(2)},
		{"Total Adjustments", led.Summary.TotalAdjustments.StringFixed(2)},
		{"Current Balance", led.Summary.CurrentBalance.StringFixed(2)},
	}
	pdf.SetFont("Helvetica", "B", 9)
	for _, row := range summary {
		pdf.CellFormat(40, 5, row.label, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(0, 5, row.value, "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "B", 9)
	}
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 5, fmt.Sprintf("Transactions: %d", led.Summary.TotalTransactions), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	widths := []float64{20, 24, 26, 60, 20, 20, 20}
	headers := []string{"Date", "Type", "Reference", "Description", "Debit", "Credit", "Balance"}
	pdf.SetFont("Helvetica", "B", 8)
	for i, header := range headers {
		pdf.CellFormat(widths[i], 6, header, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 8)
	for _, entry := range led.Entries {
		cells := []string{
			entry.Date.Format("2006-01-02"),
			string(entry.Type),
			entry.Reference,
			truncate(entry.Description, 44),
			entry.Debit.StringFixed(2),
			entry.Credit.StringFixed(2),
			entry.Balance.StringFixed(2),
		}
		for i, cell := range cells {
			align := "L"
			if i >= 4 {
				align = "R"
			}
			pdf.CellFormat(widths[i], 6, cell, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
