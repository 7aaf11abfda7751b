package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/claims-management/internal/claim"
)

const dateLayout = "2006-01-02"

var header = []string{"InvoiceID", "Lecturer", "Module", "Faculty", "Total", "Date", "Documents"}

// Subtotal is the approved amount for one lecturer.
type Subtotal struct {
	LecturerID int64
	Lecturer   string
	Total      decimal.Decimal
}

type Summary struct {
	Subtotals  []Subtotal
	GrandTotal decimal.Decimal
}

// Summarize groups totals by lecturer in order of first appearance.
func Summarize(claims []*claim.Claim) Summary {
	summary := Summary{GrandTotal: decimal.Zero}
	index := make(map[int64]int)

	for _, c := range claims {
		i, ok := index[c.LecturerID]
		if !ok {
			i = len(summary.Subtotals)
			index[c.LecturerID] = i
			summary.Subtotals = append(summary.Subtotals, Subtotal{
				LecturerID: c.LecturerID,
				Lecturer:   c.LecturerName,
				Total:      decimal.Zero,
			})
		}
		summary.Subtotals[i].Total = summary.Subtotals[i].Total.Add(c.TotalAmount)
		summary.GrandTotal = summary.GrandTotal.Add(c.TotalAmount)
	}
	return summary
}

// Filename is the download name for a report generated at now.
func Filename(now time.Time) string {
	return fmt.Sprintf("Invoices_%s.csv", now.Format("20060102"))
}

// WriteApprovedClaimsCSV renders approved claims as an invoice report with
// per-lecturer subtotals and a grand total.
func WriteApprovedClaimsCSV(w io.Writer, claims []*claim.Claim, generatedAt time.Time) error {
	cw := csv.NewWriter(w)

	records := [][]string{
		{"Generated On", generatedAt.Format(dateLayout)},
		{},
		header,
	}
	for _, c := range claims {
		records = append(records, []string{
			fmt.Sprintf("%d", c.ID),
			c.LecturerName,
			c.ModuleName,
			c.FacultyName,
			c.TotalAmount.StringFixed(2),
			c.CreatedDate.Format(dateLayout),
			strings.Join(c.SupportingDocuments, ";"),
		})
	}

	summary := Summarize(claims)
	records = append(records, []string{}, []string{"Lecturer Subtotals"})
	for _, s := range summary.Subtotals {
		records = append(records, []string{s.Lecturer, s.Total.StringFixed(2)})
	}
	records = append(records, []string{}, []string{"Grand Total", summary.GrandTotal.StringFixed(2)})

	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("write csv report: %w", err)
	}
	return nil
}
