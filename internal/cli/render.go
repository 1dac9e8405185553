package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"accounting/internal/sheets"
	"accounting/internal/storage"
)

// EntriesMarkdown renders a listing as a markdown table, one line per record.
func EntriesMarkdown(listing sheets.Listing) string {
	var b strings.Builder
	b.WriteString("# Ledger\n\n")
	if len(listing.Records) == 0 {
		b.WriteString("No entries.\n")
	} else {
		b.WriteString("| # | Row | Date | Platform | Product | Qty | Sales | Fee | Income | Invoice | Taxable |\n")
		b.WriteString("|---|---|---|---|---|---:|---:|---:|---:|---|---|\n")
		for i, r := range listing.Records {
			e := r.Entry
			fmt.Fprintf(&b, "| %d | %d | %s | %s | %s | %d | %s | %s | %s | %s | %s |\n",
				i+1, r.Row,
				e.OccurredAt.Format(time.DateTime),
				escapeCell(e.Platform),
				escapeCell(e.ProductName),
				e.OrderQuantity,
				e.TotalSales.StringFixed(2),
				e.PlatformFee.StringFixed(2),
				e.ActualIncome().StringFixed(2),
				yesNo(e.InvoiceRequired),
				yesNo(e.Taxable))
		}
	}
	if len(listing.Skipped) > 0 {
		b.WriteString("\n## Unreadable rows\n\n")
		for _, s := range listing.Skipped {
			fmt.Fprintf(&b, "- row %d: %s\n", s.Row, escapeCell(s.Err.Error()))
		}
	}
	return b.String()
}

// HistoryMarkdown renders journaled changes, newest first.
func HistoryMarkdown(records []storage.AuditRecord) string {
	var b strings.Builder
	b.WriteString("# Change history\n\n")
	if len(records) == 0 {
		b.WriteString("No changes recorded.\n")
		return b.String()
	}
	b.WriteString("| Seq | When | Op | Row | Platform | Product | Sales |\n")
	b.WriteString("|---:|---|---|---:|---|---|---:|\n")
	for _, r := range records {
		platform, product, sales := "", "", ""
		if e := r.Event.Entry; e != nil {
			platform, product, sales = escapeCell(e.Platform), escapeCell(e.ProductName), e.TotalSales.StringFixed(2)
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %d | %s | %s | %s |\n",
			r.Seq,
			r.Event.At.Local().Format(time.DateTime),
			r.Event.Op,
			r.Event.Row,
			platform, product, sales)
	}
	return b.String()
}

// RenderMarkdown formats md for the terminal. The raw markdown is returned
// when rendering fails.
func RenderMarkdown(md string, opts ...glamour.TermRendererOption) string {
	if len(opts) == 0 {
		opts = []glamour.TermRendererOption{glamour.WithAutoStyle(), glamour.WithWordWrap(120)}
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
