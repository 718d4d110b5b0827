package services

import (
	"sort"

	"github.com/triptracker/backend/internal/config"
	"github.com/triptracker/backend/internal/models"
)

// The report engine is the read side of a ledger: it never mutates entries,
// it derives views from a snapshot of them. Every function here is pure and
// safe to call from any goroutine.

// SpreadsheetRow is one exported table row. CashIn/CashOut are pointers so
// the encoder can tell "zero" apart from "blank column".
type SpreadsheetRow struct {
	Date     string
	Details  string
	Category string
	Mode     string
	CashIn   *float64
	CashOut  *float64
}

// SpreadsheetProjection is the row structure handed to the document
// encoder: data rows in display order plus the trailing totals block.
type SpreadsheetProjection struct {
	Rows   []SpreadsheetRow
	Totals models.LedgerSummary
}

// AttachmentPage describes one page of the attachment export: the owning
// entry's metadata as the page header and one attachment reference as the
// image payload.
type AttachmentPage struct {
	Details  string
	Date     string
	Time     string
	Kind     string
	Amount   float64
	Category string
	Ref      string
}

// ComputeBalances returns the entries in canonical display order with the
// running balance attached to each one.
//
// Order is date ascending then time ascending, compared as raw strings; the
// fixed-width YYYY-MM-DD / HH:MM formats make lexicographic order the same
// as chronological order. Entries sharing a (date, time) minute keep their
// relative input order: the source data has no finer timestamp, and a
// stable sort keeps recomputation deterministic across reads.
func ComputeBalances(entries []models.Entry) []models.EntryWithBalance {
	sorted := make([]models.Entry, len(entries))
	copy(sorted, entries)

	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Date != sorted[j].Date {
			return sorted[i].Date < sorted[j].Date
		}
		return sorted[i].Time < sorted[j].Time
	})

	result := make([]models.EntryWithBalance, 0, len(sorted))
	running := 0.0
	for _, entry := range sorted {
		switch entry.Kind {
		case models.KindCashIn:
			running += entry.Amount
		case models.KindCashOut:
			running -= entry.Amount
		}
		result = append(result, models.EntryWithBalance{Entry: entry, Balance: running})
	}

	return result
}

// AggregateTotals sums cash-in and cash-out over the whole entry set.
// Order-independent; the balance always equals the last running balance of
// ComputeBalances over the same entries. An entry with an unknown kind
// contributes to neither side.
func AggregateTotals(entries []models.Entry) models.LedgerSummary {
	var summary models.LedgerSummary
	for _, entry := range entries {
		switch entry.Kind {
		case models.KindCashIn:
			summary.CashIn += entry.Amount
		case models.KindCashOut:
			summary.CashOut += entry.Amount
		}
	}
	summary.Balance = summary.CashIn - summary.CashOut
	return summary
}

// BuildSpreadsheetProjection produces the tabular export: one row per entry
// in display order, amounts split into Cash In / Cash Out columns, plus the
// aggregate totals for the trailing summary block.
func BuildSpreadsheetProjection(entries []models.Entry) SpreadsheetProjection {
	ordered := ComputeBalances(entries)

	rows := make([]SpreadsheetRow, 0, len(ordered))
	for _, entry := range ordered {
		row := SpreadsheetRow{
			Date:     entry.Date,
			Details:  entry.Details,
			Category: entry.Category,
			Mode:     entry.Mode,
		}
		amount := entry.Amount
		switch entry.Kind {
		case models.KindCashIn:
			row.CashIn = &amount
		case models.KindCashOut:
			row.CashOut = &amount
		}
		rows = append(rows, row)
	}

	return SpreadsheetProjection{
		Rows:   rows,
		Totals: AggregateTotals(entries),
	}
}

// BuildAttachmentProjection flattens every attachment reference into one
// page descriptor per attachment: entries in chronological order, each
// entry's attachments in their stored order. An empty result means the
// ledger has nothing to export; signalling that to the user is the
// caller's job.
func BuildAttachmentProjection(entries []models.Entry) []AttachmentPage {
	var pages []AttachmentPage
	for _, entry := range ComputeBalances(entries) {
		for _, ref := range entry.Attachments {
			pages = append(pages, AttachmentPage{
				Details:  entry.Details,
				Date:     entry.Date,
				Time:     entry.Time,
				Kind:     entry.Kind,
				Amount:   entry.Amount,
				Category: entry.Category,
				Ref:      ref,
			})
		}
	}
	return pages
}

// ImagePlacement is a scaled image position on an export page.
type ImagePlacement struct {
	X, Y          float64
	Width, Height float64
}

// FitImage scales an image to fit the area below the page header,
// preserving aspect ratio, centered horizontally at a fixed vertical
// offset.
func FitImage(imgWidth, imgHeight int, cfg *config.ExportConfig) ImagePlacement {
	availWidth := cfg.PageWidth - 2*cfg.PageMargin
	availHeight := cfg.PageHeight - cfg.HeaderHeight - cfg.PageMargin

	ratio := availWidth / float64(imgWidth)
	if h := availHeight / float64(imgHeight); h < ratio {
		ratio = h
	}

	width := float64(imgWidth) * ratio
	height := float64(imgHeight) * ratio

	return ImagePlacement{
		X:      (cfg.PageWidth - width) / 2,
		Y:      cfg.HeaderHeight,
		Width:  width,
		Height: height,
	}
}
