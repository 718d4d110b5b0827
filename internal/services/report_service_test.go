package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/triptracker/backend/internal/config"
	"github.com/triptracker/backend/internal/models"
)

func testExportConfig() *config.ExportConfig {
	return &config.ExportConfig{
		PageWidth:    595,
		PageHeight:   842,
		PageMargin:   42,
		HeaderHeight: 140,
	}
}

func entry(id, kind, date, timeStr string, amount float64) models.Entry {
	return models.Entry{
		ID:      id,
		Kind:    kind,
		Date:    date,
		Time:    timeStr,
		Details: "entry " + id,
		Amount:  amount,
	}
}

func TestComputeBalances(t *testing.T) {
	t.Run("orders by date then time", func(t *testing.T) {
		entries := []models.Entry{
			entry("c", models.KindCashOut, "2024-03-02", "09:00", 50),
			entry("a", models.KindCashIn, "2024-03-01", "18:30", 200),
			entry("b", models.KindCashIn, "2024-03-02", "08:15", 100),
		}

		result := ComputeBalances(entries)

		assert.Len(t, result, 3)
		assert.Equal(t, "a", result[0].ID)
		assert.Equal(t, "b", result[1].ID)
		assert.Equal(t, "c", result[2].ID)
	})

	t.Run("running balance folds from zero", func(t *testing.T) {
		entries := []models.Entry{
			entry("a", models.KindCashIn, "2024-03-01", "08:00", 500),
			entry("b", models.KindCashOut, "2024-03-01", "12:00", 120),
			entry("c", models.KindCashOut, "2024-03-02", "09:30", 80),
			entry("d", models.KindCashIn, "2024-03-03", "10:00", 40),
		}

		result := ComputeBalances(entries)

		assert.Equal(t, 500.0, result[0].Balance)
		assert.Equal(t, 380.0, result[1].Balance)
		assert.Equal(t, 300.0, result[2].Balance)
		assert.Equal(t, 340.0, result[3].Balance)
	})

	t.Run("balance can go negative", func(t *testing.T) {
		entries := []models.Entry{
			entry("a", models.KindCashOut, "2024-03-01", "08:00", 75),
		}

		result := ComputeBalances(entries)

		assert.Equal(t, -75.0, result[0].Balance)
	})

	t.Run("same minute keeps input order", func(t *testing.T) {
		entries := []models.Entry{
			entry("first", models.KindCashIn, "2024-03-01", "10:00", 10),
			entry("second", models.KindCashIn, "2024-03-01", "10:00", 20),
			entry("third", models.KindCashOut, "2024-03-01", "10:00", 5),
		}

		result := ComputeBalances(entries)

		assert.Equal(t, "first", result[0].ID)
		assert.Equal(t, "second", result[1].ID)
		assert.Equal(t, "third", result[2].ID)
		assert.Equal(t, 25.0, result[2].Balance)
	})

	t.Run("stable when recomputed over its own output", func(t *testing.T) {
		entries := []models.Entry{
			entry("first", models.KindCashIn, "2024-03-01", "10:00", 10),
			entry("second", models.KindCashOut, "2024-03-01", "10:00", 4),
			entry("third", models.KindCashIn, "2024-03-02", "07:45", 1),
		}

		once := ComputeBalances(entries)

		sorted := make([]models.Entry, len(once))
		for i, e := range once {
			sorted[i] = e.Entry
		}
		twice := ComputeBalances(sorted)

		assert.Equal(t, once, twice)
	})

	t.Run("does not mutate input slice", func(t *testing.T) {
		entries := []models.Entry{
			entry("late", models.KindCashIn, "2024-03-05", "10:00", 10),
			entry("early", models.KindCashIn, "2024-03-01", "10:00", 20),
		}

		ComputeBalances(entries)

		assert.Equal(t, "late", entries[0].ID)
		assert.Equal(t, "early", entries[1].ID)
	})

	t.Run("empty input", func(t *testing.T) {
		result := ComputeBalances(nil)
		assert.Empty(t, result)
	})
}

func TestAggregateTotals(t *testing.T) {
	t.Run("sums each side and derives balance", func(t *testing.T) {
		entries := []models.Entry{
			entry("a", models.KindCashIn, "2024-03-01", "08:00", 500),
			entry("b", models.KindCashOut, "2024-03-01", "12:00", 120),
			entry("c", models.KindCashOut, "2024-03-02", "09:30", 80),
		}

		totals := AggregateTotals(entries)

		assert.Equal(t, 500.0, totals.CashIn)
		assert.Equal(t, 200.0, totals.CashOut)
		assert.Equal(t, 300.0, totals.Balance)
	})

	t.Run("order independent", func(t *testing.T) {
		entries := []models.Entry{
			entry("a", models.KindCashIn, "2024-03-01", "08:00", 500),
			entry("b", models.KindCashOut, "2024-03-01", "12:00", 120),
			entry("c", models.KindCashIn, "2024-03-02", "09:30", 80),
		}
		reversed := []models.Entry{entries[2], entries[1], entries[0]}

		assert.Equal(t, AggregateTotals(entries), AggregateTotals(reversed))
	})

	t.Run("minimum amount is not rounded away", func(t *testing.T) {
		entries := []models.Entry{
			entry("a", models.KindCashIn, "2024-03-01", "08:00", 0.01),
			entry("b", models.KindCashOut, "2024-03-01", "09:00", 0.01),
		}

		totals := AggregateTotals(entries)

		assert.Equal(t, 0.01, totals.CashIn)
		assert.Equal(t, 0.01, totals.CashOut)
		assert.Equal(t, 0.0, totals.Balance)
	})

	t.Run("matches last running balance", func(t *testing.T) {
		entries := []models.Entry{
			entry("a", models.KindCashIn, "2024-03-01", "08:00", 123.45),
			entry("b", models.KindCashOut, "2024-03-04", "12:00", 67.89),
			entry("c", models.KindCashIn, "2024-03-02", "09:30", 10),
		}

		totals := AggregateTotals(entries)
		balances := ComputeBalances(entries)

		assert.Equal(t, totals.Balance, balances[len(balances)-1].Balance)
	})

	t.Run("unknown kind contributes nothing", func(t *testing.T) {
		entries := []models.Entry{
			entry("a", models.KindCashIn, "2024-03-01", "08:00", 100),
			entry("b", "adjustment", "2024-03-01", "09:00", 999),
		}

		totals := AggregateTotals(entries)

		assert.Equal(t, 100.0, totals.CashIn)
		assert.Equal(t, 0.0, totals.CashOut)
		assert.Equal(t, 100.0, totals.Balance)
	})

	t.Run("empty ledger", func(t *testing.T) {
		totals := AggregateTotals(nil)

		assert.Equal(t, 0.0, totals.CashIn)
		assert.Equal(t, 0.0, totals.CashOut)
		assert.Equal(t, 0.0, totals.Balance)
	})
}

func TestBuildSpreadsheetProjection(t *testing.T) {
	t.Run("splits amounts into cash in and cash out columns", func(t *testing.T) {
		entries := []models.Entry{
			entry("a", models.KindCashIn, "2024-03-01", "08:00", 500),
			entry("b", models.KindCashOut, "2024-03-01", "12:00", 120),
		}

		projection := BuildSpreadsheetProjection(entries)

		assert.Len(t, projection.Rows, 2)

		assert.NotNil(t, projection.Rows[0].CashIn)
		assert.Equal(t, 500.0, *projection.Rows[0].CashIn)
		assert.Nil(t, projection.Rows[0].CashOut)

		assert.Nil(t, projection.Rows[1].CashIn)
		assert.NotNil(t, projection.Rows[1].CashOut)
		assert.Equal(t, 120.0, *projection.Rows[1].CashOut)
	})

	t.Run("rows in display order with totals", func(t *testing.T) {
		entries := []models.Entry{
			entry("late", models.KindCashOut, "2024-03-09", "10:00", 30),
			entry("early", models.KindCashIn, "2024-03-01", "10:00", 100),
		}

		projection := BuildSpreadsheetProjection(entries)

		assert.Equal(t, "2024-03-01", projection.Rows[0].Date)
		assert.Equal(t, "2024-03-09", projection.Rows[1].Date)
		assert.Equal(t, 100.0, projection.Totals.CashIn)
		assert.Equal(t, 30.0, projection.Totals.CashOut)
		assert.Equal(t, 70.0, projection.Totals.Balance)
	})

	t.Run("empty ledger yields no rows", func(t *testing.T) {
		projection := BuildSpreadsheetProjection(nil)

		assert.Empty(t, projection.Rows)
		assert.Equal(t, 0.0, projection.Totals.Balance)
	})
}

func TestBuildAttachmentProjection(t *testing.T) {
	t.Run("flattens attachments in entry order", func(t *testing.T) {
		second := entry("b", models.KindCashOut, "2024-03-02", "09:00", 40)
		second.Attachments = models.Attachments{"ref-3"}
		first := entry("a", models.KindCashIn, "2024-03-01", "08:00", 100)
		first.Attachments = models.Attachments{"ref-1", "ref-2"}
		plain := entry("c", models.KindCashOut, "2024-03-03", "10:00", 10)

		pages := BuildAttachmentProjection([]models.Entry{second, first, plain})

		assert.Len(t, pages, 3)
		assert.Equal(t, "ref-1", pages[0].Ref)
		assert.Equal(t, "ref-2", pages[1].Ref)
		assert.Equal(t, "ref-3", pages[2].Ref)
	})

	t.Run("carries entry metadata onto each page", func(t *testing.T) {
		e := entry("a", models.KindCashOut, "2024-03-01", "14:45", 55.5)
		e.Category = "Transport"
		e.Attachments = models.Attachments{"ref-1"}

		pages := BuildAttachmentProjection([]models.Entry{e})

		assert.Len(t, pages, 1)
		assert.Equal(t, "entry a", pages[0].Details)
		assert.Equal(t, "2024-03-01", pages[0].Date)
		assert.Equal(t, "14:45", pages[0].Time)
		assert.Equal(t, models.KindCashOut, pages[0].Kind)
		assert.Equal(t, 55.5, pages[0].Amount)
		assert.Equal(t, "Transport", pages[0].Category)
	})

	t.Run("no attachments yields empty projection", func(t *testing.T) {
		entries := []models.Entry{
			entry("a", models.KindCashIn, "2024-03-01", "08:00", 100),
		}

		pages := BuildAttachmentProjection(entries)

		assert.Empty(t, pages)
	})
}

func TestFitImage(t *testing.T) {
	cfg := testExportConfig()
	availWidth := cfg.PageWidth - 2*cfg.PageMargin
	availHeight := cfg.PageHeight - cfg.HeaderHeight - cfg.PageMargin

	t.Run("wide image constrained by width", func(t *testing.T) {
		placement := FitImage(2000, 1000, cfg)

		assert.InDelta(t, availWidth, placement.Width, 0.001)
		assert.InDelta(t, availWidth/2, placement.Height, 0.001)
		assert.InDelta(t, cfg.PageMargin, placement.X, 0.001)
		assert.Equal(t, cfg.HeaderHeight, placement.Y)
	})

	t.Run("tall image constrained by height", func(t *testing.T) {
		placement := FitImage(1000, 4000, cfg)

		assert.InDelta(t, availHeight, placement.Height, 0.001)
		assert.InDelta(t, availHeight/4, placement.Width, 0.001)
	})

	t.Run("small image scales up to fill", func(t *testing.T) {
		placement := FitImage(100, 100, cfg)

		ratio := availWidth / 100
		if h := availHeight / 100; h < ratio {
			ratio = h
		}
		assert.InDelta(t, 100*ratio, placement.Width, 0.001)
		assert.InDelta(t, 100*ratio, placement.Height, 0.001)
		assert.Greater(t, placement.Width, 100.0)
	})

	t.Run("centered horizontally", func(t *testing.T) {
		placement := FitImage(300, 4000, cfg)

		assert.InDelta(t, (cfg.PageWidth-placement.Width)/2, placement.X, 0.001)
	})

	t.Run("preserves aspect ratio", func(t *testing.T) {
		placement := FitImage(640, 480, cfg)

		assert.InDelta(t, 640.0/480.0, placement.Width/placement.Height, 0.0001)
	})
}
