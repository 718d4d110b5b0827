package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/triptracker/backend/internal/config"
	"github.com/triptracker/backend/internal/services"
)

var exportEntryColumns = []string{
	"id", "ledger_id", "kind", "entry_date", "entry_time", "details",
	"category", "mode", "amount", "attachments", "notes", "position", "created_at",
}

func exportRequest(target, ledgerID string, userID int) *http.Request {
	r := httptest.NewRequest("GET", target, nil)

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("ledgerId", ledgerID)

	ctx := context.WithValue(r.Context(), "userID", userID)
	ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

func TestExportHandler_ExportAttachments(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	exportCfg := &config.ExportConfig{PageWidth: 595, PageHeight: 842, PageMargin: 42, HeaderHeight: 140}
	service := services.NewExportService(db, services.NewCSVHTMLEncoder(exportCfg), nil, exportCfg)
	handler := NewExportHandler(service)

	t.Run("ledger without attachments responds 409", func(t *testing.T) {
		dbMock.ExpectQuery("SELECT name FROM ledgers WHERE id = \\$1 AND user_id = \\$2").
			WithArgs("ledger-1", 7).
			WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Goa Trip"))
		dbMock.ExpectQuery("SELECT id, ledger_id, kind").
			WithArgs("ledger-1").
			WillReturnRows(sqlmock.NewRows(exportEntryColumns).
				AddRow("entry-1", "ledger-1", "cash-out", "2024-03-01", "12:30", "Lunch",
					"Food", "Cash", 450.0, []byte(`[]`), "", 1, time.Now()))

		r := exportRequest("/ledgers/ledger-1/export/attachments", "ledger-1", 7)
		w := httptest.NewRecorder()

		handler.ExportAttachments(w, r)

		assert.Equal(t, http.StatusConflict, w.Code)

		var resp map[string]string
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "This ledger has no attachments to export", resp["message"])
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("unknown ledger responds 404", func(t *testing.T) {
		dbMock.ExpectQuery("SELECT name FROM ledgers WHERE id = \\$1 AND user_id = \\$2").
			WithArgs("missing", 7).
			WillReturnRows(sqlmock.NewRows([]string{"name"}))

		r := exportRequest("/ledgers/missing/export/attachments", "missing", 7)
		w := httptest.NewRecorder()

		handler.ExportAttachments(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
