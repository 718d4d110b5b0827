package services

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/triptracker/backend/internal/models"
)

func newEntryServiceForTest(db *sql.DB) *EntryService {
	ledgers := NewLedgerService(db, nil, testLedgerConfig())
	return NewEntryService(db, ledgers, testLedgerConfig())
}

func expectOwnsLedger(mock sqlmock.Sqlmock, ledgerID string, userID int, owned bool) {
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(ledgerID, userID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(owned))
}

func TestEntryService_CreateEntry(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := newEntryServiceForTest(db)

	t.Run("successful creation", func(t *testing.T) {
		expectOwnsLedger(mock, "ledger-1", 7, true)
		mock.ExpectQuery("INSERT INTO entries").
			WithArgs(sqlmock.AnyArg(), "ledger-1", "cash-out", "2024-03-01", "12:30", "Lunch at beach shack",
				"Food", "Cash", 450.0, sqlmock.AnyArg(), "", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"position"}).AddRow(12))

		body := []byte(`{
			"kind": "cash-out",
			"date": "2024-03-01",
			"time": "12:30",
			"details": "Lunch at beach shack",
			"category": "Food",
			"mode": "Cash",
			"amount": 450
		}`)
		r := authedRequest("POST", "/ledgers/ledger-1/entries", body, 7, map[string]string{"ledgerId": "ledger-1"})
		w := httptest.NewRecorder()

		service.CreateEntry(w, r)

		assert.Equal(t, http.StatusCreated, w.Code)

		var entry models.Entry
		json.Unmarshal(w.Body.Bytes(), &entry)
		assert.NotEmpty(t, entry.ID)
		assert.Equal(t, "cash-out", entry.Kind)
		assert.Equal(t, 450.0, entry.Amount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects unknown kind", func(t *testing.T) {
		expectOwnsLedger(mock, "ledger-1", 7, true)

		body := []byte(`{"kind":"transfer","date":"2024-03-01","time":"12:30","details":"x","mode":"Cash","amount":10}`)
		r := authedRequest("POST", "/ledgers/ledger-1/entries", body, 7, map[string]string{"ledgerId": "ledger-1"})
		w := httptest.NewRecorder()

		service.CreateEntry(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects malformed date", func(t *testing.T) {
		expectOwnsLedger(mock, "ledger-1", 7, true)

		body := []byte(`{"kind":"cash-in","date":"01-03-2024","time":"12:30","details":"x","mode":"Cash","amount":10}`)
		r := authedRequest("POST", "/ledgers/ledger-1/entries", body, 7, map[string]string{"ledgerId": "ledger-1"})
		w := httptest.NewRecorder()

		service.CreateEntry(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects zero amount", func(t *testing.T) {
		expectOwnsLedger(mock, "ledger-1", 7, true)

		body := []byte(`{"kind":"cash-in","date":"2024-03-01","time":"12:30","details":"x","mode":"Cash","amount":0}`)
		r := authedRequest("POST", "/ledgers/ledger-1/entries", body, 7, map[string]string{"ledgerId": "ledger-1"})
		w := httptest.NewRecorder()

		service.CreateEntry(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects more than five attachments", func(t *testing.T) {
		expectOwnsLedger(mock, "ledger-1", 7, true)

		body := []byte(`{"kind":"cash-in","date":"2024-03-01","time":"12:30","details":"x","mode":"Cash","amount":10,
			"attachments":["a","b","c","d","e","f"]}`)
		r := authedRequest("POST", "/ledgers/ledger-1/entries", body, 7, map[string]string{"ledgerId": "ledger-1"})
		w := httptest.NewRecorder()

		service.CreateEntry(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects missing mode", func(t *testing.T) {
		expectOwnsLedger(mock, "ledger-1", 7, true)

		body := []byte(`{"kind":"cash-in","date":"2024-03-01","time":"12:30","details":"x","amount":10}`)
		r := authedRequest("POST", "/ledgers/ledger-1/entries", body, 7, map[string]string{"ledgerId": "ledger-1"})
		w := httptest.NewRecorder()

		service.CreateEntry(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("ledger owned by someone else", func(t *testing.T) {
		expectOwnsLedger(mock, "ledger-2", 7, false)

		body := []byte(`{"kind":"cash-in","date":"2024-03-01","time":"12:30","details":"x","amount":10}`)
		r := authedRequest("POST", "/ledgers/ledger-2/entries", body, 7, map[string]string{"ledgerId": "ledger-2"})
		w := httptest.NewRecorder()

		service.CreateEntry(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestEntryService_ListEntries(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := newEntryServiceForTest(db)

	t.Run("returns entries with running balances and totals", func(t *testing.T) {
		expectOwnsLedger(mock, "ledger-1", 7, true)
		mock.ExpectQuery("SELECT id, ledger_id, kind").
			WithArgs("ledger-1").
			WillReturnRows(sqlmock.NewRows(entryColumns).
				AddRow("e2", "ledger-1", "cash-out", "2024-03-02", "09:00", "Taxi", "Transport", "", 80.0, []byte(`[]`), "", 2, time.Now()).
				AddRow("e1", "ledger-1", "cash-in", "2024-03-01", "08:00", "Advance", "", "", 500.0, []byte(`[]`), "", 1, time.Now()))

		r := authedRequest("GET", "/ledgers/ledger-1/entries", nil, 7, map[string]string{"ledgerId": "ledger-1"})
		w := httptest.NewRecorder()

		service.ListEntries(w, r)

		assert.Equal(t, http.StatusOK, w.Code)

		var response struct {
			Entries []models.EntryWithBalance `json:"entries"`
			Totals  models.LedgerSummary      `json:"totals"`
			Count   int                       `json:"count"`
		}
		json.Unmarshal(w.Body.Bytes(), &response)

		assert.Equal(t, 2, response.Count)
		// Chronological order regardless of storage order
		assert.Equal(t, "e1", response.Entries[0].ID)
		assert.Equal(t, 500.0, response.Entries[0].Balance)
		assert.Equal(t, "e2", response.Entries[1].ID)
		assert.Equal(t, 420.0, response.Entries[1].Balance)
		assert.Equal(t, 420.0, response.Totals.Balance)
	})

	t.Run("empty ledger", func(t *testing.T) {
		expectOwnsLedger(mock, "ledger-1", 7, true)
		mock.ExpectQuery("SELECT id, ledger_id, kind").
			WithArgs("ledger-1").
			WillReturnRows(sqlmock.NewRows(entryColumns))

		r := authedRequest("GET", "/ledgers/ledger-1/entries", nil, 7, map[string]string{"ledgerId": "ledger-1"})
		w := httptest.NewRecorder()

		service.ListEntries(w, r)

		assert.Equal(t, http.StatusOK, w.Code)

		var response struct {
			Count  int                  `json:"count"`
			Totals models.LedgerSummary `json:"totals"`
		}
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.Equal(t, 0, response.Count)
		assert.Equal(t, 0.0, response.Totals.Balance)
	})
}

func TestEntryService_UpdateEntry(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := newEntryServiceForTest(db)

	t.Run("successful update", func(t *testing.T) {
		expectOwnsLedger(mock, "ledger-1", 7, true)
		mock.ExpectExec("UPDATE entries").
			WithArgs("cash-out", "2024-03-01", "13:00", "Late lunch", "Food", "UPI", 475.0,
				sqlmock.AnyArg(), "", "entry-1", "ledger-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT id, ledger_id, kind").
			WithArgs("entry-1", "ledger-1").
			WillReturnRows(sqlmock.NewRows(entryColumns).
				AddRow("entry-1", "ledger-1", "cash-out", "2024-03-01", "13:00", "Late lunch", "Food", "UPI", 475.0, []byte(`[]`), "", 3, time.Now()))

		body := []byte(`{"kind":"cash-out","date":"2024-03-01","time":"13:00","details":"Late lunch","category":"Food","mode":"UPI","amount":475}`)
		r := authedRequest("PUT", "/ledgers/ledger-1/entries/entry-1", body, 7,
			map[string]string{"ledgerId": "ledger-1", "entryId": "entry-1"})
		w := httptest.NewRecorder()

		service.UpdateEntry(w, r)

		assert.Equal(t, http.StatusOK, w.Code)

		var entry models.Entry
		json.Unmarshal(w.Body.Bytes(), &entry)
		assert.Equal(t, "Late lunch", entry.Details)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("entry not found", func(t *testing.T) {
		expectOwnsLedger(mock, "ledger-1", 7, true)
		mock.ExpectExec("UPDATE entries").
			WillReturnResult(sqlmock.NewResult(0, 0))

		body := []byte(`{"kind":"cash-out","date":"2024-03-01","time":"13:00","details":"x","mode":"Cash","amount":10}`)
		r := authedRequest("PUT", "/ledgers/ledger-1/entries/missing", body, 7,
			map[string]string{"ledgerId": "ledger-1", "entryId": "missing"})
		w := httptest.NewRecorder()

		service.UpdateEntry(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestEntryService_DeleteEntry(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := newEntryServiceForTest(db)

	t.Run("successful delete", func(t *testing.T) {
		expectOwnsLedger(mock, "ledger-1", 7, true)
		mock.ExpectExec("DELETE FROM entries").
			WithArgs("entry-1", "ledger-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		r := authedRequest("DELETE", "/ledgers/ledger-1/entries/entry-1", nil, 7,
			map[string]string{"ledgerId": "ledger-1", "entryId": "entry-1"})
		w := httptest.NewRecorder()

		service.DeleteEntry(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("entry not found", func(t *testing.T) {
		expectOwnsLedger(mock, "ledger-1", 7, true)
		mock.ExpectExec("DELETE FROM entries").
			WithArgs("missing", "ledger-1").
			WillReturnResult(sqlmock.NewResult(0, 0))

		r := authedRequest("DELETE", "/ledgers/ledger-1/entries/missing", nil, 7,
			map[string]string{"ledgerId": "ledger-1", "entryId": "missing"})
		w := httptest.NewRecorder()

		service.DeleteEntry(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
