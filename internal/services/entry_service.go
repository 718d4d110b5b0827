package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/triptracker/backend/internal/config"
	"github.com/triptracker/backend/internal/models"
)

type EntryService struct {
	db        *sql.DB
	ledgers   *LedgerService
	validator *ValidationHelper
	cfg       *config.LedgerConfig
}

type entryRequest struct {
	Kind        string   `json:"kind" validate:"required,oneof=cash-in cash-out"`
	Date        string   `json:"date" validate:"required,entrydate"`
	Time        string   `json:"time" validate:"required,entrytime"`
	Details     string   `json:"details" validate:"required,min=1,max=200"`
	Category    string   `json:"category" validate:"omitempty,max=60"`
	Mode        string   `json:"mode" validate:"required,max=60"`
	Amount      float64  `json:"amount" validate:"required,gte=0.01"`
	Attachments []string `json:"attachments" validate:"omitempty,dive,required"`
	Notes       string   `json:"notes" validate:"omitempty,max=1000"`
}

func NewEntryService(db *sql.DB, ledgers *LedgerService, cfg *config.LedgerConfig) *EntryService {
	return &EntryService{
		db:        db,
		ledgers:   ledgers,
		validator: NewValidationHelper(),
		cfg:       cfg,
	}
}

// CreateEntry records a new entry in a ledger
// @Summary Create an entry
// @Description Record a cash-in or cash-out entry in a ledger
// @Tags entries
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param ledgerId path string true "Ledger ID"
// @Param entry body entryRequest true "Entry data"
// @Success 201 {object} models.Entry
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /ledgers/{ledgerId}/entries [post]
func (es *EntryService) CreateEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	ledgerID := chi.URLParam(r, "ledgerId")
	if !es.ownsLedger(ledgerID, userID) {
		SendErrorResponse(w, "Ledger not found", http.StatusNotFound, nil)
		return
	}

	req, ok := es.decodeEntryRequest(w, r)
	if !ok {
		return
	}

	entry := models.Entry{
		ID:          uuid.New().String(),
		LedgerID:    ledgerID,
		Kind:        req.Kind,
		Date:        req.Date,
		Time:        req.Time,
		Details:     req.Details,
		Category:    req.Category,
		Mode:        req.Mode,
		Amount:      req.Amount,
		Attachments: models.Attachments(req.Attachments),
		Notes:       req.Notes,
		CreatedAt:   time.Now(),
	}

	err := es.db.QueryRow(`
		INSERT INTO entries (id, ledger_id, kind, entry_date, entry_time, details, category, mode, amount, attachments, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING position
	`, entry.ID, entry.LedgerID, entry.Kind, entry.Date, entry.Time, entry.Details,
		entry.Category, entry.Mode, entry.Amount, entry.Attachments, entry.Notes, entry.CreatedAt).Scan(&entry.Position)
	if err != nil {
		log.Printf("[ENTRY] Failed to create entry in ledger %s: %v", ledgerID, err)
		SendErrorResponse(w, "Failed to create entry", http.StatusInternalServerError, nil)
		return
	}

	es.ledgers.InvalidateSummary(r.Context(), ledgerID)

	log.Printf("[ENTRY] Created entry %s in ledger %s", entry.ID, ledgerID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(entry)
}

// ListEntries returns a ledger's entries in display order with running
// balances and the totals block
// @Summary List entries
// @Description Get all entries of a ledger in chronological display order, each with its running balance, plus aggregated totals
// @Tags entries
// @Produce json
// @Security BearerAuth
// @Param ledgerId path string true "Ledger ID"
// @Success 200 {object} object{entries=[]EntryWithBalance,totals=models.LedgerSummary,count=int}
// @Failure 404 {object} ErrorResponse
// @Router /ledgers/{ledgerId}/entries [get]
func (es *EntryService) ListEntries(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	ledgerID := chi.URLParam(r, "ledgerId")
	if !es.ownsLedger(ledgerID, userID) {
		SendErrorResponse(w, "Ledger not found", http.StatusNotFound, nil)
		return
	}

	entries, err := es.ledgers.fetchEntries(ledgerID)
	if err != nil {
		log.Printf("[ENTRY] Failed to list entries of ledger %s: %v", ledgerID, err)
		SendErrorResponse(w, "Failed to fetch entries", http.StatusInternalServerError, nil)
		return
	}

	withBalances := ComputeBalances(entries)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"entries": withBalances,
		"totals":  AggregateTotals(entries),
		"count":   len(withBalances),
	})
}

// GetEntry retrieves a single entry
// @Summary Get entry by ID
// @Description Retrieve a single entry from a ledger
// @Tags entries
// @Produce json
// @Security BearerAuth
// @Param ledgerId path string true "Ledger ID"
// @Param entryId path string true "Entry ID"
// @Success 200 {object} models.Entry
// @Failure 404 {object} ErrorResponse
// @Router /ledgers/{ledgerId}/entries/{entryId} [get]
func (es *EntryService) GetEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	ledgerID := chi.URLParam(r, "ledgerId")
	entryID := chi.URLParam(r, "entryId")

	if !es.ownsLedger(ledgerID, userID) {
		SendErrorResponse(w, "Ledger not found", http.StatusNotFound, nil)
		return
	}

	entry, err := es.fetchEntry(ledgerID, entryID)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Entry not found", http.StatusNotFound, nil)
		} else {
			SendErrorResponse(w, "Failed to fetch entry", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entry)
}

// UpdateEntry replaces an entry's fields
// @Summary Update an entry
// @Description Replace the fields of an existing entry; its insertion order is preserved
// @Tags entries
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param ledgerId path string true "Ledger ID"
// @Param entryId path string true "Entry ID"
// @Param entry body entryRequest true "Entry data"
// @Success 200 {object} models.Entry
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /ledgers/{ledgerId}/entries/{entryId} [put]
func (es *EntryService) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	ledgerID := chi.URLParam(r, "ledgerId")
	entryID := chi.URLParam(r, "entryId")

	if !es.ownsLedger(ledgerID, userID) {
		SendErrorResponse(w, "Ledger not found", http.StatusNotFound, nil)
		return
	}

	req, ok := es.decodeEntryRequest(w, r)
	if !ok {
		return
	}

	result, err := es.db.Exec(`
		UPDATE entries
		SET kind = $1, entry_date = $2, entry_time = $3, details = $4, category = $5,
		    mode = $6, amount = $7, attachments = $8, notes = $9
		WHERE id = $10 AND ledger_id = $11
	`, req.Kind, req.Date, req.Time, req.Details, req.Category,
		req.Mode, req.Amount, models.Attachments(req.Attachments), req.Notes, entryID, ledgerID)
	if err != nil {
		log.Printf("[ENTRY] Failed to update entry %s: %v", entryID, err)
		SendErrorResponse(w, "Failed to update entry", http.StatusInternalServerError, nil)
		return
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		SendErrorResponse(w, "Entry not found", http.StatusNotFound, nil)
		return
	}

	es.ledgers.InvalidateSummary(r.Context(), ledgerID)

	entry, err := es.fetchEntry(ledgerID, entryID)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch entry", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[ENTRY] Updated entry %s in ledger %s", entryID, ledgerID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entry)
}

// DeleteEntry removes an entry from a ledger
// @Summary Delete an entry
// @Description Remove an entry from a ledger
// @Tags entries
// @Produce json
// @Security BearerAuth
// @Param ledgerId path string true "Ledger ID"
// @Param entryId path string true "Entry ID"
// @Success 200 {object} object{success=bool}
// @Failure 404 {object} ErrorResponse
// @Router /ledgers/{ledgerId}/entries/{entryId} [delete]
func (es *EntryService) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	ledgerID := chi.URLParam(r, "ledgerId")
	entryID := chi.URLParam(r, "entryId")

	if !es.ownsLedger(ledgerID, userID) {
		SendErrorResponse(w, "Ledger not found", http.StatusNotFound, nil)
		return
	}

	result, err := es.db.Exec(`DELETE FROM entries WHERE id = $1 AND ledger_id = $2`, entryID, ledgerID)
	if err != nil {
		log.Printf("[ENTRY] Failed to delete entry %s: %v", entryID, err)
		SendErrorResponse(w, "Failed to delete entry", http.StatusInternalServerError, nil)
		return
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		SendErrorResponse(w, "Entry not found", http.StatusNotFound, nil)
		return
	}

	es.ledgers.InvalidateSummary(r.Context(), ledgerID)

	log.Printf("[ENTRY] Deleted entry %s from ledger %s", entryID, ledgerID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
	})
}

func (es *EntryService) decodeEntryRequest(w http.ResponseWriter, r *http.Request) (*entryRequest, bool) {
	var req entryRequest

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return nil, false
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return nil, false
	}

	if err := es.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return nil, false
	}

	if len(req.Attachments) > models.MaxAttachments {
		SendErrorResponse(w, fmt.Sprintf("At most %d attachments per entry", models.MaxAttachments), http.StatusBadRequest, nil)
		return nil, false
	}

	return &req, true
}

func (es *EntryService) ownsLedger(ledgerID string, userID int) bool {
	var exists bool
	err := es.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM ledgers WHERE id = $1 AND user_id = $2)
	`, ledgerID, userID).Scan(&exists)
	return err == nil && exists
}

func (es *EntryService) fetchEntry(ledgerID, entryID string) (*models.Entry, error) {
	entry := &models.Entry{}
	err := es.db.QueryRow(`
		SELECT id, ledger_id, kind, entry_date, entry_time, details, category, mode, amount, attachments, COALESCE(notes, ''), position, created_at
		FROM entries
		WHERE id = $1 AND ledger_id = $2
	`, entryID, ledgerID).Scan(&entry.ID, &entry.LedgerID, &entry.Kind, &entry.Date, &entry.Time, &entry.Details,
		&entry.Category, &entry.Mode, &entry.Amount, &entry.Attachments, &entry.Notes, &entry.Position, &entry.CreatedAt)
	return entry, err
}
