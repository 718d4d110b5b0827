package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/triptracker/backend/internal/config"
	"github.com/triptracker/backend/internal/models"
)

type LedgerService struct {
	db        *sql.DB
	redis     *redis.Client
	validator *ValidationHelper
	cfg       *config.LedgerConfig
}

func NewLedgerService(db *sql.DB, redisClient *redis.Client, cfg *config.LedgerConfig) *LedgerService {
	return &LedgerService{
		db:        db,
		redis:     redisClient,
		validator: NewValidationHelper(),
		cfg:       cfg,
	}
}

// CreateLedger creates a new ledger for the authenticated user
// @Summary Create a ledger
// @Description Create a new ledger (cash book) owned by the authenticated user
// @Tags ledgers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{name=string} true "Ledger name"
// @Success 201 {object} models.Ledger
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /ledgers [post]
func (ls *LedgerService) CreateLedger(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Name string `json:"name" validate:"required,min=1,max=120"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := ls.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	ledger := models.Ledger{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      req.Name,
		CreatedAt: time.Now(),
	}

	_, err := ls.db.Exec(`
		INSERT INTO ledgers (id, user_id, name, created_at)
		VALUES ($1, $2, $3, $4)
	`, ledger.ID, ledger.UserID, ledger.Name, ledger.CreatedAt)
	if err != nil {
		log.Printf("[LEDGER] Failed to create ledger for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to create ledger", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[LEDGER] Created ledger %s for user %d", ledger.ID, userID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(ledger)
}

// ListLedgers lists the authenticated user's ledgers
// @Summary List ledgers
// @Description Get all ledgers owned by the authenticated user, newest first
// @Tags ledgers
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{ledgers=[]models.Ledger,count=int}
// @Failure 401 {object} ErrorResponse
// @Router /ledgers [get]
func (ls *LedgerService) ListLedgers(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rows, err := ls.db.Query(`
		SELECT id, user_id, name, created_at FROM ledgers
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		log.Printf("[LEDGER] Failed to list ledgers for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch ledgers", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	ledgers := []models.Ledger{}
	for rows.Next() {
		var ledger models.Ledger
		if err := rows.Scan(&ledger.ID, &ledger.UserID, &ledger.Name, &ledger.CreatedAt); err != nil {
			SendErrorResponse(w, "Failed to fetch ledgers", http.StatusInternalServerError, nil)
			return
		}
		ledgers = append(ledgers, ledger)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"ledgers": ledgers,
		"count":   len(ledgers),
	})
}

// GetLedger retrieves a single ledger
// @Summary Get ledger by ID
// @Description Retrieve a ledger owned by the authenticated user
// @Tags ledgers
// @Produce json
// @Security BearerAuth
// @Param ledgerId path string true "Ledger ID"
// @Success 200 {object} models.Ledger
// @Failure 404 {object} ErrorResponse
// @Router /ledgers/{ledgerId} [get]
func (ls *LedgerService) GetLedger(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	ledgerID := chi.URLParam(r, "ledgerId")

	ledger, err := ls.fetchLedger(ledgerID, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Ledger not found", http.StatusNotFound, nil)
		} else {
			SendErrorResponse(w, "Failed to fetch ledger", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ledger)
}

// UpdateLedger renames a ledger
// @Summary Rename a ledger
// @Description Change the name of a ledger owned by the authenticated user
// @Tags ledgers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param ledgerId path string true "Ledger ID"
// @Param request body object{name=string} true "New ledger name"
// @Success 200 {object} models.Ledger
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /ledgers/{ledgerId} [put]
func (ls *LedgerService) UpdateLedger(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	ledgerID := chi.URLParam(r, "ledgerId")

	var req struct {
		Name string `json:"name" validate:"required,min=1,max=120"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := ls.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := ls.db.Exec(`
		UPDATE ledgers SET name = $1 WHERE id = $2 AND user_id = $3
	`, req.Name, ledgerID, userID)
	if err != nil {
		log.Printf("[LEDGER] Failed to rename ledger %s: %v", ledgerID, err)
		SendErrorResponse(w, "Failed to update ledger", http.StatusInternalServerError, nil)
		return
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		SendErrorResponse(w, "Ledger not found", http.StatusNotFound, nil)
		return
	}

	ledger, err := ls.fetchLedger(ledgerID, userID)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch ledger", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[LEDGER] Renamed ledger %s for user %d", ledgerID, userID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ledger)
}

// DeleteLedger deletes a ledger and all of its entries
// @Summary Delete a ledger
// @Description Delete a ledger and every entry it contains
// @Tags ledgers
// @Produce json
// @Security BearerAuth
// @Param ledgerId path string true "Ledger ID"
// @Success 200 {object} object{success=bool}
// @Failure 404 {object} ErrorResponse
// @Router /ledgers/{ledgerId} [delete]
func (ls *LedgerService) DeleteLedger(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	ledgerID := chi.URLParam(r, "ledgerId")

	tx, err := ls.db.Begin()
	if err != nil {
		log.Printf("[LEDGER] Failed to begin transaction: %v", err)
		SendErrorResponse(w, "Failed to delete ledger", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	result, err := tx.Exec(`DELETE FROM ledgers WHERE id = $1 AND user_id = $2`, ledgerID, userID)
	if err != nil {
		log.Printf("[LEDGER] Failed to delete ledger %s: %v", ledgerID, err)
		SendErrorResponse(w, "Failed to delete ledger", http.StatusInternalServerError, nil)
		return
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		SendErrorResponse(w, "Ledger not found", http.StatusNotFound, nil)
		return
	}

	if _, err := tx.Exec(`DELETE FROM entries WHERE ledger_id = $1`, ledgerID); err != nil {
		log.Printf("[LEDGER] Failed to delete entries of ledger %s: %v", ledgerID, err)
		SendErrorResponse(w, "Failed to delete ledger", http.StatusInternalServerError, nil)
		return
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[LEDGER] Failed to commit delete of ledger %s: %v", ledgerID, err)
		SendErrorResponse(w, "Failed to delete ledger", http.StatusInternalServerError, nil)
		return
	}

	ls.InvalidateSummary(r.Context(), ledgerID)

	log.Printf("[LEDGER] Deleted ledger %s for user %d", ledgerID, userID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
	})
}

// GetSummary returns the cash-in/cash-out totals and balance of a ledger
// @Summary Get ledger summary
// @Description Get aggregated cash in, cash out and balance for a ledger (cached)
// @Tags ledgers
// @Produce json
// @Security BearerAuth
// @Param ledgerId path string true "Ledger ID"
// @Success 200 {object} models.LedgerSummary
// @Failure 404 {object} ErrorResponse
// @Router /ledgers/{ledgerId}/summary [get]
func (ls *LedgerService) GetSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	ledgerID := chi.URLParam(r, "ledgerId")

	if _, err := ls.fetchLedger(ledgerID, userID); err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Ledger not found", http.StatusNotFound, nil)
		} else {
			SendErrorResponse(w, "Failed to fetch ledger", http.StatusInternalServerError, nil)
		}
		return
	}

	cacheKey := summaryCacheKey(ledgerID)
	if ls.redis != nil {
		if cached, err := ls.redis.Get(r.Context(), cacheKey).Result(); err == nil {
			var summary models.LedgerSummary
			if json.Unmarshal([]byte(cached), &summary) == nil {
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(summary)
				return
			}
		}
	}

	entries, err := ls.fetchEntries(ledgerID)
	if err != nil {
		log.Printf("[LEDGER] Failed to fetch entries for summary of %s: %v", ledgerID, err)
		SendErrorResponse(w, "Failed to compute summary", http.StatusInternalServerError, nil)
		return
	}

	summary := AggregateTotals(entries)

	if ls.redis != nil {
		if data, err := json.Marshal(summary); err == nil {
			ttl := time.Duration(ls.cfg.SummaryCacheTTL) * time.Second
			if err := ls.redis.Set(r.Context(), cacheKey, data, ttl).Err(); err != nil {
				log.Printf("[LEDGER] Failed to cache summary for %s: %v", ledgerID, err)
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

// GetCategories lists the preset expense categories
// @Summary List categories
// @Description Get the preset categories offered when recording an entry
// @Tags categories
// @Produce json
// @Success 200 {object} object{categories=[]string}
// @Router /categories [get]
func (ls *LedgerService) GetCategories(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"categories": ls.cfg.PresetCategories,
	})
}

// InvalidateSummary drops the cached summary of a ledger. Called after any
// entry mutation so the next summary read recomputes from the database.
func (ls *LedgerService) InvalidateSummary(ctx context.Context, ledgerID string) {
	if ls.redis == nil {
		return
	}
	if err := ls.redis.Del(ctx, summaryCacheKey(ledgerID)).Err(); err != nil {
		log.Printf("[LEDGER] Failed to invalidate summary cache for %s: %v", ledgerID, err)
	}
}

func summaryCacheKey(ledgerID string) string {
	return fmt.Sprintf("ledger_summary:%s", ledgerID)
}

func (ls *LedgerService) fetchLedger(ledgerID string, userID int) (*models.Ledger, error) {
	ledger := &models.Ledger{}
	err := ls.db.QueryRow(`
		SELECT id, user_id, name, created_at FROM ledgers
		WHERE id = $1 AND user_id = $2
	`, ledgerID, userID).Scan(&ledger.ID, &ledger.UserID, &ledger.Name, &ledger.CreatedAt)
	return ledger, err
}

func (ls *LedgerService) fetchEntries(ledgerID string) ([]models.Entry, error) {
	rows, err := ls.db.Query(`
		SELECT id, ledger_id, kind, entry_date, entry_time, details, category, mode, amount, attachments, COALESCE(notes, ''), position, created_at
		FROM entries
		WHERE ledger_id = $1
		ORDER BY position ASC
	`, ledgerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.Entry{}
	for rows.Next() {
		var entry models.Entry
		if err := rows.Scan(&entry.ID, &entry.LedgerID, &entry.Kind, &entry.Date, &entry.Time, &entry.Details,
			&entry.Category, &entry.Mode, &entry.Amount, &entry.Attachments, &entry.Notes, &entry.Position, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
