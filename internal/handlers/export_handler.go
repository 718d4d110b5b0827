package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/triptracker/backend/internal/services"
)

type ExportHandler struct {
	service *services.ExportService
}

func NewExportHandler(service *services.ExportService) *ExportHandler {
	return &ExportHandler{
		service: service,
	}
}

// ExportSpreadsheet downloads a ledger as a spreadsheet file
// @Summary Export ledger spreadsheet
// @Description Download all entries of a ledger as a spreadsheet with running order, totals and balance
// @Tags export
// @Produce application/octet-stream
// @Security BearerAuth
// @Param ledgerId path string true "Ledger ID"
// @Success 200 {file} file "Spreadsheet file"
// @Failure 404 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /ledgers/{ledgerId}/export/spreadsheet [get]
func (h *ExportHandler) ExportSpreadsheet(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	ledgerID := chi.URLParam(r, "ledgerId")

	filename, data, err := h.service.ExportSpreadsheet(r.Context(), userID, ledgerID)
	if err != nil {
		if err == sql.ErrNoRows {
			services.SendErrorResponse(w, "Ledger not found", http.StatusNotFound, nil)
			return
		}
		log.Printf("[EXPORT] Spreadsheet export failed for ledger %s: %v", ledgerID, err)
		services.SendErrorResponse(w, "Failed to export ledger", http.StatusInternalServerError, nil)
		return
	}

	sendFile(w, filename, data)
}

// ExportAttachments downloads a ledger's attachments as a paginated document
// @Summary Export ledger attachments
// @Description Download every attachment of a ledger as a single document, one page per attachment with the entry details above the image
// @Tags export
// @Produce application/octet-stream
// @Security BearerAuth
// @Param ledgerId path string true "Ledger ID"
// @Success 200 {file} file "Attachment document"
// @Failure 409 {object} map[string]string "Nothing to export"
// @Failure 404 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /ledgers/{ledgerId}/export/attachments [get]
func (h *ExportHandler) ExportAttachments(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	ledgerID := chi.URLParam(r, "ledgerId")

	filename, data, err := h.service.ExportAttachments(r.Context(), userID, ledgerID)
	if err != nil {
		if err == sql.ErrNoRows {
			services.SendErrorResponse(w, "Ledger not found", http.StatusNotFound, nil)
			return
		}
		if err == services.ErrNoAttachments {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]string{
				"message": "This ledger has no attachments to export",
			})
			return
		}
		log.Printf("[EXPORT] Attachment export failed for ledger %s: %v", ledgerID, err)
		services.SendErrorResponse(w, "Failed to export attachments", http.StatusInternalServerError, nil)
		return
	}

	sendFile(w, filename, data)
}

func sendFile(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	w.Write(data)
}
