package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/triptracker/backend/internal/config"
	"github.com/triptracker/backend/internal/services"
)

type AttachmentHandler struct {
	cfg *config.LedgerConfig
}

func NewAttachmentHandler(cfg *config.LedgerConfig) *AttachmentHandler {
	return &AttachmentHandler{cfg: cfg}
}

var attachmentExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Upload stores an image attachment and returns its reference
// @Summary Upload an attachment
// @Description Upload a receipt image; the returned reference is stored on an entry
// @Tags attachments
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Image file"
// @Success 201 {object} object{ref=string}
// @Failure 400 {object} services.ErrorResponse
// @Failure 413 {object} services.ErrorResponse
// @Router /attachments [post]
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(int)
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil {
		services.SendErrorResponse(w, "File too large or malformed upload", http.StatusRequestEntityTooLarge, nil)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		services.SendErrorResponse(w, "Missing file", http.StatusBadRequest, nil)
		return
	}
	defer file.Close()

	// Sniff content type from the first bytes, not the client header
	head := make([]byte, 512)
	n, _ := io.ReadFull(file, head)
	contentType := http.DetectContentType(head[:n])

	ext, ok := attachmentExtensions[contentType]
	if !ok {
		services.SendErrorResponse(w, "Only image uploads are allowed", http.StatusBadRequest, nil)
		return
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		services.SendErrorResponse(w, "Failed to read upload", http.StatusInternalServerError, nil)
		return
	}

	if err := os.MkdirAll(h.cfg.UploadDir, 0o755); err != nil {
		log.Printf("[ATTACHMENT] Failed to create upload dir: %v", err)
		services.SendErrorResponse(w, "Failed to store attachment", http.StatusInternalServerError, nil)
		return
	}

	name := uuid.New().String() + ext
	dst, err := os.Create(filepath.Join(h.cfg.UploadDir, name))
	if err != nil {
		log.Printf("[ATTACHMENT] Failed to create file: %v", err)
		services.SendErrorResponse(w, "Failed to store attachment", http.StatusInternalServerError, nil)
		return
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		log.Printf("[ATTACHMENT] Failed to write file: %v", err)
		services.SendErrorResponse(w, "Failed to store attachment", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[ATTACHMENT] Stored %s (%s, %d bytes) for user %d",
		name, contentType, header.Size, userID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{
		"ref": fmt.Sprintf("/static/attachments/%s", strings.TrimPrefix(name, "/")),
	})
}
