package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/triptracker/backend/internal/config"
	"github.com/triptracker/backend/internal/models"
)

// ErrNoAttachments is returned when an attachment export is requested for a
// ledger with no attachment references. The handler turns it into a
// "nothing to export" notice instead of an empty file.
var ErrNoAttachments = errors.New("no attachments to export")

// maxRemoteAttachmentBytes caps how much of a remote attachment body is read.
const maxRemoteAttachmentBytes int64 = 20 * 1024 * 1024

// RenderedPage is an AttachmentPage after its image has been fetched and
// laid out. Failed is set when the image could not be loaded or decoded;
// the page still carries its header metadata and the encoder substitutes
// an error placeholder for the image.
type RenderedPage struct {
	AttachmentPage
	Image     []byte
	MimeType  string
	Placement ImagePlacement
	Failed    bool
}

// DocumentEncoder turns projections into downloadable file bytes. The
// report engine's contract ends at the row/page structures; swapping in an
// xlsx or PDF writer is a matter of implementing this interface.
type DocumentEncoder interface {
	EncodeSpreadsheet(projection SpreadsheetProjection) ([]byte, string, error)
	EncodeAttachmentDocument(ledgerName string, pages []RenderedPage) ([]byte, string, error)
}

// AttachmentFetcher resolves an opaque attachment reference to image bytes
// plus decoded pixel dimensions.
type AttachmentFetcher interface {
	Fetch(ctx context.Context, ref string) (data []byte, mimeType string, width, height int, err error)
}

type ExportService struct {
	db        *sql.DB
	encoder   DocumentEncoder
	fetcher   AttachmentFetcher
	exportCfg *config.ExportConfig
}

func NewExportService(db *sql.DB, encoder DocumentEncoder, fetcher AttachmentFetcher, exportCfg *config.ExportConfig) *ExportService {
	return &ExportService{
		db:        db,
		encoder:   encoder,
		fetcher:   fetcher,
		exportCfg: exportCfg,
	}
}

// ExportSpreadsheet builds the tabular export of a whole ledger.
func (es *ExportService) ExportSpreadsheet(ctx context.Context, userID int, ledgerID string) (string, []byte, error) {
	name, entries, err := es.loadLedgerEntries(ctx, userID, ledgerID)
	if err != nil {
		return "", nil, err
	}

	projection := BuildSpreadsheetProjection(entries)

	data, ext, err := es.encoder.EncodeSpreadsheet(projection)
	if err != nil {
		return "", nil, fmt.Errorf("spreadsheet encoding failed: %w", err)
	}

	log.Printf("[EXPORT] Spreadsheet export for ledger %s: %d rows", ledgerID, len(projection.Rows))
	return sanitizeFilename(name) + ext, data, nil
}

// ExportAttachments builds the attachment document of a whole ledger.
// Images are fetched sequentially, one at a time, in flattened order: each
// must be fully decoded before its page layout is known, and a failure on
// one attachment must not affect the next.
func (es *ExportService) ExportAttachments(ctx context.Context, userID int, ledgerID string) (string, []byte, error) {
	name, entries, err := es.loadLedgerEntries(ctx, userID, ledgerID)
	if err != nil {
		return "", nil, err
	}

	pages := BuildAttachmentProjection(entries)
	if len(pages) == 0 {
		return "", nil, ErrNoAttachments
	}

	rendered := make([]RenderedPage, 0, len(pages))
	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			// User went away mid-export; abandon without surfacing a
			// partial file.
			return "", nil, err
		}

		data, mimeType, width, height, err := es.fetcher.Fetch(ctx, page.Ref)
		if err != nil {
			log.Printf("[EXPORT] Attachment %d/%d failed for ledger %s: %v", i+1, len(pages), ledgerID, err)
			rendered = append(rendered, RenderedPage{AttachmentPage: page, Failed: true})
			continue
		}

		rendered = append(rendered, RenderedPage{
			AttachmentPage: page,
			Image:          data,
			MimeType:       mimeType,
			Placement:      FitImage(width, height, es.exportCfg),
		})
	}

	data, ext, err := es.encoder.EncodeAttachmentDocument(name, rendered)
	if err != nil {
		return "", nil, fmt.Errorf("attachment document encoding failed: %w", err)
	}

	log.Printf("[EXPORT] Attachment export for ledger %s: %d pages", ledgerID, len(rendered))
	return sanitizeFilename(name) + " - Attachments" + ext, data, nil
}

func (es *ExportService) loadLedgerEntries(ctx context.Context, userID int, ledgerID string) (string, []models.Entry, error) {
	var name string
	err := es.db.QueryRowContext(ctx, `SELECT name FROM ledgers WHERE id = $1 AND user_id = $2`, ledgerID, userID).Scan(&name)
	if err != nil {
		return "", nil, err
	}

	rows, err := es.db.QueryContext(ctx, `
		SELECT id, ledger_id, kind, entry_date, entry_time, details, category, mode, amount, attachments, COALESCE(notes, ''), position, created_at
		FROM entries
		WHERE ledger_id = $1
		ORDER BY position ASC
	`, ledgerID)
	if err != nil {
		return "", nil, err
	}
	defer rows.Close()

	var entries []models.Entry
	for rows.Next() {
		var entry models.Entry
		if err := rows.Scan(&entry.ID, &entry.LedgerID, &entry.Kind, &entry.Date, &entry.Time, &entry.Details,
			&entry.Category, &entry.Mode, &entry.Amount, &entry.Attachments, &entry.Notes, &entry.Position, &entry.CreatedAt); err != nil {
			return "", nil, err
		}
		entries = append(entries, entry)
	}

	return name, entries, rows.Err()
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9 _-]+`)

func sanitizeFilename(name string) string {
	clean := unsafeFilenameChars.ReplaceAllString(name, "_")
	clean = strings.TrimSpace(clean)
	if clean == "" {
		return "ledger"
	}
	return clean
}

// HTTPAttachmentFetcher resolves attachment references: inline data URLs,
// files under the local upload dir, and remote http(s) URLs.
type HTTPAttachmentFetcher struct {
	client    *http.Client
	uploadDir string
}

func NewHTTPAttachmentFetcher(uploadDir string) *HTTPAttachmentFetcher {
	return &HTTPAttachmentFetcher{
		client:    &http.Client{Timeout: 30 * time.Second},
		uploadDir: uploadDir,
	}
}

func (f *HTTPAttachmentFetcher) Fetch(ctx context.Context, ref string) ([]byte, string, int, int, error) {
	var data []byte
	var err error

	switch {
	case strings.HasPrefix(ref, "data:"):
		data, err = decodeDataURL(ref)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		data, err = f.fetchRemote(ctx, ref)
	case strings.HasPrefix(ref, "/static/attachments/"):
		data, err = os.ReadFile(filepath.Join(f.uploadDir, filepath.Clean(strings.TrimPrefix(ref, "/static/attachments/"))))
	default:
		err = fmt.Errorf("unsupported attachment reference")
	}
	if err != nil {
		return nil, "", 0, 0, err
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", 0, 0, fmt.Errorf("image decode failed: %w", err)
	}

	return data, "image/" + format, cfg.Width, cfg.Height, nil
}

func (f *HTTPAttachmentFetcher) fetchRemote(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch image: %s", resp.Status)
	}

	// Read one byte past the cap so an oversized body fails the fetch
	// instead of getting truncated into a corrupt image.
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteAttachmentBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxRemoteAttachmentBytes {
		return nil, fmt.Errorf("attachment exceeds %d bytes", maxRemoteAttachmentBytes)
	}
	return data, nil
}

func decodeDataURL(ref string) ([]byte, error) {
	comma := strings.Index(ref, ",")
	if comma < 0 {
		return nil, fmt.Errorf("malformed data URL")
	}
	meta := ref[:comma]
	if !strings.Contains(meta, ";base64") {
		return nil, fmt.Errorf("unsupported data URL encoding")
	}
	return base64.StdEncoding.DecodeString(ref[comma+1:])
}
