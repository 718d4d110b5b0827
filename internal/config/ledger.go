package config

import (
	"os"
	"strconv"
	"strings"
)

type LedgerConfig struct {
	PresetCategories []string
	MaxUploadBytes   int64
	UploadDir        string
	SummaryCacheTTL  int // seconds
}

// ExportConfig holds the page geometry used for attachment document layout.
// Units are points (1/72 inch), A4 portrait by default.
type ExportConfig struct {
	PageWidth    float64
	PageHeight   float64
	PageMargin   float64
	HeaderHeight float64
}

func LoadLedgerConfig() *LedgerConfig {
	return &LedgerConfig{
		PresetCategories: getEnvAsList("LEDGER_PRESET_CATEGORIES", []string{"Food", "Transport", "Advance", "Health Care"}),
		MaxUploadBytes:   int64(getEnvAsInt("LEDGER_MAX_UPLOAD_BYTES", 5*1024*1024)),
		UploadDir:        getEnv("LEDGER_UPLOAD_DIR", "./uploads/attachments"),
		SummaryCacheTTL:  getEnvAsInt("LEDGER_SUMMARY_CACHE_TTL", 300),
	}
}

func LoadExportConfig() *ExportConfig {
	return &ExportConfig{
		PageWidth:    getEnvAsFloat("EXPORT_PAGE_WIDTH", 595),
		PageHeight:   getEnvAsFloat("EXPORT_PAGE_HEIGHT", 842),
		PageMargin:   getEnvAsFloat("EXPORT_PAGE_MARGIN", 42),
		HeaderHeight: getEnvAsFloat("EXPORT_HEADER_HEIGHT", 140),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if floatVal, err := strconv.ParseFloat(val, 64); err == nil {
			return floatVal
		}
	}
	return defaultVal
}

func getEnvAsList(key string, defaultVal []string) []string {
	if val := os.Getenv(key); val != "" {
		parts := strings.Split(val, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultVal
}
