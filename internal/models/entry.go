package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Entry kinds. Stored as-is in the entries table and on the wire.
const (
	KindCashIn  = "cash-in"
	KindCashOut = "cash-out"
)

// MaxAttachments is the per-entry attachment cap.
const MaxAttachments = 5

// Attachments is an ordered list of opaque image references (data URLs or
// stored URLs). Persisted as JSONB.
type Attachments []string

// Entry represents a single cash-in or cash-out record inside a ledger.
// Date is a 'YYYY-MM-DD' string and Time a 24-hour 'HH:MM' string, kept as
// entered. Position is the server-assigned insertion sequence used to break
// same-minute ties.
type Entry struct {
	ID          string      `json:"id" db:"id"`
	LedgerID    string      `json:"ledgerId" db:"ledger_id"`
	Kind        string      `json:"kind" db:"kind"`
	Date        string      `json:"date" db:"entry_date"`
	Time        string      `json:"time" db:"entry_time"`
	Details     string      `json:"details" db:"details"`
	Category    string      `json:"category" db:"category"`
	Mode        string      `json:"mode" db:"mode"`
	Amount      float64     `json:"amount" db:"amount"`
	Attachments Attachments `json:"attachments" db:"attachments"`
	Notes       string      `json:"notes,omitempty" db:"notes"`
	Position    int64       `json:"-" db:"position"`
	CreatedAt   time.Time   `json:"createdAt" db:"created_at"`
}

// EntryWithBalance is an Entry annotated with the running balance through
// and including that entry. Derived on every read, never persisted.
type EntryWithBalance struct {
	Entry
	Balance float64 `json:"balance"`
}

func (a Attachments) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	return json.Marshal(a)
}

func (a *Attachments) Scan(value interface{}) error {
	if value == nil {
		*a = Attachments{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("unsupported type for attachments")
	}

	return json.Unmarshal(data, a)
}
