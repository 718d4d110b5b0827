package models

import (
	"time"
)

// Ledger is a named collection of entries owned by a single user.
// Deleting a ledger deletes all of its entries.
type Ledger struct {
	ID        string    `json:"id" db:"id"`
	UserID    int       `json:"-" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"` // set once, immutable
}

// LedgerSummary holds the aggregate totals of one ledger.
type LedgerSummary struct {
	CashIn  float64 `json:"cashIn"`
	CashOut float64 `json:"cashOut"`
	Balance float64 `json:"balance"`
}
