package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the state of one member-month.
type PaymentStatus string

const (
	StatusUnpaid PaymentStatus = "Unpaid"
	StatusPaid   PaymentStatus = "Paid"
	// StatusNotApplicable marks months before the member's admission month.
	StatusNotApplicable PaymentStatus = "N/A"
)

// Payment is the ledger row for one member-month. At most one row exists
// per (member, year, month).
type Payment struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	MemberID  uint          `gorm:"not null;uniqueIndex:idx_payment_period" json:"member_id"`
	Year      int           `gorm:"not null;uniqueIndex:idx_payment_period" json:"year"`
	Month     int           `gorm:"not null;uniqueIndex:idx_payment_period" json:"month"`
	Status    PaymentStatus `gorm:"type:varchar(16);not null;default:Unpaid;index" json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

func (p *Payment) Period() Period {
	return Period{Year: p.Year, Month: p.Month}
}

// PaymentTransaction is one collected amount. Several may exist for a
// member-month; the latest by CreatedAt (then ID) is authoritative.
type PaymentTransaction struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	MemberID   uint            `gorm:"not null;index:idx_tx_period" json:"member_id"`
	Year       int             `gorm:"not null;index:idx_tx_period" json:"year"`
	Month      int             `gorm:"not null;index:idx_tx_period" json:"month"`
	Amount     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	PlanType   string          `gorm:"default:monthly" json:"plan_type"`
	Method     string          `gorm:"default:cash" json:"method"`
	RecordedBy string          `json:"recorded_by"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (t *PaymentTransaction) Period() Period {
	return Period{Year: t.Year, Month: t.Month}
}
