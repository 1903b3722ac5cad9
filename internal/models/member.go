package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Member is a gym member. The fee ledger reads members and only ever
// writes LastContactAt.
type Member struct {
	ID            uint                `gorm:"primaryKey" json:"id"`
	Name          string              `gorm:"not null" json:"name"`
	Phone         string              `gorm:"index" json:"phone"`
	Email         string              `json:"email"`
	AdmissionDate time.Time           `gorm:"type:date;not null" json:"admission_date"`
	PlanType      string              `gorm:"default:monthly" json:"plan_type"`
	MonthlyFee    decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"monthly_fee"`
	LastContactAt *time.Time          `json:"last_contact_at"`
	IsActive      bool                `gorm:"default:true" json:"is_active"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// AdmissionPeriod returns the month the member joined in.
func (m *Member) AdmissionPeriod() Period {
	return Period{Year: m.AdmissionDate.Year(), Month: int(m.AdmissionDate.Month())}
}

// EffectiveFee returns the member's fee override, or fallback when the
// override is unset or zero.
func (m *Member) EffectiveFee(fallback decimal.Decimal) decimal.Decimal {
	if m.MonthlyFee.Valid && !m.MonthlyFee.Decimal.IsZero() {
		return m.MonthlyFee.Decimal
	}
	return fallback
}
