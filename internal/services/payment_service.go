package services

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vikasavnish/gymledger/internal/db"
	"github.com/vikasavnish/gymledger/internal/metrics"
	"github.com/vikasavnish/gymledger/internal/models"
)

// Notifier receives ledger events for connected dashboards.
type Notifier interface {
	Broadcast(msg models.Message)
}

// PaymentService flips ledger rows and records the matching transactions.
type PaymentService struct {
	db       *gorm.DB
	settings *SettingsService
	notifier Notifier
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func NewPaymentService(gdb *gorm.DB, settings *SettingsService, notifier Notifier, m *metrics.Metrics, log *zap.Logger) *PaymentService {
	return &PaymentService{db: gdb, settings: settings, notifier: notifier, metrics: m, log: log}
}

type RecordPaymentInput struct {
	MemberID uint
	Period   models.Period
	// Amount overrides the resolved fee when set
	Amount     *decimal.Decimal
	Method     string
	RecordedBy string
}

type Receipt struct {
	GymName     string                    `json:"gym_name"`
	Currency    string                    `json:"currency"`
	MonthName   string                    `json:"month_name"`
	Transaction models.PaymentTransaction `json:"tx"`
	Member      *models.Member            `json:"member"`
}

// RecordPayment marks the period Paid and appends a transaction in one
// database transaction. An already Paid period is rejected.
func (s *PaymentService) RecordPayment(ctx context.Context, in RecordPaymentInput) (*models.PaymentTransaction, error) {
	if in.MemberID == 0 {
		return nil, ErrInvalidInput
	}
	if err := in.Period.Validate(); err != nil {
		return nil, err
	}
	if in.Amount != nil && in.Amount.IsNegative() {
		return nil, ErrInvalidInput
	}

	gym, err := s.settings.Current(ctx)
	if err != nil {
		return nil, err
	}

	var record models.PaymentTransaction
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		member, err := findMember(tx, in.MemberID)
		if err != nil {
			return err
		}
		if err := ensureYear(tx, member, in.Period.Year); err != nil {
			return err
		}

		q := tx
		if db.IsPostgres(tx) {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var payment models.Payment
		if err := q.Where("member_id = ? AND year = ? AND month = ?", member.ID, in.Period.Year, in.Period.Month).
			First(&payment).Error; err != nil {
			return err
		}
		if payment.Status == models.StatusPaid {
			return ErrAlreadyPaid
		}

		amount := member.EffectiveFee(gym.MonthlyPrice)
		if in.Amount != nil {
			amount = *in.Amount
		}

		if err := tx.Model(&payment).Update("status", models.StatusPaid).Error; err != nil {
			return err
		}

		record = models.PaymentTransaction{
			MemberID:   member.ID,
			Year:       in.Period.Year,
			Month:      in.Period.Month,
			Amount:     amount,
			PlanType:   planType(member),
			Method:     method(in.Method),
			RecordedBy: in.RecordedBy,
		}
		return tx.Create(&record).Error
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PaymentMutation("recorded")
	s.log.Info("payment recorded",
		zap.Uint("member_id", record.MemberID),
		zap.String("period", in.Period.String()),
		zap.String("amount", record.Amount.String()),
		zap.Uint("transaction_id", record.ID))
	s.notify(models.EventPaymentRecorded, map[string]interface{}{
		"member_id":      record.MemberID,
		"year":           record.Year,
		"month":          record.Month,
		"transaction_id": record.ID,
		"amount":         record.Amount,
	})
	return &record, nil
}

// UnmarkPayment sets the period back to Unpaid and hard-deletes all of its
// transactions. A missing or N/A row is a no-op. It returns the number of
// transactions removed.
func (s *PaymentService) UnmarkPayment(ctx context.Context, memberID uint, period models.Period) (int64, error) {
	if memberID == 0 {
		return 0, ErrInvalidInput
	}
	if err := period.Validate(); err != nil {
		return 0, err
	}

	var deleted int64
	var found bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var payment models.Payment
		err := tx.Where("member_id = ? AND year = ? AND month = ?", memberID, period.Year, period.Month).
			First(&payment).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		// Months before admission stay N/A.
		if payment.Status == models.StatusNotApplicable {
			return nil
		}
		found = true

		if err := tx.Model(&payment).Update("status", models.StatusUnpaid).Error; err != nil {
			return err
		}
		result := tx.Where("member_id = ? AND year = ? AND month = ?", memberID, period.Year, period.Month).
			Delete(&models.PaymentTransaction{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}

	s.metrics.PaymentMutation("unmarked")
	s.log.Info("payment unmarked",
		zap.Uint("member_id", memberID),
		zap.String("period", period.String()),
		zap.Int64("transactions_deleted", deleted))
	s.notify(models.EventPaymentUnmarked, map[string]interface{}{
		"member_id": memberID,
		"year":      period.Year,
		"month":     period.Month,
	})
	return deleted, nil
}

// Receipt returns the printable context of one transaction.
func (s *PaymentService) Receipt(ctx context.Context, txID uint) (*Receipt, error) {
	gdb := s.db.WithContext(ctx)

	var record models.PaymentTransaction
	err := gdb.First(&record, txID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}

	gym, err := s.settings.Current(ctx)
	if err != nil {
		return nil, err
	}

	receipt := &Receipt{
		GymName:     gym.GymName,
		Currency:    gym.CurrencyCode,
		MonthName:   record.Period().MonthName(),
		Transaction: record,
	}
	member, err := findMember(gdb, record.MemberID)
	if err != nil && !errors.Is(err, ErrMemberNotFound) {
		return nil, err
	}
	receipt.Member = member
	return receipt, nil
}

func (s *PaymentService) notify(eventType string, content interface{}) {
	if s.notifier == nil {
		return
	}
	s.notifier.Broadcast(models.Message{Type: eventType, Content: content})
}

func planType(m *models.Member) string {
	if m.PlanType != "" {
		return m.PlanType
	}
	return "monthly"
}

func method(m string) string {
	m = strings.TrimSpace(m)
	if m == "" {
		return "cash"
	}
	return m
}
