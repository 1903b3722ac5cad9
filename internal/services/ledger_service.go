package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vikasavnish/gymledger/internal/models"
)

const dateLayout = "2006-01-02"

// LedgerService reads and lazily materializes the per-member monthly
// payment rows.
type LedgerService struct {
	db       *gorm.DB
	settings *SettingsService
}

func NewLedgerService(db *gorm.DB, settings *SettingsService) *LedgerService {
	return &LedgerService{db: db, settings: settings}
}

// PeriodEntry is one member's state for a listed period.
type PeriodEntry struct {
	Member   models.Member        `json:"member"`
	Year     int                  `json:"year"`
	Month    int                  `json:"month"`
	Status   models.PaymentStatus `json:"status"`
	Amount   decimal.Decimal      `json:"amount"`
	PaidDate *string              `json:"paid_date"`
}

type PeriodSummary struct {
	Year           int             `json:"year"`
	Month          int             `json:"month"`
	PaidCount      int64           `json:"paid_count"`
	UnpaidCount    int64           `json:"unpaid_count"`
	PaidTotal      decimal.Decimal `json:"paid_total"`
	UnpaidTotal    decimal.Decimal `json:"unpaid_total"`
	PaymentPercent float64         `json:"payment_percent"`
}

type PeriodDetailEntry struct {
	MemberID      uint                 `json:"member_id"`
	Name          string               `json:"name"`
	Phone         string               `json:"phone"`
	Email         string               `json:"email"`
	AdmissionDate string               `json:"admission_date"`
	IsActive      bool                 `json:"is_active"`
	Status        models.PaymentStatus `json:"status"`
	Amount        decimal.Decimal      `json:"amount"`
	PaidDate      *string              `json:"paid_date"`
}

type PeriodDetail struct {
	Year        int                 `json:"year"`
	Month       int                 `json:"month"`
	PaidCount   int                 `json:"paid_count"`
	UnpaidCount int                 `json:"unpaid_count"`
	Collected   decimal.Decimal     `json:"collected"`
	Currency    string              `json:"currency"`
	Members     []PeriodDetailEntry `json:"members"`
}

type HistoryEntry struct {
	Year      int                  `json:"year"`
	Month     int                  `json:"month"`
	MonthName string               `json:"month_name"`
	Status    models.PaymentStatus `json:"status"`
	Amount    *decimal.Decimal     `json:"amount"`
	PaidDate  *string              `json:"paid_date"`
}

type MemberHistory struct {
	Member        *models.Member `json:"member"`
	LastPaidMonth *string        `json:"last_paid_month"`
	MonthsUnpaid  int            `json:"months_unpaid"`
	Currency      string         `json:"currency"`
	Payments      []HistoryEntry `json:"payments"`
}

type UnpaidMember struct {
	ID            uint            `json:"id"`
	Name          string          `json:"name"`
	Phone         string          `json:"phone"`
	LastPaidMonth *string         `json:"last_paid_month"`
	MonthsUnpaid  int64           `json:"months_unpaid"`
	TotalDue      decimal.Decimal `json:"total_due"`
}

// EnsureYear materializes any missing rows of the member's year.
func (s *LedgerService) EnsureYear(ctx context.Context, memberID uint, year int) error {
	if err := (models.Period{Year: year, Month: 1}).Validate(); err != nil {
		return err
	}
	member, err := findMember(s.db.WithContext(ctx), memberID)
	if err != nil {
		return err
	}
	return ensureYear(s.db.WithContext(ctx), member, year)
}

// ensureYear creates the missing month rows for (member, year). Months
// before the admission month start N/A, the rest Unpaid. Existing rows are
// left untouched.
func ensureYear(tx *gorm.DB, member *models.Member, year int) error {
	var existing int64
	if err := tx.Model(&models.Payment{}).
		Where("member_id = ? AND year = ?", member.ID, year).
		Count(&existing).Error; err != nil {
		return err
	}
	if existing >= 12 {
		return nil
	}

	admission := member.AdmissionPeriod()
	rows := make([]models.Payment, 0, 12)
	for month := 1; month <= 12; month++ {
		status := models.StatusUnpaid
		if (models.Period{Year: year, Month: month}).Before(admission) {
			status = models.StatusNotApplicable
		}
		rows = append(rows, models.Payment{MemberID: member.ID, Year: year, Month: month, Status: status})
	}

	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "member_id"}, {Name: "year"}, {Name: "month"}},
		DoNothing: true,
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("ensure payment rows for member %d year %d: %w", member.ID, year, err)
	}
	return nil
}

// GetStatus returns the member's status for the period, materializing the
// year first.
func (s *LedgerService) GetStatus(ctx context.Context, memberID uint, period models.Period) (models.PaymentStatus, error) {
	if err := period.Validate(); err != nil {
		return "", err
	}
	db := s.db.WithContext(ctx)
	member, err := findMember(db, memberID)
	if err != nil {
		return "", err
	}
	if err := ensureYear(db, member, period.Year); err != nil {
		return "", err
	}

	var payment models.Payment
	err = db.Where("member_id = ? AND year = ? AND month = ?", memberID, period.Year, period.Month).
		First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.StatusUnpaid, nil
	}
	if err != nil {
		return "", err
	}
	return payment.Status, nil
}

// ListPeriod returns every member's state for the period, ensuring each
// member's year exists before reading.
func (s *LedgerService) ListPeriod(ctx context.Context, period models.Period) ([]PeriodEntry, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)

	var members []models.Member
	if err := db.Order("id").Find(&members).Error; err != nil {
		return nil, err
	}
	for i := range members {
		if err := ensureYear(db, &members[i], period.Year); err != nil {
			return nil, err
		}
	}

	statuses, err := periodStatuses(db, period)
	if err != nil {
		return nil, err
	}
	latest, err := latestTransactions(db, period)
	if err != nil {
		return nil, err
	}

	entries := make([]PeriodEntry, 0, len(members))
	for _, m := range members {
		entry := PeriodEntry{Member: m, Year: period.Year, Month: period.Month, Status: models.StatusUnpaid, Amount: decimal.Zero}
		if st, ok := statuses[m.ID]; ok {
			entry.Status = st
		}
		if entry.Status == models.StatusPaid {
			if tx, ok := latest[m.ID]; ok {
				entry.Amount = tx.Amount
				entry.PaidDate = formatDate(tx)
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// PeriodDetail reports the materialized rows of a period without generating
// new ones.
func (s *LedgerService) PeriodDetail(ctx context.Context, period models.Period) (*PeriodDetail, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)

	gym, err := s.settings.Current(ctx)
	if err != nil {
		return nil, err
	}

	var payments []models.Payment
	if err := db.Where("year = ? AND month = ?", period.Year, period.Month).
		Order("member_id").Find(&payments).Error; err != nil {
		return nil, err
	}
	members, err := membersByID(db, paymentMemberIDs(payments))
	if err != nil {
		return nil, err
	}
	latest, err := latestTransactions(db, period)
	if err != nil {
		return nil, err
	}

	detail := &PeriodDetail{
		Year:      period.Year,
		Month:     period.Month,
		Collected: decimal.Zero,
		Currency:  gym.CurrencyCode,
		Members:   []PeriodDetailEntry{},
	}
	for _, p := range payments {
		switch p.Status {
		case models.StatusPaid:
			detail.PaidCount++
		case models.StatusUnpaid:
			detail.UnpaidCount++
		}

		m, ok := members[p.MemberID]
		if !ok {
			continue
		}
		entry := PeriodDetailEntry{
			MemberID:      m.ID,
			Name:          m.Name,
			Phone:         m.Phone,
			Email:         m.Email,
			AdmissionDate: m.AdmissionDate.Format(dateLayout),
			IsActive:      m.IsActive,
			Status:        p.Status,
			Amount:        decimal.Zero,
		}
		if p.Status == models.StatusPaid {
			if tx, ok := latest[m.ID]; ok {
				entry.Amount = tx.Amount
				entry.PaidDate = formatDate(tx)
				detail.Collected = detail.Collected.Add(tx.Amount)
			}
		}
		detail.Members = append(detail.Members, entry)
	}
	detail.Collected = detail.Collected.Round(2)
	return detail, nil
}

// Summary aggregates the period. The collected total sums every transaction
// of the period; the projected total uses the global monthly price.
func (s *LedgerService) Summary(ctx context.Context, period models.Period) (*PeriodSummary, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)

	gym, err := s.settings.Current(ctx)
	if err != nil {
		return nil, err
	}

	summary := &PeriodSummary{Year: period.Year, Month: period.Month}
	if err := db.Model(&models.Payment{}).
		Where("year = ? AND month = ? AND status = ?", period.Year, period.Month, models.StatusPaid).
		Count(&summary.PaidCount).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Payment{}).
		Where("year = ? AND month = ? AND status = ?", period.Year, period.Month, models.StatusUnpaid).
		Count(&summary.UnpaidCount).Error; err != nil {
		return nil, err
	}

	var amounts []decimal.Decimal
	if err := db.Model(&models.PaymentTransaction{}).
		Where("year = ? AND month = ?", period.Year, period.Month).
		Pluck("amount", &amounts).Error; err != nil {
		return nil, err
	}
	summary.PaidTotal = decimal.Sum(decimal.Zero, amounts...).Round(2)
	summary.UnpaidTotal = gym.MonthlyPrice.Mul(decimal.NewFromInt(summary.UnpaidCount)).Round(2)
	summary.PaymentPercent = paymentPercent(summary.PaidCount, summary.UnpaidCount)
	return summary, nil
}

func paymentPercent(paid, unpaid int64) float64 {
	total := paid + unpaid
	if total == 0 {
		return 0
	}
	return decimal.NewFromInt(paid * 100).Div(decimal.NewFromInt(total)).Round(2).InexactFloat64()
}

// MemberHistory lists all of a member's rows, newest period first. An
// unknown member yields an empty history.
func (s *LedgerService) MemberHistory(ctx context.Context, memberID uint) (*MemberHistory, error) {
	db := s.db.WithContext(ctx)

	gym, err := s.settings.Current(ctx)
	if err != nil {
		return nil, err
	}
	history := &MemberHistory{Currency: gym.CurrencyCode, Payments: []HistoryEntry{}}

	member, err := findMember(db, memberID)
	if errors.Is(err, ErrMemberNotFound) {
		return history, nil
	}
	if err != nil {
		return nil, err
	}
	history.Member = member

	var payments []models.Payment
	if err := db.Where("member_id = ?", memberID).
		Order("year DESC").Order("month DESC").
		Find(&payments).Error; err != nil {
		return nil, err
	}

	var txs []models.PaymentTransaction
	if err := db.Where("member_id = ?", memberID).
		Order("created_at DESC").Order("id DESC").
		Find(&txs).Error; err != nil {
		return nil, err
	}
	latest := make(map[models.Period]models.PaymentTransaction)
	for _, tx := range txs {
		if _, ok := latest[tx.Period()]; !ok {
			latest[tx.Period()] = tx
		}
	}

	for _, p := range payments {
		entry := HistoryEntry{
			Year:      p.Year,
			Month:     p.Month,
			MonthName: p.Period().MonthName(),
			Status:    p.Status,
		}
		switch p.Status {
		case models.StatusPaid:
			if history.LastPaidMonth == nil {
				label := p.Period().ShortLabel()
				history.LastPaidMonth = &label
			}
			if tx, ok := latest[p.Period()]; ok {
				amount := tx.Amount
				entry.Amount = &amount
				entry.PaidDate = formatDate(tx)
			}
		case models.StatusUnpaid:
			history.MonthsUnpaid++
		}
		history.Payments = append(history.Payments, entry)
	}
	return history, nil
}

type unpaidCount struct {
	MemberID uint
	Count    int64
}

// UnpaidReport lists every member with at least one Unpaid row, ordered by
// member id.
func (s *LedgerService) UnpaidReport(ctx context.Context) ([]UnpaidMember, error) {
	db := s.db.WithContext(ctx)

	gym, err := s.settings.Current(ctx)
	if err != nil {
		return nil, err
	}

	var counts []unpaidCount
	if err := db.Model(&models.Payment{}).
		Select("member_id, COUNT(*) AS count").
		Where("status = ?", models.StatusUnpaid).
		Group("member_id").
		Order("member_id").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	if len(counts) == 0 {
		return []UnpaidMember{}, nil
	}

	ids := make([]uint, 0, len(counts))
	for _, c := range counts {
		ids = append(ids, c.MemberID)
	}
	members, err := membersByID(db, ids)
	if err != nil {
		return nil, err
	}

	var paid []models.Payment
	if err := db.Where("status = ? AND member_id IN ?", models.StatusPaid, ids).
		Order("year DESC").Order("month DESC").
		Find(&paid).Error; err != nil {
		return nil, err
	}
	lastPaid := make(map[uint]string)
	for _, p := range paid {
		if _, ok := lastPaid[p.MemberID]; !ok {
			lastPaid[p.MemberID] = p.Period().ShortLabel()
		}
	}

	report := make([]UnpaidMember, 0, len(counts))
	for _, c := range counts {
		m, ok := members[c.MemberID]
		if !ok {
			continue
		}
		row := UnpaidMember{
			ID:           m.ID,
			Name:         m.Name,
			Phone:        m.Phone,
			MonthsUnpaid: c.Count,
			TotalDue:     gym.MonthlyPrice.Mul(decimal.NewFromInt(c.Count)).Round(2),
		}
		if label, ok := lastPaid[m.ID]; ok {
			row.LastPaidMonth = &label
		}
		report = append(report, row)
	}
	return report, nil
}

func findMember(db *gorm.DB, id uint) (*models.Member, error) {
	var member models.Member
	err := db.First(&member, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func membersByID(db *gorm.DB, ids []uint) (map[uint]models.Member, error) {
	out := make(map[uint]models.Member, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var members []models.Member
	if err := db.Where("id IN ?", ids).Find(&members).Error; err != nil {
		return nil, err
	}
	for _, m := range members {
		out[m.ID] = m
	}
	return out, nil
}

func paymentMemberIDs(payments []models.Payment) []uint {
	ids := make([]uint, 0, len(payments))
	for _, p := range payments {
		ids = append(ids, p.MemberID)
	}
	return ids
}

func periodStatuses(db *gorm.DB, period models.Period) (map[uint]models.PaymentStatus, error) {
	var payments []models.Payment
	if err := db.Where("year = ? AND month = ?", period.Year, period.Month).Find(&payments).Error; err != nil {
		return nil, err
	}
	out := make(map[uint]models.PaymentStatus, len(payments))
	for _, p := range payments {
		out[p.MemberID] = p.Status
	}
	return out, nil
}

// latestTransactions returns the authoritative transaction per member for
// the period: latest CreatedAt, then highest ID.
func latestTransactions(db *gorm.DB, period models.Period) (map[uint]models.PaymentTransaction, error) {
	var txs []models.PaymentTransaction
	if err := db.Where("year = ? AND month = ?", period.Year, period.Month).
		Order("created_at DESC").Order("id DESC").
		Find(&txs).Error; err != nil {
		return nil, err
	}
	out := make(map[uint]models.PaymentTransaction)
	for _, tx := range txs {
		if _, ok := out[tx.MemberID]; !ok {
			out[tx.MemberID] = tx
		}
	}
	return out, nil
}

func formatDate(tx models.PaymentTransaction) *string {
	if tx.CreatedAt.IsZero() {
		return nil
	}
	s := tx.CreatedAt.Format(dateLayout)
	return &s
}
