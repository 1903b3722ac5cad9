package services

import (
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vikasavnish/gymledger/internal/config"
	"github.com/vikasavnish/gymledger/internal/db"
	"github.com/vikasavnish/gymledger/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	url := filepath.Join(t.TempDir(), "ledger.db")
	gdb, err := db.Connect(config.DatabaseConfig{URL: url, SlowThreshold: time.Second}, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

func testGymConfig() config.GymConfig {
	return config.GymConfig{Name: "Test Gym", Currency: "PKR", MonthlyFee: "8", CountryCode: "92"}
}

type testServices struct {
	db       *gorm.DB
	settings *SettingsService
	ledger   *LedgerService
	payments *PaymentService
	members  *MemberService
}

func newTestServices(t *testing.T) *testServices {
	t.Helper()
	gdb := newTestDB(t)
	settings := NewSettingsService(gdb, testGymConfig())
	return &testServices{
		db:       gdb,
		settings: settings,
		ledger:   NewLedgerService(gdb, settings),
		payments: NewPaymentService(gdb, settings, nil, nil, zap.NewNop()),
		members:  NewMemberService(gdb, settings, zap.NewNop()),
	}
}

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

// addMember inserts a member without materializing any ledger rows.
func addMember(t *testing.T, gdb *gorm.DB, name, phone string, admission time.Time) *models.Member {
	t.Helper()
	m := &models.Member{Name: name, Phone: phone, AdmissionDate: admission, PlanType: "monthly", IsActive: true}
	if err := gdb.Create(m).Error; err != nil {
		t.Fatalf("Failed to create member %s: %v", name, err)
	}
	return m
}

func paymentRows(t *testing.T, gdb *gorm.DB, memberID uint, year int) map[int]models.PaymentStatus {
	t.Helper()
	var rows []models.Payment
	if err := gdb.Where("member_id = ? AND year = ?", memberID, year).Find(&rows).Error; err != nil {
		t.Fatalf("Failed to load payments: %v", err)
	}
	out := make(map[int]models.PaymentStatus, len(rows))
	for _, r := range rows {
		if _, dup := out[r.Month]; dup {
			t.Fatalf("duplicate row for member %d %d-%02d", memberID, year, r.Month)
		}
		out[r.Month] = r.Status
	}
	return out
}

func countTransactions(t *testing.T, gdb *gorm.DB, memberID uint, p models.Period) int64 {
	t.Helper()
	var n int64
	if err := gdb.Model(&models.PaymentTransaction{}).
		Where("member_id = ? AND year = ? AND month = ?", memberID, p.Year, p.Month).
		Count(&n).Error; err != nil {
		t.Fatalf("Failed to count transactions: %v", err)
	}
	return n
}
