package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vikasavnish/gymledger/internal/models"
)

func TestSettingsDefaultsAndOverrides(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	gym, err := s.settings.Current(ctx)
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if gym.GymName != "Test Gym" || gym.CurrencyCode != "PKR" || gym.CountryCode != "92" {
		t.Errorf("defaults = %+v", gym)
	}
	if !gym.MonthlyPrice.Equal(decimal.NewFromInt(8)) {
		t.Errorf("default price = %s", gym.MonthlyPrice)
	}

	if err := s.settings.SetMany(ctx, map[string]string{
		models.SettingGymName:     "Iron House",
		models.SettingMonthlyFee:  "25.5",
		models.SettingCountryCode: "44",
	}); err != nil {
		t.Fatalf("SetMany() error = %v", err)
	}
	// Upsert replaces the existing row.
	if err := s.settings.Set(ctx, models.SettingGymName, "Iron House 2"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	gym, err = s.settings.Current(ctx)
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if gym.GymName != "Iron House 2" || gym.CountryCode != "44" {
		t.Errorf("overrides = %+v", gym)
	}
	if !gym.MonthlyPrice.Equal(decimal.RequireFromString("25.5")) {
		t.Errorf("price = %s", gym.MonthlyPrice)
	}

	var n int64
	s.db.Model(&models.Setting{}).Where("key = ?", models.SettingGymName).Count(&n)
	if n != 1 {
		t.Errorf("gym_name rows = %d, want 1", n)
	}
}

func TestSettingsInvalidPriceFallsBack(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()
	if err := s.settings.Set(ctx, models.SettingMonthlyFee, "eight"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	gym, err := s.settings.Current(ctx)
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if !gym.MonthlyPrice.Equal(decimal.NewFromInt(8)) {
		t.Errorf("price = %s, want default 8", gym.MonthlyPrice)
	}

	value, ok, err := s.settings.Get(ctx, "missing")
	if err != nil || ok || value != "" {
		t.Errorf("Get(missing) = %q, %v, %v", value, ok, err)
	}
	if err := s.settings.Set(ctx, "  ", "x"); err == nil {
		t.Error("expected error for empty key")
	}
}
