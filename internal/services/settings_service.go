package services

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vikasavnish/gymledger/internal/config"
	"github.com/vikasavnish/gymledger/internal/models"
)

// GymSettings is a typed snapshot of the settings the ledger reads.
type GymSettings struct {
	GymName      string          `json:"gym_name"`
	CurrencyCode string          `json:"currency_code"`
	MonthlyPrice decimal.Decimal `json:"monthly_price"`
	CountryCode  string          `json:"whatsapp_default_country_code"`
}

type SettingsService struct {
	db       *gorm.DB
	defaults config.GymConfig
}

func NewSettingsService(db *gorm.DB, defaults config.GymConfig) *SettingsService {
	return &SettingsService{db: db, defaults: defaults}
}

// Get returns the stored value for key. ok is false when the row is
// missing or empty.
func (s *SettingsService) Get(ctx context.Context, key string) (string, bool, error) {
	var setting models.Setting
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return setting.Value, setting.Value != "", nil
}

// Set upserts a setting.
func (s *SettingsService) Set(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrInvalidInput
	}
	setting := models.Setting{Key: key, Value: value}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&setting).Error
}

// SetMany upserts several settings in one transaction.
func (s *SettingsService) SetMany(ctx context.Context, values map[string]string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txSettings := &SettingsService{db: tx, defaults: s.defaults}
		for k, v := range values {
			if err := txSettings.Set(ctx, k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// All returns every stored setting with the known defaults filled in.
func (s *SettingsService) All(ctx context.Context) (map[string]string, error) {
	var rows []models.Setting
	if err := s.db.WithContext(ctx).Order("key").Find(&rows).Error; err != nil {
		return nil, err
	}

	out := map[string]string{
		models.SettingGymName:     s.defaults.Name,
		models.SettingCurrency:    s.defaults.Currency,
		models.SettingMonthlyFee:  s.defaults.MonthlyFee,
		models.SettingCountryCode: s.defaults.CountryCode,
	}
	for _, r := range rows {
		if r.Value != "" {
			out[r.Key] = r.Value
		}
	}
	return out, nil
}

// Current resolves the typed gym settings, falling back to the configured
// defaults for missing, empty or unparsable values.
func (s *SettingsService) Current(ctx context.Context) (GymSettings, error) {
	all, err := s.All(ctx)
	if err != nil {
		return GymSettings{}, err
	}

	price, err := decimal.NewFromString(strings.TrimSpace(all[models.SettingMonthlyFee]))
	if err != nil {
		price, err = decimal.NewFromString(s.defaults.MonthlyFee)
		if err != nil {
			price = decimal.Zero
		}
	}

	return GymSettings{
		GymName:      all[models.SettingGymName],
		CurrencyCode: all[models.SettingCurrency],
		MonthlyPrice: price,
		CountryCode:  all[models.SettingCountryCode],
	}, nil
}
