package models

// Setting is a single key/value configuration row.
type Setting struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Key   string `gorm:"uniqueIndex;not null" json:"key"`
	Value string `json:"value"`
}

// Setting keys read by the ledger and dispatcher
const (
	SettingGymName     = "gym_name"
	SettingCurrency    = "currency_code"
	SettingMonthlyFee  = "monthly_price"
	SettingCountryCode = "whatsapp_default_country_code"
)
