package services

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vikasavnish/gymledger/internal/models"
)

// MemberService is the administrative surface over members. It keeps the
// ledger populated for each member's admission year.
type MemberService struct {
	db       *gorm.DB
	settings *SettingsService
	log      *zap.Logger
}

func NewMemberService(db *gorm.DB, settings *SettingsService, log *zap.Logger) *MemberService {
	return &MemberService{db: db, settings: settings, log: log}
}

// MemberUpdate carries the fields a PATCH-style update may change.
type MemberUpdate struct {
	Name          *string
	Phone         *string
	Email         *string
	AdmissionDate *time.Time
	PlanType      *string
	MonthlyFee    *decimal.NullDecimal
	IsActive      *bool
}

// MemberImport is one already-parsed record from a bulk import.
type MemberImport struct {
	Name          string
	Phone         string
	Email         string
	AdmissionDate time.Time
	MonthlyFee    *decimal.Decimal
}

type ImportResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Merged  int `json:"merged"`
}

func (s *MemberService) List(ctx context.Context) ([]models.Member, error) {
	var members []models.Member
	if err := s.db.WithContext(ctx).Order("id").Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

func (s *MemberService) Get(ctx context.Context, id uint) (*models.Member, error) {
	return findMember(s.db.WithContext(ctx), id)
}

// Create stores the member and materializes its admission year.
func (s *MemberService) Create(ctx context.Context, member *models.Member) error {
	member.Name = strings.TrimSpace(member.Name)
	if member.Name == "" || member.AdmissionDate.IsZero() {
		return ErrInvalidInput
	}
	if member.PlanType == "" {
		member.PlanType = "monthly"
	}
	member.IsActive = true

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(member).Error; err != nil {
			return err
		}
		return ensureYear(tx, member, member.AdmissionDate.Year())
	})
	if err != nil {
		return err
	}
	s.log.Info("member created", zap.Uint("member_id", member.ID), zap.String("admission", member.AdmissionDate.Format(dateLayout)))
	return nil
}

// Update applies the non-nil fields. A changed admission date only affects
// rows generated afterwards.
func (s *MemberService) Update(ctx context.Context, id uint, upd MemberUpdate) (*models.Member, error) {
	var member *models.Member
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		member, err = findMember(tx, id)
		if err != nil {
			return err
		}

		if upd.Name != nil {
			name := strings.TrimSpace(*upd.Name)
			if name == "" {
				return ErrInvalidInput
			}
			member.Name = name
		}
		if upd.Phone != nil {
			member.Phone = strings.TrimSpace(*upd.Phone)
		}
		if upd.Email != nil {
			member.Email = strings.TrimSpace(*upd.Email)
		}
		if upd.AdmissionDate != nil {
			if upd.AdmissionDate.IsZero() {
				return ErrInvalidInput
			}
			member.AdmissionDate = *upd.AdmissionDate
		}
		if upd.PlanType != nil {
			member.PlanType = *upd.PlanType
		}
		if upd.MonthlyFee != nil {
			member.MonthlyFee = *upd.MonthlyFee
		}
		if upd.IsActive != nil {
			member.IsActive = *upd.IsActive
		}

		if err := tx.Save(member).Error; err != nil {
			return err
		}
		return ensureYear(tx, member, member.AdmissionDate.Year())
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// Delete removes the member together with its ledger rows and transactions.
func (s *MemberService) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findMember(tx, id); err != nil {
			return err
		}
		if err := tx.Where("member_id = ?", id).Delete(&models.PaymentTransaction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("member_id = ?", id).Delete(&models.Payment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Member{}, id).Error
	})
}

// Import merges the records with each other and with existing members by
// normalized phone, or by name when the phone is empty. The earliest
// admission date wins and its year is materialized for every touched member.
func (s *MemberService) Import(ctx context.Context, records []MemberImport) (*ImportResult, error) {
	gym, err := s.settings.Current(ctx)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	var order []string
	merged := make(map[string]*MemberImport)
	for i := range records {
		rec := records[i]
		rec.Name = strings.TrimSpace(rec.Name)
		if rec.Name == "" || rec.AdmissionDate.IsZero() {
			return nil, ErrInvalidInput
		}
		key := importKey(rec.Name, rec.Phone, gym.CountryCode)
		if prev, ok := merged[key]; ok {
			mergeImport(prev, rec)
			result.Merged++
			continue
		}
		order = append(order, key)
		merged[key] = &rec
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []models.Member
		if err := tx.Order("id").Find(&existing).Error; err != nil {
			return err
		}
		byKey := make(map[string]*models.Member, len(existing))
		for i := range existing {
			key := importKey(existing[i].Name, existing[i].Phone, gym.CountryCode)
			if _, ok := byKey[key]; !ok {
				byKey[key] = &existing[i]
			}
		}

		for _, key := range order {
			rec := merged[key]
			member, ok := byKey[key]
			if !ok {
				member = &models.Member{
					Name:          rec.Name,
					Phone:         strings.TrimSpace(rec.Phone),
					Email:         strings.TrimSpace(rec.Email),
					AdmissionDate: rec.AdmissionDate,
					PlanType:      "monthly",
					IsActive:      true,
				}
				if rec.MonthlyFee != nil {
					member.MonthlyFee = decimal.NewNullDecimal(*rec.MonthlyFee)
				}
				if err := tx.Create(member).Error; err != nil {
					return err
				}
				result.Created++
			} else {
				if rec.AdmissionDate.Before(member.AdmissionDate) {
					member.AdmissionDate = rec.AdmissionDate
				}
				if member.Phone == "" {
					member.Phone = strings.TrimSpace(rec.Phone)
				}
				if member.Email == "" {
					member.Email = strings.TrimSpace(rec.Email)
				}
				if !member.MonthlyFee.Valid && rec.MonthlyFee != nil {
					member.MonthlyFee = decimal.NewNullDecimal(*rec.MonthlyFee)
				}
				if err := tx.Save(member).Error; err != nil {
					return err
				}
				result.Updated++
			}
			if err := ensureYear(tx, member, member.AdmissionDate.Year()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("members imported",
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("merged", result.Merged))
	return result, nil
}

func importKey(name, phone, countryCode string) string {
	if p := NormalizePhone(phone, countryCode); p != "" {
		return "phone:" + p
	}
	return "name:" + strings.ToLower(strings.TrimSpace(name))
}

func mergeImport(into *MemberImport, rec MemberImport) {
	if rec.AdmissionDate.Before(into.AdmissionDate) {
		into.AdmissionDate = rec.AdmissionDate
	}
	if into.Phone == "" {
		into.Phone = rec.Phone
	}
	if into.Email == "" {
		into.Email = rec.Email
	}
	if into.MonthlyFee == nil {
		into.MonthlyFee = rec.MonthlyFee
	}
}
