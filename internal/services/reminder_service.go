package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/vikasavnish/gymledger/internal/config"
	"github.com/vikasavnish/gymledger/internal/messaging"
	"github.com/vikasavnish/gymledger/internal/metrics"
	"github.com/vikasavnish/gymledger/internal/models"
)

// Dispatch triggers
const (
	TriggerManual = "manual"
	TriggerDaily  = "daily"
)

// DispatchResult is the aggregate outcome of one reminder run.
type DispatchResult struct {
	RunID      string              `json:"run_id"`
	OK         bool                `json:"ok"`
	Trigger    string              `json:"trigger"`
	Year       int                 `json:"year"`
	Month      int                 `json:"month"`
	Mode       config.ReminderMode `json:"mode"`
	Sent       int                 `json:"sent"`
	Failed     int                 `json:"failed"`
	Error      string              `json:"error,omitempty"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
}

// ReminderService sends fee reminders to every Unpaid member of a period.
// Runs are not exactly-once: a repeat run re-sends to members still Unpaid.
type ReminderService struct {
	db       *gorm.DB
	settings *SettingsService
	gateway  messaging.Gateway
	cfg      config.MessagingConfig
	store    RunStore
	notifier Notifier
	metrics  *metrics.Metrics
	limiter  *rate.Limiter
	log      *zap.Logger
	now      func() time.Time
}

func NewReminderService(
	db *gorm.DB,
	settings *SettingsService,
	gateway messaging.Gateway,
	cfg config.MessagingConfig,
	store RunStore,
	notifier Notifier,
	m *metrics.Metrics,
	log *zap.Logger,
) *ReminderService {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.SendRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.SendRate), 1)
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = messaging.DefaultSendTimeout
	}
	if store == nil {
		store = NewMemoryRunStore()
	}
	return &ReminderService{
		db:       db,
		settings: settings,
		gateway:  gateway,
		cfg:      cfg,
		store:    store,
		notifier: notifier,
		metrics:  m,
		limiter:  limiter,
		log:      log,
		now:      time.Now,
	}
}

// Mode is the globally configured reminder mode.
func (s *ReminderService) Mode() config.ReminderMode {
	return s.cfg.Mode
}

// Run dispatches reminders for the period. Configuration problems fail the
// whole run; individual send failures only increment Failed.
func (s *ReminderService) Run(ctx context.Context, period models.Period, mode config.ReminderMode) (*DispatchResult, error) {
	return s.run(ctx, period, mode, TriggerManual)
}

// RunDaily is the scheduler callback: the current local period in the
// configured mode.
func (s *ReminderService) RunDaily(ctx context.Context) (*DispatchResult, error) {
	return s.run(ctx, models.PeriodOf(s.now()), s.cfg.Mode, TriggerDaily)
}

// LastRun returns the most recent stored result, or nil.
func (s *ReminderService) LastRun(ctx context.Context) (*DispatchResult, error) {
	return s.store.Last(ctx)
}

func (s *ReminderService) run(ctx context.Context, period models.Period, mode config.ReminderMode, trigger string) (*DispatchResult, error) {
	result := &DispatchResult{
		RunID:     uuid.NewString(),
		Trigger:   trigger,
		Year:      period.Year,
		Month:     period.Month,
		Mode:      mode,
		StartedAt: s.now(),
	}
	log := s.log.With(
		zap.String("run_id", result.RunID),
		zap.String("period", period.String()),
		zap.String("mode", string(mode)),
		zap.String("trigger", trigger))

	if err := s.checkConfig(period, mode); err != nil {
		s.finish(ctx, log, result, err)
		return result, err
	}

	gym, err := s.settings.Current(ctx)
	if err != nil {
		s.finish(ctx, log, result, err)
		return result, err
	}

	var unpaid []models.Payment
	if err := s.db.WithContext(ctx).
		Where("year = ? AND month = ? AND status = ?", period.Year, period.Month, models.StatusUnpaid).
		Order("member_id").
		Find(&unpaid).Error; err != nil {
		s.finish(ctx, log, result, err)
		return result, err
	}
	members, err := membersByID(s.db.WithContext(ctx), paymentMemberIDs(unpaid))
	if err != nil {
		s.finish(ctx, log, result, err)
		return result, err
	}

	for _, p := range unpaid {
		member, ok := members[p.MemberID]
		if !ok {
			log.Warn("unpaid row without member", zap.Uint("member_id", p.MemberID))
			s.countFailed(result)
			continue
		}
		to := NormalizePhone(member.Phone, gym.CountryCode)
		if to == "" {
			log.Debug("member has no phone", zap.Uint("member_id", member.ID))
			s.countFailed(result)
			continue
		}

		if err := s.send(ctx, &member, to, period, mode, gym); err != nil {
			log.Warn("reminder send failed", zap.Uint("member_id", member.ID), zap.Error(err))
			s.countFailed(result)
			continue
		}
		result.Sent++
		s.metrics.ReminderSent(string(mode))

		if err := s.db.WithContext(ctx).Model(&models.Member{}).
			Where("id = ?", member.ID).
			UpdateColumn("last_contact_at", s.now()).Error; err != nil {
			log.Warn("update last contact", zap.Uint("member_id", member.ID), zap.Error(err))
		}
	}

	result.OK = true
	s.finish(ctx, log, result, nil)
	return result, nil
}

func (s *ReminderService) checkConfig(period models.Period, mode config.ReminderMode) error {
	if err := period.Validate(); err != nil {
		return err
	}
	if !mode.Valid() {
		return fmt.Errorf("%w: reminder mode %q", ErrInvalidInput, mode)
	}
	if s.gateway == nil || !s.gateway.Configured() {
		return messaging.ErrNotConfigured
	}
	if mode == config.ModeTemplate && s.cfg.TemplateName == "" {
		return ErrTemplateNotConfigured
	}
	return nil
}

func (s *ReminderService) send(ctx context.Context, member *models.Member, to string, period models.Period, mode config.ReminderMode, gym GymSettings) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	defer cancel()

	if mode == config.ModeTemplate {
		params := []string{member.Name, period.MonthName(), strconv.Itoa(period.Year)}
		return s.gateway.SendTemplate(sendCtx, to, s.cfg.TemplateName, s.cfg.TemplateLang, params)
	}
	return s.gateway.SendText(sendCtx, to, reminderText(member, period, gym))
}

func reminderText(member *models.Member, period models.Period, gym GymSettings) string {
	fee := member.EffectiveFee(gym.MonthlyPrice)
	return fmt.Sprintf("Hi %s, your %s fee (%s %s) for %d/%d is pending. Please pay to stay active.",
		member.Name, gym.GymName, fee.String(), gym.CurrencyCode, period.Month, period.Year)
}

func (s *ReminderService) countFailed(result *DispatchResult) {
	result.Failed++
	s.metrics.ReminderFailed(string(result.Mode))
}

func (s *ReminderService) finish(ctx context.Context, log *zap.Logger, result *DispatchResult, err error) {
	result.FinishedAt = s.now()
	outcome := "ok"
	if err != nil {
		outcome = "error"
		result.OK = false
		result.Error = err.Error()
	}
	s.metrics.DispatchFinished(string(result.Mode), outcome, result.FinishedAt.Sub(result.StartedAt))

	// A cancelled run context must not prevent recording the result.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if saveErr := s.store.Save(saveCtx, result); saveErr != nil {
		log.Warn("store dispatch result", zap.Error(saveErr))
	}

	if s.notifier != nil {
		s.notifier.Broadcast(models.Message{Type: models.EventRemindersDispatched, Content: result})
	}

	if err != nil {
		log.Error("reminder dispatch failed", zap.Error(err))
		return
	}
	log.Info("reminder dispatch finished",
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
		zap.Duration("elapsed", result.FinishedAt.Sub(result.StartedAt)))
}
