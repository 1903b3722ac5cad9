package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vikasavnish/gymledger/internal/config"
	"github.com/vikasavnish/gymledger/internal/services"
)

// Manager handles the execution of scheduled tasks
type Manager struct {
	reminders *services.ReminderService
	schedule  config.ScheduleConfig
	log       *zap.Logger
	tasks     []Task
}

// Task represents a scheduled task that needs to be executed
type Task interface {
	Start()
	Stop()
}

// NewManager creates a new task manager
func NewManager(reminders *services.ReminderService, schedule config.ScheduleConfig, log *zap.Logger) *Manager {
	return &Manager{
		reminders: reminders,
		schedule:  schedule,
		log:       log,
		tasks:     make([]Task, 0),
	}
}

// RegisterTask registers a task with the manager
func (m *Manager) RegisterTask(task Task) {
	m.tasks = append(m.tasks, task)
}

// StartScheduledTasks starts all registered tasks
func (m *Manager) StartScheduledTasks() {
	if m.schedule.Enabled && m.reminders != nil {
		m.RegisterTask(NewReminderTask(m.reminders.RunDaily, m.schedule, m.log))
	} else {
		m.log.Info("daily reminders disabled")
	}

	for _, task := range m.tasks {
		task.Start()
	}

	m.log.Info("started scheduled tasks", zap.Int("count", len(m.tasks)))
}

// StopAllTasks stops all running tasks
func (m *Manager) StopAllTasks() {
	for _, task := range m.tasks {
		task.Stop()
	}
	m.log.Info("stopped scheduled tasks")
}

// DispatchFunc runs one reminder dispatch.
type DispatchFunc func(ctx context.Context) (*services.DispatchResult, error)

// ReminderTask fires the daily reminder dispatch at a fixed local time.
// Missed fires are not caught up.
type ReminderTask struct {
	run     DispatchFunc
	hour    int
	minute  int
	timeout time.Duration
	log     *zap.Logger
	now     func() time.Time

	mu        sync.Mutex
	stopChan  chan struct{}
	done      chan struct{}
	isRunning bool
}

// NewReminderTask creates a new daily reminder task
func NewReminderTask(run DispatchFunc, schedule config.ScheduleConfig, log *zap.Logger) *ReminderTask {
	return &ReminderTask{
		run:     run,
		hour:    schedule.Hour,
		minute:  schedule.Minute,
		timeout: schedule.RunTimeout,
		log:     log.Named("reminders"),
		now:     time.Now,
	}
}

// NextRun returns the first hour:minute strictly after now, in now's location.
func NextRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Start begins the daily loop
func (t *ReminderTask) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isRunning {
		return
	}
	t.isRunning = true
	t.stopChan = make(chan struct{})
	t.done = make(chan struct{})

	go t.loop(t.stopChan, t.done)
	t.log.Info("reminder task started", zap.String("at", fmt.Sprintf("%02d:%02d", t.hour, t.minute)))
}

// Stop terminates the loop and waits for it to exit
func (t *ReminderTask) Stop() {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return
	}
	t.isRunning = false
	close(t.stopChan)
	done := t.done
	t.mu.Unlock()

	<-done
	t.log.Info("reminder task stopped")
}

func (t *ReminderTask) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		now := t.now()
		next := NextRun(now, t.hour, t.minute)
		t.log.Info("next reminder run scheduled", zap.Time("next_run", next))

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-timer.C:
			t.fire()
		case <-stop:
			timer.Stop()
			return
		}
	}
}

// fire runs one dispatch. Errors and panics are logged and never stop the loop.
func (t *ReminderTask) fire() {
	ctx := context.Background()
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			t.log.Error("reminder run panicked", zap.Any("panic", r))
		}
	}()

	result, err := t.run(ctx)
	if err != nil {
		t.log.Error("scheduled reminder run failed", zap.Error(err))
		return
	}
	t.log.Info("scheduled reminder run completed",
		zap.String("run_id", result.RunID),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed))
}
