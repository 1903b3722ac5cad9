package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vikasavnish/gymledger/internal/config"
	"github.com/vikasavnish/gymledger/internal/services"
)

func TestNextRun(t *testing.T) {
	loc := time.FixedZone("PKT", 5*3600)
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before today's slot", time.Date(2024, 5, 20, 8, 30, 0, 0, loc), time.Date(2024, 5, 20, 9, 0, 0, 0, loc)},
		{"exactly at slot", time.Date(2024, 5, 20, 9, 0, 0, 0, loc), time.Date(2024, 5, 21, 9, 0, 0, 0, loc)},
		{"after today's slot", time.Date(2024, 5, 20, 17, 0, 0, 0, loc), time.Date(2024, 5, 21, 9, 0, 0, 0, loc)},
		{"month rollover", time.Date(2024, 5, 31, 23, 0, 0, 0, loc), time.Date(2024, 6, 1, 9, 0, 0, 0, loc)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextRun(tt.now, 9, 0); !got.Equal(tt.want) {
				t.Errorf("NextRun() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFireSwallowsErrorsAndPanics(t *testing.T) {
	var calls int32
	schedule := config.ScheduleConfig{Hour: 9, RunTimeout: time.Second}

	failing := NewReminderTask(func(ctx context.Context) (*services.DispatchResult, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("gateway down")
	}, schedule, zap.NewNop())
	failing.fire()

	panicking := NewReminderTask(func(ctx context.Context) (*services.DispatchResult, error) {
		atomic.AddInt32(&calls, 1)
		panic("boom")
	}, schedule, zap.NewNop())
	panicking.fire()

	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestFireAppliesRunTimeout(t *testing.T) {
	var hadDeadline bool
	task := NewReminderTask(func(ctx context.Context) (*services.DispatchResult, error) {
		_, hadDeadline = ctx.Deadline()
		return &services.DispatchResult{RunID: "x"}, nil
	}, config.ScheduleConfig{RunTimeout: time.Minute}, zap.NewNop())
	task.fire()

	if !hadDeadline {
		t.Error("run context has no deadline")
	}
}

func TestReminderTaskFiresAtScheduledTime(t *testing.T) {
	fired := make(chan struct{}, 1)
	task := NewReminderTask(func(ctx context.Context) (*services.DispatchResult, error) {
		select {
		case fired <- struct{}{}:
		default:
		}
		return &services.DispatchResult{}, nil
	}, config.ScheduleConfig{Hour: 9, Minute: 0}, zap.NewNop())

	// Pretend it is a few milliseconds before 09:00.
	base := time.Date(2024, 5, 20, 9, 0, 0, 0, time.Local).Add(-20 * time.Millisecond)
	start := time.Now()
	task.now = func() time.Time { return base.Add(time.Since(start)) }

	task.Start()
	defer task.Stop()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("reminder task did not fire")
	}
}

func TestStartStopIsIdempotent(t *testing.T) {
	task := NewReminderTask(func(ctx context.Context) (*services.DispatchResult, error) {
		return &services.DispatchResult{}, nil
	}, config.ScheduleConfig{Hour: 3}, zap.NewNop())

	task.Start()
	task.Start()
	task.Stop()
	task.Stop()
}

func TestManagerSkipsDisabledSchedule(t *testing.T) {
	m := NewManager(nil, config.ScheduleConfig{Enabled: false}, zap.NewNop())
	m.StartScheduledTasks()
	if len(m.tasks) != 0 {
		t.Errorf("tasks = %d, want 0", len(m.tasks))
	}
	m.StopAllTasks()
}
