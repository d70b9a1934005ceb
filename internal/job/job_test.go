package job

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"confimport/internal/app"
	"confimport/internal/importer"
)

func TestSchedulerSkipsOverlappingRuns(t *testing.T) {
	var calls int32
	entered := make(chan struct{})
	release := make(chan struct{})
	s := NewScheduler(app.Config{}, func(ctx context.Context) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(entered)
			<-release
		}
		return nil
	}, nil)
	s.parent = context.Background()

	done := make(chan struct{})
	go func() {
		s.runOnce()
		close(done)
	}()
	<-entered
	s.runOnce()
	close(release)
	<-done

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("overlapping run should be skipped, calls = %d", got)
	}
	s.runOnce()
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("run after release should execute, calls = %d", got)
	}
}

func TestSchedulerSkipsAfterCancel(t *testing.T) {
	var calls int32
	s := NewScheduler(app.Config{}, func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.parent = ctx
	s.runOnce()
	if calls != 0 {
		t.Fatalf("cancelled scheduler must not import")
	}
}

func TestSchedulerUsesConfiguredCron(t *testing.T) {
	cfg := app.Config{Import: app.Import{JobCron: " */5 * * * * "}}
	if s := NewScheduler(cfg, nil, nil); s.cronExpr != "*/5 * * * *" {
		t.Fatalf("cron = %q", s.cronExpr)
	}
	if s := NewScheduler(app.Config{}, nil, nil); s.cronExpr != defaultCronSpec {
		t.Fatalf("default cron = %q", s.cronExpr)
	}
}

func TestSchedulerStartRejectsBadCron(t *testing.T) {
	s := NewScheduler(app.Config{Import: app.Import{JobCron: "not a cron"}}, func(context.Context) error { return nil }, nil)
	stop := s.Start(context.Background())
	stop()
	if s.cron != nil {
		t.Fatalf("invalid cron expression should not start")
	}
}

func TestSchedulerBusyIsNotFailure(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := NewScheduler(app.Config{}, func(context.Context) error {
		return app.ErrBusy
	}, zap.New(core))
	s.runOnce()
	if logs.FilterMessage("scheduled import failed").Len() != 0 {
		t.Fatalf("busy service should be logged as skip, not failure")
	}
	if logs.FilterLevelExact(zapcore.WarnLevel).Len() != 1 {
		t.Fatalf("expect one warning, got %d", logs.Len())
	}
}

func TestHeartbeatReportsLastRun(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	var rec *app.RunRecord
	h := NewHeartbeat(func() (app.RunRecord, bool) {
		if rec == nil {
			return app.RunRecord{}, false
		}
		return *rec, true
	}, zap.New(core))

	h.beat()
	if logs.FilterMessage("heartbeat: no import yet").Len() != 1 {
		t.Fatalf("expect no-import heartbeat")
	}

	rec = &app.RunRecord{
		Package:   "p.yaml",
		StartedAt: time.Now(),
		Result:    &importer.Result{RunID: "r1", Stats: map[string]*importer.Stat{importer.KindHosts: {Created: 2}}},
	}
	h.beat()
	entries := logs.FilterMessage("heartbeat: last import succeeded").All()
	if len(entries) != 1 || entries[0].ContextMap()["created"] != int64(2) {
		t.Fatalf("unexpected heartbeat entries %+v", entries)
	}

	rec = &app.RunRecord{Package: "p.yaml", Error: errors.New("boom").Error()}
	h.beat()
	if logs.FilterMessage("heartbeat: last import failed").Len() != 1 {
		t.Fatalf("expect failure heartbeat")
	}
}
