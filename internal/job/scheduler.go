package job

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"confimport/internal/app"
)

const defaultCronSpec = "0 */6 * * *"

// Scheduler 按 cron 表达式定期重新导入配置的来源，上一次未结束时跳过本次。
type Scheduler struct {
	cronExpr   string
	logger     *zap.Logger
	cron       *cron.Cron
	importFunc func(context.Context) error
	parent     context.Context

	mu      sync.Mutex
	running bool
}

// NewScheduler 根据配置构建调度器。
func NewScheduler(cfg app.Config, importFunc func(context.Context) error, logger *zap.Logger) *Scheduler {
	spec := strings.TrimSpace(cfg.Import.JobCron)
	if spec == "" {
		spec = defaultCronSpec
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{cronExpr: spec, logger: logger, importFunc: importFunc}
}

// Start 启动调度器，返回用于停止任务的函数。
func (s *Scheduler) Start(parent context.Context) context.CancelFunc {
	if s == nil {
		return func() {}
	}
	s.parent = parent
	c := cron.New()
	id, err := c.AddFunc(s.cronExpr, s.runOnce)
	if err != nil {
		s.logger.Error("failed to register cron job", zap.String("cron", s.cronExpr), zap.Error(err))
		return func() {}
	}
	s.cron = c
	c.Start()
	s.logger.Info("import scheduler started", zap.String("cron", s.cronExpr), zap.Time("next", c.Entry(id).Next))

	var once sync.Once
	stop := func() {
		once.Do(func() {
			ctx := s.cron.Stop()
			<-ctx.Done()
			s.logger.Info("import scheduler stopped")
		})
	}
	go func() {
		<-parent.Done()
		stop()
	}()
	return stop
}

// acquire 标记任务开始，已在执行时返回 false。
func (s *Scheduler) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *Scheduler) release() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

func (s *Scheduler) runOnce() {
	if s.importFunc == nil {
		s.logger.Warn("import function not configured")
		return
	}
	if !s.acquire() {
		s.logger.Warn("previous import still running, skip current schedule")
		return
	}
	defer s.release()

	ctx := s.parent
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		s.logger.Info("scheduler context cancelled, skip import")
		return
	}

	start := time.Now()
	err := s.importFunc(ctx)
	elapsed := time.Since(start)
	switch {
	case errors.Is(err, app.ErrBusy):
		s.logger.Warn("another import is running, skip current schedule")
	case err != nil:
		s.logger.Error("scheduled import failed", zap.Duration("duration", elapsed), zap.Error(err))
	default:
		s.logger.Info("scheduled import completed", zap.Duration("duration", elapsed))
	}
}
