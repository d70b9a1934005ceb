package job

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"confimport/internal/app"
)

const defaultHeartbeatSpec = "@hourly"

// Heartbeat 定期输出最近一次导入的结果。
type Heartbeat struct {
	spec    string
	lastRun func() (app.RunRecord, bool)
	logger  *zap.Logger
	cron    *cron.Cron
}

func NewHeartbeat(lastRun func() (app.RunRecord, bool), logger *zap.Logger) *Heartbeat {
	return &Heartbeat{spec: defaultHeartbeatSpec, lastRun: lastRun, logger: logger}
}

// Start 启动心跳任务，返回停止函数。
func (h *Heartbeat) Start(parent context.Context) context.CancelFunc {
	if h == nil {
		return func() {}
	}
	c := cron.New()
	if _, err := c.AddFunc(h.spec, h.beat); err != nil {
		if h.logger != nil {
			h.logger.Error("failed to register heartbeat job", zap.Error(err))
		}
		return func() {}
	}
	h.cron = c
	c.Start()

	stop := func() {
		ctx := h.cron.Stop()
		<-ctx.Done()
	}
	go func() {
		<-parent.Done()
		stop()
	}()
	return stop
}

func (h *Heartbeat) beat() {
	if h.logger == nil {
		return
	}
	if h.lastRun == nil {
		h.logger.Info("heartbeat", zap.Time("timestamp", time.Now()))
		return
	}
	rec, ok := h.lastRun()
	if !ok {
		h.logger.Info("heartbeat: no import yet", zap.Time("timestamp", time.Now()))
		return
	}
	fields := []zap.Field{
		zap.String("package", rec.Package),
		zap.Time("started_at", rec.StartedAt),
		zap.Duration("duration", rec.Duration),
	}
	if rec.Error != "" {
		h.logger.Warn("heartbeat: last import failed", append(fields, zap.String("error", rec.Error))...)
		return
	}
	if rec.Result != nil {
		totals := rec.Result.Totals()
		fields = append(fields,
			zap.String("run_id", rec.Result.RunID),
			zap.Int("created", totals.Created),
			zap.Int("updated", totals.Updated),
			zap.Int("deleted", totals.Deleted))
	}
	h.logger.Info("heartbeat: last import succeeded", fields...)
}
