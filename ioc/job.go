package ioc

import (
	"context"

	"go.uber.org/zap"

	"confimport/internal/app"
	"confimport/internal/job"
	"confimport/internal/source"
)

// InitScheduler 构建定时导入调度器。没有配置来源时不启用。
func InitScheduler(cfg app.Config, svc *app.Service, src source.Client, logger *zap.Logger) *job.Scheduler {
	if src == nil || svc == nil {
		return nil
	}
	return job.NewScheduler(cfg, func(ctx context.Context) error {
		_, err := svc.Import(ctx)
		return err
	}, logger)
}

// InitHeartbeat 构建每小时心跳任务。
func InitHeartbeat(svc *app.Service, logger *zap.Logger) *job.Heartbeat {
	return job.NewHeartbeat(svc.LastRun, logger)
}
