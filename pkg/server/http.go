package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"confimport/internal/app"
	"confimport/internal/job"
)

const shutdownTimeout = 10 * time.Second

// HTTPServer 封装 HTTP 服务运行所需的依赖。
type HTTPServer struct {
	Engine    *gin.Engine
	Logger    *zap.Logger
	Config    app.Config
	Service   *app.Service
	Job       *job.Scheduler
	Heartbeat *job.Heartbeat
}

// NewHTTPServer 构建 HTTPServer。scheduler 可以为空，表示未配置定时导入。
func NewHTTPServer(engine *gin.Engine, logger *zap.Logger, cfg app.Config, svc *app.Service, scheduler *job.Scheduler, heartbeat *job.Heartbeat) *HTTPServer {
	return &HTTPServer{
		Engine:    engine,
		Logger:    logger,
		Config:    cfg,
		Service:   svc,
		Job:       scheduler,
		Heartbeat: heartbeat,
	}
}

// Run 启动 HTTP 服务及相关后台任务，ctx 结束时优雅退出。
func (s *HTTPServer) Run(ctx context.Context) error {
	listen := strings.TrimSpace(s.Config.HTTP.Listen)
	if listen == "" {
		listen = ":8080"
	}

	if s.Job != nil {
		defer s.Job.Start(ctx)()
	}
	if s.Heartbeat != nil {
		defer s.Heartbeat.Start(ctx)()
	}

	if s.Config.Import.InitialImport && s.Service != nil {
		if res, err := s.Service.Import(ctx); err != nil {
			s.Logger.Error("initial import failed", zap.Error(err))
		} else {
			s.Logger.Info("initial import completed", zap.String("run_id", res.RunID))
		}
	} else {
		s.Logger.Info("initial import skipped by configuration")
	}

	srv := &http.Server{Addr: listen, Handler: s.Engine}
	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("http server starting", zap.String("listen", listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.Logger.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// Shutdown 释放资源。
func (s *HTTPServer) Shutdown(ctx context.Context) {
	if s.Service != nil {
		if err := s.Service.Close(ctx); err != nil {
			s.Logger.Warn("close app service failed", zap.Error(err))
		}
	}
	_ = s.Logger.Sync()
}
