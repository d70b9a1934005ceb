package ioc

import (
	"go.uber.org/zap"

	"confimport/internal/app"
	"confimport/internal/source"
	"confimport/internal/store"
)

// InitAppService 构建导入服务。
func InitAppService(cfg app.Config, backend store.Backend, src source.Client, logger *zap.Logger) (*app.Service, error) {
	return app.NewService(cfg, backend, src, logger)
}
