package ioc

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"confimport/internal/app"
	"confimport/internal/metrics"
	"confimport/internal/router"
)

// InitImportHandler 构建导入 HTTP 处理器。
func InitImportHandler(svc *app.Service, logger *zap.Logger) *router.ImportHandler {
	return router.NewImportHandler(svc, logger)
}

// InitRegistry 构建指标注册表并注册导入指标。
func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	metrics.MustRegister(reg)
	return reg
}

// InitGinEngine 构建 gin 引擎。
func InitGinEngine(handler *router.ImportHandler, reg *prometheus.Registry) *gin.Engine {
	return router.NewEngine(handler, reg)
}
