package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"confimport/internal/importer"
	"confimport/internal/source"
	"confimport/internal/store"
)

// ValidateFlow 只做解码与收集，不访问存储。
type ValidateFlow struct {
	Rules  importer.Rules
	Logger *zap.Logger
}

func (f *ValidateFlow) Run(ctx context.Context, doc source.Document) error {
	pkg, err := doc.Decode()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	// 收集阶段不查询存储，传入空的服务集合即可。
	im := importer.New(pkg, store.Services{}, importer.Options{Rules: f.Rules, Logger: f.Logger})
	if err := im.Validate(ctx); err != nil {
		return err
	}
	if f.Logger != nil {
		f.Logger.Info("配置包校验通过", zap.String("package", doc.Name))
	}
	return nil
}
