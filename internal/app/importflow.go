package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"confimport/internal/expression"
	"confimport/internal/importer"
	"confimport/internal/metrics"
	"confimport/internal/source"
	"confimport/internal/store"
	"confimport/pkg/util"
)

// ErrDecode 表示配置包无法解码。
var ErrDecode = errors.New("配置包无法解码")

// ImportFlow 负责一次导入：拉取配置包 -> 解码 -> 导入 -> 记录指标。
type ImportFlow struct {
	Source source.Client
	Store  store.Backend
	Rules  importer.Rules
	Logger *zap.Logger
}

// Fetch 从配置的来源拉取配置包。
func (f *ImportFlow) Fetch(ctx context.Context) (source.Document, error) {
	if f.Source == nil {
		return source.Document{}, fmt.Errorf("未配置配置包来源")
	}
	doc, err := f.Source.Fetch(ctx)
	if err != nil {
		metrics.ImportErrors.WithLabelValues("fetch").Inc()
		return source.Document{}, fmt.Errorf("拉取配置包失败: %w", err)
	}
	return doc, nil
}

// RunDocument 导入给定文档。rules 为空时使用流程默认规则。
func (f *ImportFlow) RunDocument(ctx context.Context, doc source.Document, rules importer.Rules) (*importer.Result, error) {
	if f.Logger == nil {
		f.Logger = zap.NewNop()
	}
	if rules == nil {
		rules = f.Rules
	}
	pkg, err := doc.Decode()
	if err != nil {
		metrics.ImportErrors.WithLabelValues("decode").Inc()
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	logger := f.Logger.With(zap.String("package", doc.Name), zap.String("digest", util.ShortDigest(doc.Data)))

	// 整次导入在一个事务中执行，失败时不留下任何写入。
	start := time.Now()
	var res *importer.Result
	err = store.RunInTx(ctx, f.Store, func(ctx context.Context) error {
		var runErr error
		res, runErr = importer.New(pkg, f.Store.Services(), importer.Options{Rules: rules, Logger: logger}).Run(ctx)
		return runErr
	})
	metrics.ImportDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ImportErrors.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}
	for _, kind := range res.Kinds() {
		s := res.Stats[kind]
		metrics.ObserveObjects(kind, s.Created, s.Updated, s.Deleted)
	}
	metrics.LastSuccess.SetToCurrentTime()
	return res, nil
}

// failureReason 把错误归到指标标签。
func failureReason(err error) string {
	switch {
	case errors.Is(err, importer.ErrUnresolvedReference):
		return "reference"
	case errors.Is(err, importer.ErrDanglingDependency):
		return "dependency"
	case errors.Is(err, expression.ErrMalformed):
		return "expression"
	case errors.Is(err, importer.ErrTemplateCycle):
		return "cycle"
	case errors.Is(err, importer.ErrInvalidRules):
		return "rules"
	}
	return "other"
}
