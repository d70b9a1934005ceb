package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"confimport/internal/importer"
	"confimport/internal/source"
	"confimport/internal/store"
	"confimport/pkg/util"
)

// ErrBusy 表示已有导入在执行。引擎本身不做并发控制，服务层保证同一时间只跑一次。
var ErrBusy = errors.New("已有导入正在执行")

// RunRecord 记录最近一次导入。
type RunRecord struct {
	Package   string           `json:"package"`
	Digest    string           `json:"digest"`
	StartedAt time.Time        `json:"started_at"`
	Duration  time.Duration    `json:"duration"`
	Error     string           `json:"error,omitempty"`
	Result    *importer.Result `json:"result,omitempty"`
}

// Service 负责装配各个 Flow 并提供统一入口。
type Service struct {
	cfg          Config
	backend      store.Backend
	ImportFlow   *ImportFlow
	ValidateFlow *ValidateFlow
	logger       *zap.Logger

	running sync.Mutex
	mu      sync.RWMutex
	last    *RunRecord
}

// NewService 根据配置构建 Service。src 可以为空，此时只能导入调用方提供的文档。
func NewService(cfg Config, backend store.Backend, src source.Client, logger *zap.Logger) (*Service, error) {
	if backend == nil {
		return nil, fmt.Errorf("必须提供存储后端")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:     cfg,
		backend: backend,
		ImportFlow: &ImportFlow{
			Source: src,
			Store:  backend,
			Rules:  cfg.Import.Rules,
			Logger: logger,
		},
		ValidateFlow: &ValidateFlow{Rules: cfg.Import.Rules, Logger: logger},
		logger:       logger,
	}, nil
}

// Close 释放资源。
func (s *Service) Close(ctx context.Context) error {
	if s.logger != nil {
		_ = s.logger.Sync()
	}
	if s.backend != nil {
		return s.backend.Close(ctx)
	}
	return nil
}

// Import 从配置的来源拉取并导入。
func (s *Service) Import(ctx context.Context) (*importer.Result, error) {
	if !s.running.TryLock() {
		return nil, ErrBusy
	}
	defer s.running.Unlock()

	doc, err := s.ImportFlow.Fetch(ctx)
	if err != nil {
		s.record(RunRecord{StartedAt: time.Now(), Error: err.Error()})
		return nil, err
	}
	return s.importLocked(ctx, doc, nil)
}

// ImportDocument 导入调用方提供的文档，rules 为空时使用配置中的规则。
func (s *Service) ImportDocument(ctx context.Context, doc source.Document, rules importer.Rules) (*importer.Result, error) {
	if !s.running.TryLock() {
		return nil, ErrBusy
	}
	defer s.running.Unlock()
	return s.importLocked(ctx, doc, rules)
}

func (s *Service) importLocked(ctx context.Context, doc source.Document, rules importer.Rules) (*importer.Result, error) {
	rec := RunRecord{Package: doc.Name, Digest: util.Digest(doc.Data), StartedAt: time.Now()}
	res, err := s.ImportFlow.RunDocument(ctx, doc, rules)
	rec.Duration = time.Since(rec.StartedAt)
	if err != nil {
		rec.Error = err.Error()
	}
	rec.Result = res
	s.record(rec)
	return res, err
}

// Validate 校验文档，不访问存储，也不占用导入锁。
func (s *Service) Validate(ctx context.Context, doc source.Document, rules importer.Rules) error {
	if rules == nil {
		return s.ValidateFlow.Run(ctx, doc)
	}
	flow := *s.ValidateFlow
	flow.Rules = rules
	return flow.Run(ctx, doc)
}

// LastRun 返回最近一次导入记录。
func (s *Service) LastRun() (RunRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return RunRecord{}, false
	}
	return *s.last, true
}

func (s *Service) record(rec RunRecord) {
	s.mu.Lock()
	s.last = &rec
	s.mu.Unlock()
}
