package ioc

import (
	"context"
	"time"

	"go.uber.org/zap"

	"confimport/internal/app"
	"confimport/internal/graph"
	"confimport/internal/store"
	"confimport/internal/store/memory"
	"confimport/internal/store/neo4j"
	"confimport/pkg/util"
)

// InitStore 按配置构建存储后端。Neo4j 连接失败时按 import.retry 重试。
func InitStore(ctx context.Context, cfg app.Config, logger *zap.Logger) (store.Backend, error) {
	if cfg.Store.Backend != app.BackendNeo4j {
		logger.Info("using in-memory store")
		return memory.New(), nil
	}

	backoff := time.Duration(cfg.Import.Retry.BackoffSeconds) * time.Second
	if backoff <= 0 {
		backoff = time.Second
	}
	var client *graph.Client
	err := util.Retry(ctx, cfg.Import.Retry.Attempts, backoff, func() error {
		c, err := graph.NewClient(ctx, graph.Config{
			URI:                  cfg.Neo4j.URI,
			Username:             cfg.Neo4j.Username,
			Password:             cfg.Neo4j.Password,
			Database:             cfg.Neo4j.Database,
			MaxConnectionPool:    cfg.Neo4j.MaxConnectionPool,
			ConnectionTimeoutSec: cfg.Neo4j.ConnectTimeoutSecond,
			QueryTimeoutSec:      cfg.Neo4j.QueryTimeoutSecond,
		})
		if err != nil {
			logger.Warn("connect neo4j failed", zap.Error(err))
			return err
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s := neo4j.New(client, client, cfg.Import.BatchSize)
	if err := s.EnsureSchema(ctx); err != nil {
		_ = s.Close(ctx)
		return nil, err
	}
	logger.Info("using neo4j store", zap.String("uri", cfg.Neo4j.URI), zap.String("database", cfg.Neo4j.Database))
	return s, nil
}
