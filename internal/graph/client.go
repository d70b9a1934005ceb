// Package graph 封装 Neo4j driver，读写共用一个连接池。
package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Reader 定义只读查询接口，便于测试替换实现。
type Reader interface {
	RunRead(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
}

// Config 描述连接 Neo4j 的必要参数。
type Config struct {
	URI                  string
	Username             string
	Password             string
	Database             string
	MaxConnectionPool    int
	ConnectionTimeoutSec int
	// QueryTimeoutSec 为 0 时不限制单条语句的耗时。
	QueryTimeoutSec int
}

// Client 同时实现 Reader 与 loader.Writer。
type Client struct {
	driver   neo4j.DriverWithContext
	database string
	timeout  time.Duration
}

// NewClient 创建并校验连接。
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("neo4j uri 不能为空")
	}
	auth := neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth, func(conf *neo4j.Config) {
		if cfg.MaxConnectionPool > 0 {
			conf.MaxConnectionPoolSize = cfg.MaxConnectionPool
		}
		if cfg.ConnectionTimeoutSec > 0 {
			conf.SocketConnectTimeout = time.Duration(cfg.ConnectionTimeoutSec) * time.Second
		}
	})
	if err != nil {
		return nil, fmt.Errorf("创建 neo4j driver 失败: %w", err)
	}
	c := &Client{driver: driver, database: cfg.Database, timeout: time.Duration(cfg.QueryTimeoutSec) * time.Second}
	if err := c.Ping(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}
	return c, nil
}

// Ping 校验服务端可达。
func (c *Client) Ping(ctx context.Context) error {
	if err := c.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("neo4j 无法连通: %w", err)
	}
	return nil
}

// Close 关闭底层连接。
func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.driver == nil {
		return nil
	}
	return c.driver.Close(ctx)
}

func (c *Client) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database, AccessMode: mode})
}

func (c *Client) txConfig() []func(*neo4j.TransactionConfig) {
	if c.timeout <= 0 {
		return nil
	}
	return []func(*neo4j.TransactionConfig){neo4j.WithTxTimeout(c.timeout)}
}

type txKey struct{}

// InTx 开启一个显式写事务并放进 ctx，fn 内经该 ctx 发出的 RunRead/RunWrite 都在这个事务里执行，
// 能读到本事务尚未提交的写入。fn 返回错误时回滚。已在事务中时直接执行 fn。
// QueryTimeoutSec 不作用于整个事务，耗时由 ctx 控制。
func (c *Client) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(neo4j.ExplicitTransaction); ok {
		return fn(ctx)
	}
	session := c.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)
	tx, err := session.BeginTransaction(ctx)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return errors.Join(err, fmt.Errorf("回滚事务失败: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	return nil
}

func collect(ctx context.Context, res neo4j.ResultWithContext) ([]map[string]any, error) {
	records := make([]map[string]any, 0)
	for res.Next(ctx) {
		records = append(records, res.Record().AsMap())
	}
	if err := res.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// RunRead 执行只读查询并返回记录集合。
func (c *Client) RunRead(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	if tx, ok := ctx.Value(txKey{}).(neo4j.ExplicitTransaction); ok {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, fmt.Errorf("执行查询失败: %w", err)
		}
		records, err := collect(ctx, res)
		if err != nil {
			return nil, fmt.Errorf("执行查询失败: %w", err)
		}
		return records, nil
	}
	session := c.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	resultAny, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return collect(ctx, res)
	}, c.txConfig()...)
	if err != nil {
		return nil, fmt.Errorf("执行查询失败: %w", err)
	}
	records, ok := resultAny.([]map[string]any)
	if !ok {
		return nil, fmt.Errorf("查询结果类型异常: %T", resultAny)
	}
	return records, nil
}

// RunWrite 在托管写事务中执行语句，瞬时错误由 driver 重试。ctx 带有 InTx 开启的事务时直接在其中执行。
func (c *Client) RunWrite(ctx context.Context, query string, params map[string]any) error {
	if tx, ok := ctx.Value(txKey{}).(neo4j.ExplicitTransaction); ok {
		res, err := tx.Run(ctx, query, params)
		if err == nil {
			_, err = res.Consume(ctx)
		}
		if err != nil {
			return fmt.Errorf("执行写入失败: %w", err)
		}
		return nil
	}
	session := c.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	}, c.txConfig()...)
	if err != nil {
		return fmt.Errorf("执行写入失败: %w", err)
	}
	return nil
}

// RunRaw 用自动提交事务执行语句，schema 语句必须这样执行。
func (c *Client) RunRaw(ctx context.Context, query string, params map[string]any) error {
	session := c.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)
	res, err := session.Run(ctx, query, params, c.txConfig()...)
	if err != nil {
		return fmt.Errorf("执行语句失败: %w", err)
	}
	if _, err := res.Consume(ctx); err != nil {
		return fmt.Errorf("执行语句失败: %w", err)
	}
	return nil
}
