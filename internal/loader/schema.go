package loader

import (
	"context"
	"fmt"
	"strings"

	"confimport/internal/cypher"
)

// SchemaManager 负责初始化约束和索引。
type SchemaManager struct {
	client Writer
}

func NewSchemaManager(client Writer) *SchemaManager {
	return &SchemaManager{client: client}
}

// Ensure 逐条执行 schema 语句。schema 语句不能放进托管事务，所以走 RunRaw。
func (m *SchemaManager) Ensure(ctx context.Context) error {
	for _, query := range statements("init_schema.cql") {
		if err := m.client.RunRaw(ctx, query, nil); err != nil {
			return fmt.Errorf("执行 schema 语句失败: %w", err)
		}
	}
	return nil
}

// statements 把多语句模板按分号拆开，去掉空语句。
func statements(asset string) []string {
	var out []string
	for _, raw := range strings.Split(cypher.MustAsset(asset), ";") {
		if query := strings.TrimSpace(raw); query != "" {
			out = append(out, query)
		}
	}
	return out
}
