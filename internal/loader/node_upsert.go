package loader

import (
	"context"
	"fmt"

	"confimport/internal/cypher"
	"confimport/internal/domain"
)

// NodeUpserter 负责批量写入实体节点。同一批内的节点标签相同。
type NodeUpserter struct {
	batcher
}

// NewNodeUpserter 创建节点写入器。
func NewNodeUpserter(client Writer, batchSize int) *NodeUpserter {
	return &NodeUpserter{batcher: newBatcher(client, batchSize)}
}

// CreateNodes 创建新节点，key 已存在时由唯一约束报错。
func (u *NodeUpserter) CreateNodes(ctx context.Context, rows []NodeRow) error {
	return u.write(ctx, "init_nodes.cql", rows)
}

// UpdateNodes 覆盖已有节点的属性，并清掉旧的归属边等待 EdgeFixer 重建。
func (u *NodeUpserter) UpdateNodes(ctx context.Context, rows []NodeRow) error {
	return u.write(ctx, "upsert_nodes.cql", rows)
}

func (u *NodeUpserter) write(ctx context.Context, tpl string, rows []NodeRow) error {
	if len(rows) == 0 {
		return nil
	}
	labels, grouped := groupBy(rows, func(r NodeRow) string { return domain.JoinLabels(r.Labels) })
	for _, key := range labels {
		group := grouped[key]
		query := cypher.MustTemplate(tpl, map[string]string{"LabelPattern": domain.LabelPattern(group[0].Labels)})
		if err := runBatches(ctx, u.batcher, query, "rows", nodeParams(group)); err != nil {
			return fmt.Errorf("写入节点失败 labels=%s: %w", key, err)
		}
	}
	return nil
}

func nodeParams(rows []NodeRow) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		out[i] = map[string]any{
			"key":        row.Key,
			"properties": map[string]any(row.Properties),
			"run_id":     row.RunID,
			"updated_at": row.UpdatedAt,
		}
	}
	return out
}
