package loader

import (
	"context"
	"fmt"
)

// EdgeFixer 根据节点上的 host_ids、parent_id 属性补齐 OWNED_BY 与 CHILD_OF 边。
type EdgeFixer struct {
	batcher
	statements []string
}

func NewEdgeFixer(client Writer, batchSize int) *EdgeFixer {
	return &EdgeFixer{batcher: newBatcher(client, batchSize), statements: statements("fix_edges.cql")}
}

// Run 为指定 key 的节点重建归属边。
func (f *EdgeFixer) Run(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	for _, query := range f.statements {
		if err := runBatches(ctx, f.batcher, query, "keys", keys); err != nil {
			return fmt.Errorf("补边失败: %w", err)
		}
	}
	return nil
}
