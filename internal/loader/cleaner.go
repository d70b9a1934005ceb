package loader

import (
	"context"
	"fmt"

	"confimport/internal/cypher"
)

// Cleaner 按 key 删除节点和关系。存储不做级联删除，调用方负责先删子对象。
type Cleaner struct {
	batcher
}

func NewCleaner(client Writer, batchSize int) *Cleaner {
	return &Cleaner{batcher: newBatcher(client, batchSize)}
}

// DeleteNodes 删除指定 key 的节点及其全部关系。
func (c *Cleaner) DeleteNodes(ctx context.Context, keys []string) error {
	if err := runBatches(ctx, c.batcher, cypher.MustAsset("delete_nodes.cql"), "keys", keys); err != nil {
		return fmt.Errorf("删除节点失败: %w", err)
	}
	return nil
}

// DeleteRelationships 删除从指定节点出发的某类关系。
func (c *Cleaner) DeleteRelationships(ctx context.Context, startKeys []string, relType string) error {
	query := cypher.MustTemplate("delete_rels.cql", map[string]string{"RelType": ":" + relType})
	if err := runBatches(ctx, c.batcher, query, "keys", startKeys); err != nil {
		return fmt.Errorf("删除关系失败 type=%s: %w", relType, err)
	}
	return nil
}
