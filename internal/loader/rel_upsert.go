package loader

import (
	"context"
	"fmt"

	"confimport/internal/cypher"
)

// RelUpserter 负责关系批量写入，用于触发器之间的 DEPENDS_ON 边。
type RelUpserter struct {
	batcher
}

func NewRelUpserter(client Writer, batchSize int) *RelUpserter {
	return &RelUpserter{batcher: newBatcher(client, batchSize)}
}

// UpsertRels 按关系类型分组后批量 MERGE，两端节点必须已存在。
func (u *RelUpserter) UpsertRels(ctx context.Context, rows []RelRow) error {
	if len(rows) == 0 {
		return nil
	}
	types, grouped := groupBy(rows, func(r RelRow) string { return r.Type })
	for _, relType := range types {
		query := cypher.MustTemplate("upsert_rels.cql", map[string]string{"RelType": ":" + relType})
		if err := runBatches(ctx, u.batcher, query, "rows", relParams(grouped[relType])); err != nil {
			return fmt.Errorf("写入关系失败 type=%s: %w", relType, err)
		}
	}
	return nil
}

func relParams(rows []RelRow) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		out[i] = map[string]any{
			"start_key":  row.StartKey,
			"end_key":    row.EndKey,
			"properties": map[string]any(row.Properties),
			"run_id":     row.RunID,
		}
	}
	return out
}
