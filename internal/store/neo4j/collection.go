// Package neo4j 把实体服务落到 Neo4j 图数据库：每个实体一个节点，
// 完整记录以 JSON 保存在 payload 属性中，归属与依赖关系以边表示。
package neo4j

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"confimport/internal/cypher"
	"confimport/internal/domain"
	"confimport/internal/graph"
	"confimport/internal/loader"
	"confimport/internal/store"
)

// Collection 是某一类实体在图中的视图，节点同时带 Entity 与类型标签。
type Collection[E any, P interface {
	*E
	domain.Entity
}] struct {
	label   string
	reader  graph.Reader
	nodes   *loader.NodeUpserter
	edges   *loader.EdgeFixer
	cleaner *loader.Cleaner
	newID   func() string
	now     func() time.Time
}

func newCollection[E any, P interface {
	*E
	domain.Entity
}](label string, deps deps) *Collection[E, P] {
	return &Collection[E, P]{
		label:   label,
		reader:  deps.reader,
		nodes:   deps.nodes,
		edges:   deps.edges,
		cleaner: deps.cleaner,
		newID:   uuid.NewString,
		now:     time.Now,
	}
}

func (c *Collection[E, P]) Get(ctx context.Context, filter store.Filter) ([]P, error) {
	query := cypher.MustTemplate("find_nodes.cql", map[string]string{"LabelPattern": ":" + c.label})
	records, err := c.reader.RunRead(ctx, query, filterParams(filter))
	if err != nil {
		return nil, fmt.Errorf("查询 %s 失败: %w", c.label, err)
	}
	out := make([]P, 0, len(records))
	for _, rec := range records {
		payload, _ := rec["payload"].(string)
		var row E
		if err := json.Unmarshal([]byte(payload), &row); err != nil {
			return nil, fmt.Errorf("解析 %s payload 失败: %w", c.label, err)
		}
		out = append(out, P(&row))
	}
	return out, nil
}

func (c *Collection[E, P]) Create(ctx context.Context, records []P) ([]string, error) {
	if len(records) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(records))
	rows := make([]loader.NodeRow, 0, len(records))
	for _, rec := range records {
		cp, err := clone[E]((*E)(rec))
		if err != nil {
			return nil, fmt.Errorf("创建 %s 失败: %w", c.label, err)
		}
		id := c.newID()
		P(cp).SetID(id)
		if assigner, ok := any(P(cp)).(domain.ChildIDAssigner); ok {
			assigner.AssignChildIDs(c.newID)
		}
		row, err := c.nodeRow(ctx, P(cp))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
		rows = append(rows, row)
	}
	if err := c.nodes.CreateNodes(ctx, rows); err != nil {
		return nil, fmt.Errorf("创建 %s 失败: %w", c.label, err)
	}
	if err := c.edges.Run(ctx, keysOf(rows)); err != nil {
		return nil, fmt.Errorf("创建 %s 失败: %w", c.label, err)
	}
	return ids, nil
}

func (c *Collection[E, P]) Update(ctx context.Context, records []P) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]loader.NodeRow, 0, len(records))
	for _, rec := range records {
		cp, err := clone[E]((*E)(rec))
		if err != nil {
			return fmt.Errorf("更新 %s 失败: %w", c.label, err)
		}
		if P(cp).Meta().ID == "" {
			return fmt.Errorf("更新 %s 失败: 记录缺少 id", c.label)
		}
		if assigner, ok := any(P(cp)).(domain.ChildIDAssigner); ok {
			assigner.AssignChildIDs(c.newID)
		}
		row, err := c.nodeRow(ctx, P(cp))
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	if err := c.nodes.UpdateNodes(ctx, rows); err != nil {
		return fmt.Errorf("更新 %s 失败: %w", c.label, err)
	}
	if err := c.edges.Run(ctx, keysOf(rows)); err != nil {
		return fmt.Errorf("更新 %s 失败: %w", c.label, err)
	}
	return nil
}

func (c *Collection[E, P]) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.cleaner.DeleteNodes(ctx, c.keys(ids)); err != nil {
		return fmt.Errorf("删除 %s 失败: %w", c.label, err)
	}
	return nil
}

func (c *Collection[E, P]) keys(ids []string) []string {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, domain.MakeKey(c.label, id))
	}
	return keys
}

func (c *Collection[E, P]) nodeRow(ctx context.Context, rec P) (loader.NodeRow, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return loader.NodeRow{}, fmt.Errorf("序列化 %s 失败: %w", c.label, err)
	}
	meta := rec.Meta()
	hostIDs := make([]string, 0, len(meta.HostIDs))
	for _, id := range meta.HostIDs {
		if id != "" {
			hostIDs = append(hostIDs, id)
		}
	}
	return loader.NodeRow{
		Key:    domain.MakeKey(c.label, meta.ID),
		Labels: []string{domain.LabelEntity, c.label},
		Properties: map[string]any{
			"id":        meta.ID,
			"name":      meta.Name,
			"host_ids":  hostIDs,
			"parent_id": meta.ParentID,
			"flags":     int64(meta.Flags),
			"payload":   string(payload),
		},
		RunID:     store.RunIDFrom(ctx),
		UpdatedAt: c.now(),
	}, nil
}

func keysOf(rows []loader.NodeRow) []string {
	keys := make([]string, 0, len(rows))
	for _, row := range rows {
		keys = append(keys, row.Key)
	}
	return keys
}

func filterParams(f store.Filter) map[string]any {
	params := map[string]any{
		"ids":        nilIfEmpty(f.IDs),
		"names":      nilIfEmpty(f.Names),
		"host_ids":   nilIfEmpty(f.HostIDs),
		"parent_ids": nilIfEmpty(f.ParentIDs),
		"flags":      nil,
	}
	if len(f.Flags) > 0 {
		flags := make([]int64, 0, len(f.Flags))
		for _, flag := range f.Flags {
			flags = append(flags, int64(flag))
		}
		params["flags"] = flags
	}
	return params
}

func clone[E any](src *E) (*E, error) {
	data, err := json.Marshal(src)
	if err != nil {
		return nil, err
	}
	var dst E
	if err := json.Unmarshal(data, &dst); err != nil {
		return nil, err
	}
	return &dst, nil
}

func nilIfEmpty(list []string) any {
	if len(list) == 0 {
		return nil
	}
	return list
}
