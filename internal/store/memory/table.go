// Package memory 提供进程内的实体服务实现，用于测试与不需要持久化的部署。
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"confimport/internal/domain"
	"confimport/internal/store"
)

// Table 按 id 保存一种实体。读写都做深拷贝，调用方拿到的记录与表内数据互不影响。
type Table[E any, P interface {
	*E
	domain.Entity
}] struct {
	name  string
	mu    sync.RWMutex
	rows  map[string]E
	order []string
	newID func() string
}

// NewTable 创建一张空表。
func NewTable[E any, P interface {
	*E
	domain.Entity
}](name string) *Table[E, P] {
	return &Table[E, P]{name: name, rows: make(map[string]E), newID: uuid.NewString}
}

func (t *Table[E, P]) Get(ctx context.Context, filter store.Filter) ([]P, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []P
	for _, id := range t.order {
		row := t.rows[id]
		if !filter.Match(P(&row).Meta()) {
			continue
		}
		cp, err := clone[E](&row)
		if err != nil {
			return nil, fmt.Errorf("读取 %s 失败: %w", t.name, err)
		}
		out = append(out, P(cp))
	}
	return out, nil
}

func (t *Table[E, P]) Create(ctx context.Context, records []P) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		cp, err := clone[E]((*E)(rec))
		if err != nil {
			return nil, fmt.Errorf("创建 %s 失败: %w", t.name, err)
		}
		id := t.newID()
		P(cp).SetID(id)
		if assigner, ok := any(P(cp)).(domain.ChildIDAssigner); ok {
			assigner.AssignChildIDs(t.newID)
		}
		t.rows[id] = *cp
		t.order = append(t.order, id)
		ids = append(ids, id)
	}
	return ids, nil
}

func (t *Table[E, P]) Update(ctx context.Context, records []P) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, rec := range records {
		id := rec.Meta().ID
		if _, ok := t.rows[id]; !ok {
			return fmt.Errorf("更新 %s 失败: id %q 不存在", t.name, id)
		}
	}
	for _, rec := range records {
		cp, err := clone[E]((*E)(rec))
		if err != nil {
			return fmt.Errorf("更新 %s 失败: %w", t.name, err)
		}
		if assigner, ok := any(P(cp)).(domain.ChildIDAssigner); ok {
			assigner.AssignChildIDs(t.newID)
		}
		t.rows[rec.Meta().ID] = *cp
	}
	return nil
}

func (t *Table[E, P]) Delete(ctx context.Context, ids []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := t.rows[id]; !ok {
			return fmt.Errorf("删除 %s 失败: id %q 不存在", t.name, id)
		}
		drop[id] = struct{}{}
	}
	kept := t.order[:0]
	for _, id := range t.order {
		if _, ok := drop[id]; ok {
			delete(t.rows, id)
			continue
		}
		kept = append(kept, id)
	}
	t.order = kept
	return nil
}

// snapshot 复制当前的行，返回的函数把表恢复到复制时的状态。
// 行只会被整体替换，不会原地修改，浅拷贝即可。
func (t *Table[E, P]) snapshot() func() {
	t.mu.RLock()
	rows := make(map[string]E, len(t.rows))
	for id, row := range t.rows {
		rows[id] = row
	}
	order := append([]string(nil), t.order...)
	t.mu.RUnlock()
	return func() {
		t.mu.Lock()
		t.rows, t.order = rows, order
		t.mu.Unlock()
	}
}

// Len 返回表中记录数。
func (t *Table[E, P]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
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
