package neo4j

import (
	"context"
	"errors"
	"fmt"

	"confimport/internal/domain"
	"confimport/internal/graph"
	"confimport/internal/loader"
	"confimport/internal/store"
)

type deps struct {
	reader  graph.Reader
	nodes   *loader.NodeUpserter
	rels    *loader.RelUpserter
	edges   *loader.EdgeFixer
	cleaner *loader.Cleaner
}

// TriggerCollection 额外维护 DEPENDS_ON 边。
type TriggerCollection struct {
	*Collection[domain.Trigger, *domain.Trigger]
	rels *loader.RelUpserter
}

// SetDependencies 写回触发器 payload 中的依赖 id，并重建 DEPENDS_ON 边。
func (c *TriggerCollection) SetDependencies(ctx context.Context, list []domain.TriggerDependency) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]string, 0, len(list))
	byID := make(map[string][]string, len(list))
	for _, dep := range list {
		ids = append(ids, dep.TriggerID)
		byID[dep.TriggerID] = dep.DependsOn
	}
	triggers, err := c.Get(ctx, store.Filter{IDs: ids})
	if err != nil {
		return fmt.Errorf("设置触发器依赖失败: %w", err)
	}
	if len(triggers) != len(byID) {
		return fmt.Errorf("设置触发器依赖失败: 期望 %d 个触发器, 实际找到 %d 个", len(byID), len(triggers))
	}
	rows := make([]loader.RelRow, 0)
	for _, trigger := range triggers {
		trigger.DependencyIDs = append([]string(nil), byID[trigger.ID]...)
		for _, target := range trigger.DependencyIDs {
			rows = append(rows, loader.RelRow{
				StartKey: domain.MakeKey(domain.LabelTrigger, trigger.ID),
				EndKey:   domain.MakeKey(domain.LabelTrigger, target),
				Type:     domain.RelDependsOn,
				RunID:    store.RunIDFrom(ctx),
			})
		}
	}
	if err := c.Update(ctx, triggers); err != nil {
		return fmt.Errorf("设置触发器依赖失败: %w", err)
	}
	if err := c.cleaner.DeleteRelationships(ctx, c.keys(ids), domain.RelDependsOn); err != nil {
		return fmt.Errorf("设置触发器依赖失败: %w", err)
	}
	if err := c.rels.UpsertRels(ctx, rows); err != nil {
		return fmt.Errorf("设置触发器依赖失败: %w", err)
	}
	return nil
}

// Store 是 Neo4j 后端。
type Store struct {
	reader   graph.Reader
	writer   loader.Writer
	services store.Services
}

// New 用读写客户端组装全部实体集合。
func New(reader graph.Reader, writer loader.Writer, batchSize int) *Store {
	d := deps{
		reader:  reader,
		nodes:   loader.NewNodeUpserter(writer, batchSize),
		rels:    loader.NewRelUpserter(writer, batchSize),
		edges:   loader.NewEdgeFixer(writer, batchSize),
		cleaner: loader.NewCleaner(writer, batchSize),
	}
	return &Store{
		reader: reader,
		writer: writer,
		services: store.Services{
			Groups:         newCollection[domain.Group](domain.LabelGroup, d),
			Templates:      newCollection[domain.Template](domain.LabelTemplate, d),
			Hosts:          newCollection[domain.Host](domain.LabelHost, d),
			Macros:         newCollection[domain.Macro](domain.LabelMacro, d),
			Proxies:        newCollection[domain.Proxy](domain.LabelProxy, d),
			ValueMaps:      newCollection[domain.ValueMap](domain.LabelValueMap, d),
			IconMaps:       newCollection[domain.IconMap](domain.LabelIconMap, d),
			Applications:   newCollection[domain.Application](domain.LabelApplication, d),
			Items:          newCollection[domain.Item](domain.LabelItem, d),
			HostPrototypes: newCollection[domain.HostPrototype](domain.LabelHostPrototype, d),
			Triggers: &TriggerCollection{
				Collection: newCollection[domain.Trigger](domain.LabelTrigger, d),
				rels:       d.rels,
			},
			Graphs:          newCollection[domain.Graph](domain.LabelGraph, d),
			Images:          newCollection[domain.Image](domain.LabelImage, d),
			Maps:            newCollection[domain.Map](domain.LabelMap, d),
			Screens:         newCollection[domain.Screen](domain.LabelScreen, d),
			TemplateScreens: newCollection[domain.Screen](domain.LabelTemplateScreen, d),
		},
	}
}

// Services 返回实体服务集合。
func (s *Store) Services() store.Services {
	return s.services
}

// EnsureSchema 创建唯一约束与索引，语句均为 IF NOT EXISTS，可以重复执行。
func (s *Store) EnsureSchema(ctx context.Context) error {
	return loader.NewSchemaManager(s.writer).Ensure(ctx)
}

type transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// InTx 把 fn 的全部读写放进写客户端的一个事务。读写需共用同一客户端，
// 否则读不到未提交的写入，此时不开启事务。
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, ok := s.writer.(transactor)
	if !ok || any(s.writer) != any(s.reader) {
		return fn(ctx)
	}
	return tx.InTx(ctx, fn)
}

type closer interface {
	Close(ctx context.Context) error
}

// Close 关闭底层客户端，读写共用同一客户端时只关闭一次。
func (s *Store) Close(ctx context.Context) error {
	var errs []error
	if c, ok := s.reader.(closer); ok {
		errs = append(errs, c.Close(ctx))
	}
	if c, ok := s.writer.(closer); ok && any(s.writer) != any(s.reader) {
		errs = append(errs, c.Close(ctx))
	}
	return errors.Join(errs...)
}
