// Package store 定义导入引擎依赖的实体服务契约，具体后端见 memory 与 neo4j 子包。
package store

import (
	"context"

	"confimport/internal/domain"
)

// Filter 是批量查询条件，各字段之间为与关系，字段内为或关系，空字段不参与过滤。
type Filter struct {
	IDs       []string
	Names     []string
	HostIDs   []string
	ParentIDs []string
	Flags     []int
}

// Match 判断实体是否满足过滤条件。
func (f Filter) Match(meta domain.EntityMeta) bool {
	if len(f.IDs) > 0 && !contains(f.IDs, meta.ID) {
		return false
	}
	if len(f.Names) > 0 && !contains(f.Names, meta.Name) {
		return false
	}
	if len(f.HostIDs) > 0 {
		hit := false
		for _, id := range meta.HostIDs {
			if contains(f.HostIDs, id) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	if len(f.ParentIDs) > 0 && !contains(f.ParentIDs, meta.ParentID) {
		return false
	}
	if len(f.Flags) > 0 {
		hit := false
		for _, flag := range f.Flags {
			if flag == meta.Flags {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Service 是单一实体类型的批量读写接口。Create 按输入顺序返回新 id。
type Service[T domain.Entity] interface {
	Get(ctx context.Context, filter Filter) ([]T, error)
	Create(ctx context.Context, records []T) ([]string, error)
	Update(ctx context.Context, records []T) error
	Delete(ctx context.Context, ids []string) error
}

// TriggerService 额外支持批量设置触发器依赖。
type TriggerService interface {
	Service[*domain.Trigger]
	SetDependencies(ctx context.Context, deps []domain.TriggerDependency) error
}

// Services 聚合导入引擎用到的全部实体服务。
type Services struct {
	Groups          Service[*domain.Group]
	Templates       Service[*domain.Template]
	Hosts           Service[*domain.Host]
	Macros          Service[*domain.Macro]
	Proxies         Service[*domain.Proxy]
	ValueMaps       Service[*domain.ValueMap]
	IconMaps        Service[*domain.IconMap]
	Applications    Service[*domain.Application]
	Items           Service[*domain.Item]
	HostPrototypes  Service[*domain.HostPrototype]
	Triggers        TriggerService
	Graphs          Service[*domain.Graph]
	Images          Service[*domain.Image]
	Maps            Service[*domain.Map]
	Screens         Service[*domain.Screen]
	TemplateScreens Service[*domain.Screen]
}

// Backend 是一个可关闭的存储后端。
type Backend interface {
	Services() Services
	Close(ctx context.Context) error
}

// Transactor 由能把整次导入放进单个事务的后端实现。fn 返回错误时全部写入回滚。
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// RunInTx 在后端支持事务时把 fn 放进一个事务，否则直接执行。
func RunInTx(ctx context.Context, b Backend, fn func(ctx context.Context) error) error {
	if tx, ok := b.(Transactor); ok {
		return tx.InTx(ctx, fn)
	}
	return fn(ctx)
}

type runIDKey struct{}

// WithRunID 把导入批次 id 放入 context，后端可以据此标记写入来源。
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFrom 取出批次 id，没有时返回空字符串。
func RunIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
