// Package importer 驱动一次配置导入：先收集全部名称引用并批量解析，
// 再按依赖顺序创建、更新、删除对象。
//
// 一个 Importer 只能执行一次。引擎是单线程同步的，调用方需要保证同一时间
// 不会有两次导入作用于重叠的主机或模板集合。
package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"confimport/internal/domain"
	"confimport/internal/expression"
	"confimport/internal/resolver"
	"confimport/internal/store"
)

// Source 是导入树的只读视图，宿主范围的对象按主机或模板名分组。
type Source interface {
	Groups() []domain.Group
	Templates() []domain.Template
	Hosts() []domain.Host
	Applications() map[string][]domain.Application
	Items() map[string][]domain.Item
	DiscoveryRules() map[string][]domain.DiscoveryRule
	Triggers() []domain.Trigger
	Graphs() []domain.Graph
	Images() []domain.Image
	Maps() []domain.Map
	Screens() []domain.Screen
	TemplateScreens() map[string][]domain.Screen
}

// ExpressionParser 从触发器表达式中提取 (主机, 监控项) 对。
type ExpressionParser interface {
	Parse(expr string) ([]expression.HostItem, error)
}

// Options 控制一次导入。
type Options struct {
	Rules  Rules
	Parser ExpressionParser
	Logger *zap.Logger
	RunID  string
}

// Importer 持有一次导入的全部状态。
type Importer struct {
	src    Source
	svc    store.Services
	rules  Rules
	parser ExpressionParser
	logger *zap.Logger

	resolver *resolver.Resolver
	ledger   *Ledger
	result   *Result
	state    State
	parsed   map[string][]expression.HostItem
}

// New 创建导入器。Parser 为空时使用内置解析器。
func New(src Source, svc store.Services, opts Options) *Importer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	parser := opts.Parser
	if parser == nil {
		parser = expression.New()
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger = logger.With(zap.String("run_id", runID))
	return &Importer{
		src:      src,
		svc:      svc,
		rules:    opts.Rules,
		parser:   parser,
		logger:   logger,
		resolver: resolver.New(svc, logger),
		ledger:   NewLedger(),
		result:   newResult(runID),
		parsed:   make(map[string][]expression.HostItem),
	}
}

// State 返回当前阶段。
func (im *Importer) State() State {
	return im.state
}

// Ledger 返回本次导入处理过的宿主。
func (im *Importer) Ledger() *Ledger {
	return im.ledger
}

// Run 执行完整导入，任何错误都会终止整次导入。
func (im *Importer) Run(ctx context.Context) (*Result, error) {
	if im.state != StateIdle {
		return nil, ErrAlreadyRun
	}
	if err := im.rules.Validate(); err != nil {
		im.state = StateFailed
		return nil, err
	}
	ctx = store.WithRunID(ctx, im.result.RunID)
	start := time.Now()

	phases := []struct {
		name  string
		after State
		steps []func(context.Context) error
	}{
		{"gather", StateGathering, []func(context.Context) error{im.gatherAndLoad}},
		{"groups", StateGroupsApplied, []func(context.Context) error{im.processGroups}},
		{"templates", StateTemplatesApplied, []func(context.Context) error{im.processTemplates}},
		{"hosts", StateHostsApplied, []func(context.Context) error{im.processHosts}},
		{"delete missing", StateMissingDeleted, []func(context.Context) error{
			im.deleteMissingDiscoveryRules,
			im.deleteMissingTriggers,
			im.deleteMissingGraphs,
			im.deleteMissingItems,
			im.deleteMissingApplications,
		}},
		{"children", StateChildrenApplied, []func(context.Context) error{
			im.processApplications,
			im.processItems,
			im.processTriggers,
			im.processDiscoveryRules,
			im.processGraphs,
			im.processImages,
			im.processMaps,
			im.processTemplateScreens,
			im.processScreens,
		}},
	}

	im.state = StateGathering
	for _, phase := range phases {
		for _, step := range phase.steps {
			if err := step(ctx); err != nil {
				im.state = StateFailed
				im.logger.Error("导入失败",
					zap.String("phase", phase.name),
					zap.Error(err))
				return nil, err
			}
		}
		im.state = phase.after
		im.logger.Debug("阶段完成", zap.String("phase", phase.name), zap.Stringer("state", im.state))
	}
	im.state = StateDone
	im.result.Duration = time.Since(start)

	totals := im.result.Totals()
	im.logger.Info("导入完成",
		zap.Int("created", totals.Created),
		zap.Int("updated", totals.Updated),
		zap.Int("deleted", totals.Deleted),
		zap.Duration("duration", im.result.Duration))
	return im.result, nil
}

// Validate 只执行收集阶段，包括表达式解析，不访问存储。
func (im *Importer) Validate(ctx context.Context) error {
	if im.state != StateIdle {
		return ErrAlreadyRun
	}
	if err := im.rules.Validate(); err != nil {
		im.state = StateFailed
		return err
	}
	im.state = StateGathering
	if err := im.gather(); err != nil {
		im.state = StateFailed
		return err
	}
	im.state = StateDone
	return nil
}

func (im *Importer) gatherAndLoad(ctx context.Context) error {
	if err := im.gather(); err != nil {
		return err
	}
	if err := im.resolver.Load(ctx); err != nil {
		return fmt.Errorf("批量解析引用失败: %w", err)
	}
	return nil
}

// apply 对一类对象执行一次批量创建与一次批量更新，返回新对象的 id。
func apply[T domain.Entity](ctx context.Context, im *Importer, kind string, svc store.Service[T], creates, updates []T) ([]string, error) {
	var ids []string
	if len(creates) > 0 {
		var err error
		ids, err = svc.Create(ctx, creates)
		if err != nil {
			return nil, fmt.Errorf("创建 %s 失败: %w", kind, err)
		}
		if len(ids) != len(creates) {
			return nil, fmt.Errorf("创建 %s 失败: 期望 %d 个 id, 实际返回 %d 个", kind, len(creates), len(ids))
		}
		for i, rec := range creates {
			rec.SetID(ids[i])
		}
	}
	if len(updates) > 0 {
		if err := svc.Update(ctx, updates); err != nil {
			return nil, fmt.Errorf("更新 %s 失败: %w", kind, err)
		}
	}
	if len(creates) > 0 || len(updates) > 0 {
		stat := im.result.stat(kind)
		stat.Created += len(creates)
		stat.Updated += len(updates)
		im.logger.Info("写入对象",
			zap.String("kind", kind),
			zap.Int("create", len(creates)),
			zap.Int("update", len(updates)))
	}
	return ids, nil
}

// remove 批量删除一类对象。
func remove[T domain.Entity](ctx context.Context, im *Importer, kind string, svc store.Service[T], ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := svc.Delete(ctx, ids); err != nil {
		return fmt.Errorf("删除 %s 失败: %w", kind, err)
	}
	im.result.stat(kind).Deleted += len(ids)
	im.logger.Info("删除缺失对象", zap.String("kind", kind), zap.Int("delete", len(ids)))
	return nil
}

// ownerID 返回已处理宿主的 id，宿主不存在或未被处理时返回 false。
func (im *Importer) ownerID(name string) (string, bool) {
	id, ok := im.resolver.HostOrTemplateID(name)
	if !ok || !im.ledger.IsProcessed(id) {
		return "", false
	}
	return id, true
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}
