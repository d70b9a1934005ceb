package importer

import (
	"context"
	"fmt"

	"confimport/internal/domain"
)

// processGraphs 处理包级别的图形。
func (im *Importer) processGraphs(ctx context.Context) error {
	policy := im.rules.For(domain.EntityGraphs)
	return im.processGraphSet(ctx, im.src.Graphs(), domain.FlagNormal, KindGraphs, policy)
}

// processGraphSet 图形以 (最后一条曲线的主机, 名称) 为键，每条曲线与 Y 轴引用的监控项都必须能解析。
func (im *Importer) processGraphSet(ctx context.Context, graphs []domain.Graph, flags int, kind string, policy Policy) error {
	if len(graphs) == 0 || (!policy.CreateMissing && !policy.UpdateExisting) {
		return nil
	}
	var creates, updates []*domain.Graph
	seen := make(map[domain.ScopedKey]struct{})
	for _, graph := range graphs {
		rec, hostID, err := im.prepareGraph(graph, flags, kind)
		if err != nil {
			return err
		}
		key := domain.ScopedKey{ScopeID: hostID, Name: graph.Name}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if id, ok := im.resolver.GraphID(hostID, graph.Name); ok {
			if policy.UpdateExisting {
				rec.ID = id
				updates = append(updates, rec)
			}
			continue
		}
		if policy.CreateMissing {
			creates = append(creates, rec)
		}
	}
	if len(creates) == 0 && len(updates) == 0 {
		return nil
	}
	if _, err := apply(ctx, im, kind, im.svc.Graphs, creates, updates); err != nil {
		return err
	}
	if err := im.resolver.RefreshGraphs(ctx); err != nil {
		return fmt.Errorf("刷新 %s 失败: %w", kind, err)
	}
	return nil
}

// prepareGraph 解析曲线与 Y 轴监控项，返回图形记录及其键中的主机 id。
func (im *Importer) prepareGraph(graph domain.Graph, flags int, kind string) (*domain.Graph, string, error) {
	if len(graph.Items) == 0 {
		return nil, "", fmt.Errorf("%s %q 没有任何曲线", kind, graph.Name)
	}
	rec := graph
	rec.ID = ""
	rec.Flags = flags
	rec.HostIDs = nil
	rec.Items = make([]domain.GraphItem, len(graph.Items))
	var keyHostID string
	for i, gitem := range graph.Items {
		hostID, itemID, err := im.resolveGraphItem(kind, graph.Name, gitem.Item)
		if err != nil {
			return nil, "", err
		}
		gitem.ItemID = itemID
		rec.Items[i] = gitem
		rec.HostIDs = appendUnique(rec.HostIDs, hostID)
		keyHostID = hostID
	}
	rec.YMinItemID, rec.YMaxItemID = "", ""
	if graph.YMinItem != nil {
		_, itemID, err := im.resolveGraphItem(kind, graph.Name, *graph.YMinItem)
		if err != nil {
			return nil, "", err
		}
		rec.YMinItemID = itemID
	}
	if graph.YMaxItem != nil {
		_, itemID, err := im.resolveGraphItem(kind, graph.Name, *graph.YMaxItem)
		if err != nil {
			return nil, "", err
		}
		rec.YMaxItemID = itemID
	}
	return &rec, keyHostID, nil
}

func (im *Importer) resolveGraphItem(kind, graph string, ref domain.ItemRef) (string, string, error) {
	hostID, ok := im.resolver.HostOrTemplateID(ref.Host)
	if !ok {
		return "", "", refErr(kind, graph, "item", ref.Key, ref.Host)
	}
	itemID, ok := im.resolver.ItemID(hostID, ref.Key)
	if !ok {
		return "", "", refErr(kind, graph, "item", ref.Key, ref.Host)
	}
	return hostID, itemID, nil
}
