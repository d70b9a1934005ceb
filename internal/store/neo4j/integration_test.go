package neo4j

import (
	"context"
	"testing"

	"confimport/internal/domain"
	"confimport/internal/graph"
	"confimport/internal/store"
)

func TestNeo4jRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	client, err := graph.NewClient(ctx, graph.Config{
		URI:             "bolt://localhost:7687",
		Username:        "neo4j",
		Password:        "StrongPassw0rd",
		Database:        "neo4j",
		QueryTimeoutSec: 30,
	})
	if err != nil {
		t.Skipf("neo4j not available: %v", err)
	}
	s := New(client, client, 50)
	defer s.Close(ctx)

	if err := client.RunWrite(ctx, "MATCH (n:Entity) DETACH DELETE n", nil); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema failed: %v", err)
	}

	svc := s.Services()
	hostIDs, err := svc.Hosts.Create(ctx, []*domain.Host{{Host: "srv1"}})
	if err != nil {
		t.Fatalf("create host failed: %v", err)
	}
	if _, err := svc.Items.Create(ctx, []*domain.Item{{HostID: hostIDs[0], Key: "agent.ping"}}); err != nil {
		t.Fatalf("create item failed: %v", err)
	}
	items, err := svc.Items.Get(ctx, store.Filter{HostIDs: hostIDs})
	if err != nil || len(items) != 1 || items[0].Key != "agent.ping" {
		t.Fatalf("get items failed: %+v %v", items, err)
	}

	triggerIDs, err := svc.Triggers.Create(ctx, []*domain.Trigger{
		{Description: "a", Expression: "{srv1:agent.ping.last()}=0", HostIDs: hostIDs},
		{Description: "b", Expression: "{srv1:agent.ping.min(5m)}=0", HostIDs: hostIDs},
	})
	if err != nil {
		t.Fatalf("create triggers failed: %v", err)
	}
	if err := svc.Triggers.SetDependencies(ctx, []domain.TriggerDependency{{TriggerID: triggerIDs[0], DependsOn: triggerIDs[1:]}}); err != nil {
		t.Fatalf("set dependencies failed: %v", err)
	}
	got, err := svc.Triggers.Get(ctx, store.Filter{IDs: triggerIDs[:1]})
	if err != nil || len(got) != 1 || len(got[0].DependencyIDs) != 1 {
		t.Fatalf("dependency not stored: %+v %v", got, err)
	}

	records, err := client.RunRead(ctx, "MATCH (:Trigger)-[r:DEPENDS_ON]->(:Trigger) RETURN count(r) AS cnt", nil)
	if err != nil {
		t.Fatalf("count edges failed: %v", err)
	}
	if cnt, _ := records[0]["cnt"].(int64); cnt != 1 {
		t.Fatalf("expected 1 DEPENDS_ON edge, got %v", records[0]["cnt"])
	}

	if err := svc.Items.Delete(ctx, []string{items[0].ID}); err != nil {
		t.Fatalf("delete item failed: %v", err)
	}
	if left, _ := svc.Items.Get(ctx, store.Filter{}); len(left) != 0 {
		t.Fatalf("item not deleted: %+v", left)
	}
}
