package nat

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/easzlab/rvcm/pkg/config"
	"github.com/easzlab/rvcm/pkg/router"
)

func boolPtr(b bool) *bool {
	return &b
}

// makeRuleConfig creates a desired rule forwarding port to the same port on target.
func makeRuleConfig(name string, port, target int) config.RuleConfig {
	return config.RuleConfig{
		Name:          name,
		Protocol:      "tcp",
		PublicPortMin: port,
		Target:        target,
	}
}

func TestReconcile_AppendsMissing(t *testing.T) {
	srv, svc := newServiceTestEnv(t, "1-web-80-80-1-80-80-2-0-;")
	reconciler := NewReconciler(svc, zap.NewNop())

	result, err := reconciler.Reconcile(context.Background(), []config.RuleConfig{
		makeRuleConfig("web", 80, 2),
		makeRuleConfig("ssh", 2222, 3),
	}, false)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	if len(result.Created) != 1 || result.Created[0].Name != "ssh" {
		t.Errorf("expected ssh created, got %+v", result.Created)
	}
	if len(result.Updated) != 0 || len(result.Removed) != 0 {
		t.Errorf("expected no updates or removals, got %+v", result)
	}
	if srv.VSList() != "1-web-80-80-1-80-80-2-0-;1-ssh-2222-2222-1-2222-2222-3-0-;" {
		t.Errorf("unexpected list %q", srv.VSList())
	}
}

func TestReconcile_UpdatesDiffering(t *testing.T) {
	srv, svc := newServiceTestEnv(t, "1-web-80-80-3-80-80-2-0-;0-web-80-80-1-80-80-2-0-;")
	reconciler := NewReconciler(svc, zap.NewNop())

	result, err := reconciler.Reconcile(context.Background(), []config.RuleConfig{
		makeRuleConfig("web", 80, 2),
	}, false)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	if len(result.Updated) != 2 {
		t.Fatalf("expected both web rules updated, got %d", len(result.Updated))
	}
	if srv.VSList() != "1-web-80-80-1-80-80-2-0-;1-web-80-80-1-80-80-2-0-;" {
		t.Errorf("unexpected list %q", srv.VSList())
	}
	if len(srv.Saves()) != 1 {
		t.Errorf("expected 1 save, got %d", len(srv.Saves()))
	}
}

func TestReconcile_DisabledRule(t *testing.T) {
	srv, svc := newServiceTestEnv(t, "1-web-80-80-1-80-80-2-0-;")
	reconciler := NewReconciler(svc, zap.NewNop())

	rc := makeRuleConfig("web", 80, 2)
	rc.Enabled = boolPtr(false)
	if _, err := reconciler.Reconcile(context.Background(), []config.RuleConfig{rc}, false); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if srv.VSList() != "0-web-80-80-1-80-80-2-0-;" {
		t.Errorf("unexpected list %q", srv.VSList())
	}
}

func TestReconcile_Prune(t *testing.T) {
	list := "1-web-80-80-1-80-80-2-0-;1-old-81-81-1-81-81-2-0-;1-old-82-82-1-82-82-2-0-;"

	t.Run("without prune", func(t *testing.T) {
		srv, svc := newServiceTestEnv(t, list)
		result, err := NewReconciler(svc, zap.NewNop()).Reconcile(context.Background(),
			[]config.RuleConfig{makeRuleConfig("web", 80, 2)}, false)
		if err != nil {
			t.Fatalf("Reconcile failed: %v", err)
		}
		if result.Changed() {
			t.Errorf("expected no changes, got %+v", result)
		}
		if len(srv.Saves()) != 0 {
			t.Errorf("expected no save, got %d", len(srv.Saves()))
		}
	})

	t.Run("with prune", func(t *testing.T) {
		srv, svc := newServiceTestEnv(t, list)
		result, err := NewReconciler(svc, zap.NewNop()).Reconcile(context.Background(),
			[]config.RuleConfig{makeRuleConfig("web", 80, 2)}, true)
		if err != nil {
			t.Fatalf("Reconcile failed: %v", err)
		}
		if len(result.Removed) != 2 {
			t.Errorf("expected 2 removed rules, got %d", len(result.Removed))
		}
		if srv.VSList() != "1-web-80-80-1-80-80-2-0-;" {
			t.Errorf("unexpected list %q", srv.VSList())
		}
	})
}

func TestReconcile_NoopPassDoesNotSave(t *testing.T) {
	srv, svc := newServiceTestEnv(t, "1-web-80-80-1-80-80-2-0-;")
	reconciler := NewReconciler(svc, zap.NewNop())
	desired := []config.RuleConfig{makeRuleConfig("web", 80, 2)}

	for i := 0; i < 3; i++ {
		result, err := reconciler.Reconcile(context.Background(), desired, true)
		if err != nil {
			t.Fatalf("pass %d: Reconcile failed: %v", i, err)
		}
		if result.Changed() {
			t.Errorf("pass %d: expected no changes", i)
		}
	}
	if len(srv.Saves()) != 0 {
		t.Errorf("expected no saves, got %d", len(srv.Saves()))
	}
	if srv.Gets(router.PathNAT) != 3 {
		t.Errorf("expected one fetch per pass, got %d", srv.Gets(router.PathNAT))
	}
}

func TestReconcile_InvalidDesiredRules(t *testing.T) {
	srv, svc := newServiceTestEnv(t, "")
	reconciler := NewReconciler(svc, zap.NewNop())

	bad := makeRuleConfig("bad-name", 80, 2)
	badProto := makeRuleConfig("p", 80, 2)
	badProto.Protocol = "sctp"

	if _, err := reconciler.Reconcile(context.Background(), []config.RuleConfig{bad, badProto}, false); err == nil {
		t.Fatal("expected error, got nil")
	}
	if srv.Gets(router.PathNAT) != 0 {
		t.Error("expected no fetch when desired state is invalid")
	}
}
