package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

type fakeClient struct {
	response string
	err      error
}

func (f *fakeClient) Complete(ctx context.Context, prompt string) (string, error) {
	return f.response, f.err
}

func (f *fakeClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f.response, f.err
}

func (f *fakeClient) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f.response, f.err
}

func TestLoadFallsBackToBuiltin(t *testing.T) {
	c := Load("does/not/exist.json", &fakeClient{}, zap.NewNop())

	tables := c.AllTables()
	if len(tables) == 0 {
		t.Fatal("built-in catalog is empty")
	}

	for _, name := range []string{"crsp.dsf", "comp.funda", "ibes.statsum", "crsp.dsenames"} {
		if _, ok := c.TableInfo(name); !ok {
			t.Errorf("built-in catalog missing %s", name)
		}
	}
}

func TestLoadSnapshot(t *testing.T) {
	snapshot := `{
		"custom.table": {
			"description": "a custom table",
			"fields": {"id": "identifier"},
			"primary_keys": ["id"]
		}
	}`
	path := filepath.Join(t.TempDir(), "schema.json")
	if err := os.WriteFile(path, []byte(snapshot), 0644); err != nil {
		t.Fatal(err)
	}

	c := Load(path, &fakeClient{}, zap.NewNop())

	info, ok := c.TableInfo("custom.table")
	if !ok {
		t.Fatal("snapshot table not loaded")
	}
	if info.Name != "custom.table" {
		t.Errorf("Name = %q, want custom.table", info.Name)
	}
	if info.Description != "a custom table" {
		t.Errorf("Description = %q", info.Description)
	}
	if len(c.AllTables()) != 1 {
		t.Errorf("AllTables = %v, want only the snapshot table", c.AllTables())
	}
}

func TestRelevantTablesDiscardsUnknownNames(t *testing.T) {
	c := Load("", &fakeClient{response: "crsp.dsf, made.up_table, comp.funda"}, zap.NewNop())

	got := c.RelevantTables(context.Background(), "prices and fundamentals")
	want := map[string]bool{"crsp.dsf": true, "comp.funda": true}
	if len(got) != 2 {
		t.Fatalf("relevant = %v, want exactly 2 known tables", got)
	}
	for _, name := range got {
		if !want[name] {
			t.Errorf("unexpected table %s", name)
		}
	}
}

func TestRelevantTablesFailureReturnsAll(t *testing.T) {
	c := Load("", &fakeClient{err: context.DeadlineExceeded}, zap.NewNop())

	got := c.RelevantTables(context.Background(), "prices")
	if len(got) != len(c.AllTables()) {
		t.Errorf("relevant = %d tables, want the full catalog (%d)", len(got), len(c.AllTables()))
	}
}

func TestRelevantTablesAllHallucinatedReturnsAll(t *testing.T) {
	c := Load("", &fakeClient{response: "fake.one, fake.two"}, zap.NewNop())

	got := c.RelevantTables(context.Background(), "prices")
	if len(got) != len(c.AllTables()) {
		t.Errorf("relevant = %d tables, want the full catalog (%d)", len(got), len(c.AllTables()))
	}
}

func TestTablesInfoSkipsUnknown(t *testing.T) {
	c := Load("", &fakeClient{}, zap.NewNop())

	infos := c.TablesInfo([]string{"crsp.dsf", "missing.table"})
	if len(infos) != 1 {
		t.Fatalf("TablesInfo = %d entries, want 1", len(infos))
	}
	if _, ok := infos["crsp.dsf"]; !ok {
		t.Error("crsp.dsf missing from TablesInfo")
	}
}
