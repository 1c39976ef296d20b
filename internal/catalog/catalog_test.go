package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeCatalog(t, `
scenarios:
  - id: sc-invoice
    name: Invoice Fraud
    category: invoice_fraud
    rounds: 3
    tags: [finance, urgent]
offenders:
  - id: off-exec
    name: Fake Executive
victims:
  - id: vic-junior
    name: Junior Accountant
    description: New hire, eager to please.
`)

	cat, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	sc, ok := cat.Scenario("sc-invoice")
	if !ok {
		t.Fatal("scenario sc-invoice not found")
	}
	if sc.Category != "invoice_fraud" || sc.Rounds != 3 {
		t.Errorf("scenario = %+v", sc)
	}
	if len(sc.Tags) != 2 {
		t.Errorf("tags = %v", sc.Tags)
	}

	if _, ok := cat.Offender("off-exec"); !ok {
		t.Error("offender off-exec not found")
	}
	v, ok := cat.Victim("vic-junior")
	if !ok || !strings.Contains(v.Description, "New hire") {
		t.Errorf("victim = %+v found=%v", v, ok)
	}

	if _, ok := cat.Scenario("nope"); ok {
		t.Error("unknown scenario reported found")
	}
}

func TestLoadRejectsDuplicateIDs(t *testing.T) {
	path := writeCatalog(t, `
scenarios:
  - id: same
    name: A
victims:
  - id: same
    name: B
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "duplicate id") {
		t.Errorf("expected duplicate-id error, got %v", err)
	}
}

func TestLoadRejectsMissingID(t *testing.T) {
	path := writeCatalog(t, "scenarios:\n  - name: Anonymous\n")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "missing id") {
		t.Errorf("expected missing-id error, got %v", err)
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := writeCatalog(t, "scenarios: [unclosed")
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}
