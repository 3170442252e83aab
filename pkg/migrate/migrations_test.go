package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cantadelicia/estanquillo-backend/pkg/migrate"
)

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %q found", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestMigrationsDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}

func TestSalesMigrationContainsSchemas(t *testing.T) {
	content := readMigration(t, "*_create_sales_table.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS sales",
		"product_names TEXT[]",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_sales_folio",
		"CREATE INDEX IF NOT EXISTS idx_sales_product_names ON sales USING GIN (product_names)",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestSessionMigrationContainsSchemas(t *testing.T) {
	content := readMigration(t, "*_create_authorization_sessions_table.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS authorization_sessions",
		"expires_at TIMESTAMPTZ",
		"CREATE INDEX IF NOT EXISTS idx_authorization_sessions_active",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
