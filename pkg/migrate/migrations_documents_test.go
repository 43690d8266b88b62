package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDocumentsMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_documents_table.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no documents migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS documents",
		"FOREIGN KEY (permit_id) REFERENCES permits(id) ON DELETE CASCADE",
		"FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE",
		"CHECK (size_bytes >= 0)",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_storage_key",
		"CREATE INDEX IF NOT EXISTS idx_documents_content_hash",
		"DROP TABLE IF EXISTS documents",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestAuditLogsMigrationContainsIndexes(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_audit_logs_table.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no audit logs migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS audit_logs",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_entity",
		"DROP TABLE IF EXISTS audit_logs",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
