package storage

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestDefaultPgPoolConfig(t *testing.T) {
	cfg := DefaultPgPoolConfig()
	if cfg.ConnectTimeout != 5*time.Second {
		t.Errorf("ConnectTimeout = %v", cfg.ConnectTimeout)
	}
	if cfg.MaxConns != 4 {
		t.Errorf("MaxConns = %d", cfg.MaxConns)
	}
	if cfg.MinConns != 0 {
		t.Errorf("MinConns = %d", cfg.MinConns)
	}
	if cfg.MaxConnLifetime != time.Hour {
		t.Errorf("MaxConnLifetime = %v", cfg.MaxConnLifetime)
	}
	if cfg.MaxConnIdleTime != 30*time.Minute {
		t.Errorf("MaxConnIdleTime = %v", cfg.MaxConnIdleTime)
	}
}

func TestPgSchemaStatements(t *testing.T) {
	wantFragments := []string{
		"CREATE TABLE IF NOT EXISTS tasks",
		"CREATE TABLE IF NOT EXISTS results",
		"worker_id TEXT",
		"redeliveries INTEGER NOT NULL DEFAULT 0",
		"status IN ('queued','in_progress','completed','failed')",
		"depth IN ('quick','standard','deep')",
		"REFERENCES tasks(id)",
		"idx_tasks_status",
		"idx_tasks_repo",
		"idx_tasks_claimed_at",
	}
	for _, want := range wantFragments {
		if !strings.Contains(pgSchema, want) {
			t.Errorf("pgSchema missing %q", want)
		}
	}
}

func TestOpenPostgresRejectsBadConnString(t *testing.T) {
	_, err := OpenPostgres(context.Background(), "not a connection string", DefaultPgPoolConfig())
	if err == nil {
		t.Fatal("expected error for malformed connection string")
	}
	if !strings.Contains(err.Error(), "parse connection string") {
		t.Errorf("err = %v", err)
	}
}
