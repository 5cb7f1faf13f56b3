package db

import (
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/lwelte/gozp/pkg/db/queries"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := Open(path, logger)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrationsApply(t *testing.T) {
	db := openTestDB(t)

	version, err := db.GetMigrationVersion()
	if err != nil {
		t.Fatalf("get version: %v", err)
	}
	if version != 2 {
		t.Errorf("expected schema version 2, got %d", version)
	}
}

func TestVMwareAlertSourceRename(t *testing.T) {
	db := openTestDB(t)

	// Roll back past the rename, file alerts under the old sources, then
	// migrate forward again.
	if err := db.MigrateDownTo(1); err != nil {
		t.Fatalf("migrate down: %v", err)
	}
	for _, source := range []string{"VMWareLoginFailed", "VMWareSnapshotFailed", "VMWareSnapshotDeleteFail", "ScrubFailed"} {
		err := queries.InsertAlert(db.Conn(), &queries.Alert{
			Source:    source,
			Level:     "WARN",
			Timestamp: time.Now(),
		})
		if err != nil {
			t.Fatalf("insert alert: %v", err)
		}
	}
	if err := db.RunMigrations(); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	sources, err := queries.ListAlertSources(db.Conn())
	if err != nil {
		t.Fatalf("list sources: %v", err)
	}
	want := map[string]bool{
		"LegacyVMWareLoginFailed":        true,
		"LegacyVMWareSnapshotFailed":     true,
		"LegacyVMWareSnapshotDeleteFail": true,
		"ScrubFailed":                    true,
	}
	if len(sources) != len(want) {
		t.Fatalf("expected %d sources, got %v", len(want), sources)
	}
	for _, s := range sources {
		if !want[s] {
			t.Errorf("unexpected source %q after migration", s)
		}
	}
}

func TestAlertQueries(t *testing.T) {
	db := openTestDB(t)

	a := &queries.Alert{
		Source:    "ScrubFailed",
		Level:     "CRITICAL",
		Message:   sql.NullString{String: "scrub of tank failed", Valid: true},
		Timestamp: time.Now(),
	}
	if err := queries.InsertAlert(db.Conn(), a); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if a.ID == 0 {
		t.Error("expected alert id assigned")
	}

	b := &queries.Alert{Source: "ScrubFailed", Level: "WARN", Timestamp: time.Now()}
	if err := queries.InsertAlert(db.Conn(), b); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := queries.DismissAlert(db.Conn(), b.ID); err != nil {
		t.Fatalf("dismiss: %v", err)
	}

	active, err := queries.ListAlerts(db.Conn(), false, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 1 || active[0].ID != a.ID {
		t.Errorf("expected only the undismissed alert, got %v", active)
	}

	all, err := queries.ListAlerts(db.Conn(), true, 0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 alerts, got %d", len(all))
	}
}

func TestScrubHistoryQueries(t *testing.T) {
	db := openTestDB(t)

	rec := &queries.ScrubRecord{
		JobID:     "job-1",
		Pool:      "tank",
		StartedAt: time.Now().Add(-time.Hour),
		Status:    "running",
	}
	if err := queries.InsertScrub(db.Conn(), rec); err != nil {
		t.Fatalf("insert scrub: %v", err)
	}

	// Still running: no finished timestamp.
	records, err := queries.ListScrubHistory(db.Conn(), "tank", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].FinishedAt.Valid {
		t.Error("expected no finished timestamp while running")
	}

	if err := queries.FinishScrub(db.Conn(), "job-1", "success", 100); err != nil {
		t.Fatalf("finish scrub: %v", err)
	}

	records, err = queries.ListScrubHistory(db.Conn(), "tank", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if records[0].Status != "success" || records[0].Progress != 100 {
		t.Errorf("unexpected record after finish: %+v", records[0])
	}
	if !records[0].FinishedAt.Valid {
		t.Error("expected finished timestamp after finish")
	}

	// Another pool's history stays separate.
	other, err := queries.ListScrubHistory(db.Conn(), "dozer", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("expected no records for dozer, got %v", other)
	}
}
