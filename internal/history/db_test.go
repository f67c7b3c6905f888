package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := d.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestMigrate(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	for _, table := range []string{"schema_version", "runs"} {
		var name string
		err := d.conn.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}

	// Migrate again should be idempotent
	if err := d.Migrate(ctx); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	var count int
	if err := d.conn.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("schema_version rows = %d, want 1", count)
	}
}

func TestOpen_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", ".aiq", "history.db")
	d, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer d.Close()
	if err := d.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func TestLogRunAndRecent(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	runs := []Run{
		{ID: "a", Mode: "plan", Plan: []int{0, 1, 2}, ExitCode: 0, Duration: 1500 * time.Millisecond, StartedAt: base, FinishedAt: base.Add(2 * time.Second)},
		{ID: "b", Mode: "plan", Plan: []int{1, 6}, ExitCode: 3, FailedStages: []int{1, 6}, DiffOnly: true, Duration: time.Second, StartedAt: base.Add(time.Minute), FinishedAt: base.Add(time.Minute + time.Second)},
		{ID: "c", Mode: "single", Plan: []int{7}, ExitCode: 1, StartedAt: base.Add(2 * time.Minute), FinishedAt: base.Add(2 * time.Minute)},
	}
	for _, r := range runs {
		if err := d.LogRun(ctx, r); err != nil {
			t.Fatalf("log run %s: %v", r.ID, err)
		}
	}

	got, err := d.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(got))
	}
	if got[0].ID != "c" || got[1].ID != "b" {
		t.Errorf("order = %s,%s, want c,b", got[0].ID, got[1].ID)
	}

	b := got[1]
	if !b.DiffOnly || b.ExitCode != 3 || b.Passed() {
		t.Errorf("unexpected run b: %+v", b)
	}
	if len(b.FailedStages) != 2 || b.FailedStages[0] != 1 || b.FailedStages[1] != 6 {
		t.Errorf("failed stages = %v, want [1 6]", b.FailedStages)
	}
	if len(b.Plan) != 2 || b.Plan[1] != 6 {
		t.Errorf("plan = %v", b.Plan)
	}
	if !b.StartedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("started_at = %v", b.StartedAt)
	}
	if b.Duration != time.Second {
		t.Errorf("duration = %v", b.Duration)
	}

	all, err := d.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("recent all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 runs, got %d", len(all))
	}
	if all[2].FailedStages != nil {
		t.Errorf("passing run should have no failed stages, got %v", all[2].FailedStages)
	}
}

func TestLogRun_DuplicateID(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()
	r := Run{ID: "dup", Mode: "single", Plan: []int{1}, StartedAt: time.Now(), FinishedAt: time.Now()}
	if err := d.LogRun(ctx, r); err != nil {
		t.Fatal(err)
	}
	if err := d.LogRun(ctx, r); err == nil {
		t.Error("expected error on duplicate id")
	}
}

func TestRebind(t *testing.T) {
	pg := &DB{dialect: Postgres}
	if got := pg.rebind("SELECT ? , ?"); got != "SELECT $1 , $2" {
		t.Errorf("postgres rebind = %q", got)
	}
	lite := &DB{dialect: SQLite}
	if got := lite.rebind("SELECT ?"); got != "SELECT ?" {
		t.Errorf("sqlite rebind = %q", got)
	}
}

func TestDialectFor(t *testing.T) {
	cases := map[string]Dialect{
		"postgres://u@h/db":   Postgres,
		"postgresql://u@h/db": Postgres,
		"/tmp/history.db":     SQLite,
		":memory:":            SQLite,
	}
	for dsn, want := range cases {
		if got := DialectFor(dsn); got != want {
			t.Errorf("DialectFor(%q) = %v, want %v", dsn, got, want)
		}
	}
}
