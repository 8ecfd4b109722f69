package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/caiotarifa/notion2sheets/internal/config"
	"github.com/caiotarifa/notion2sheets/internal/n2s"
	"github.com/caiotarifa/notion2sheets/internal/secrets"
	"github.com/caiotarifa/notion2sheets/internal/sheets"
	"github.com/caiotarifa/notion2sheets/internal/testutil"
)

const testAccount = `{"type":"service_account"}`

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig(t.TempDir())
	cfg.Database.Type = "memory"
	cfg.Checkpoint.Type = "memory"
	cfg.Collections = []config.CollectionConfig{
		{Name: "Tasks", NotionDatabaseID: "db-tasks", GoogleSheetID: "sheet-1", GoogleSheetName: "Tasks"},
		{Name: "Notes", NotionDatabaseID: "db-notes", GoogleSheetID: "sheet-1", GoogleSheetName: "Notes"},
	}
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, opts Options) *App {
	t.Helper()
	if opts.Console == nil {
		opts.Console = io.Discard
	}
	a, err := New(context.Background(), cfg, opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestApp_Sync(t *testing.T) {
	src := testutil.NewFakeSource()
	src.AddRows("db-tasks", testutil.NewPage("a", "2024-01-01T00:00:00.000Z", testutil.TitleProp("Name", "A")))
	dest := testutil.NewFakeDestination()
	dest.AddTab("sheet-1", 1, "Tasks", nil)
	dest.AddTab("sheet-1", 2, "Notes", nil)

	a := newTestApp(t, newTestConfig(t), Options{Source: src, Destination: dest})

	results, err := a.Sync(context.Background(), n2s.SyncOptions{})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].Run.Status != n2s.RunSuccess || results[1].Run.Status != n2s.RunSkipped {
		t.Errorf("statuses = %s/%s, want success/skipped", results[0].Run.Status, results[1].Run.Status)
	}
	if grid := dest.Grid(1); len(grid) != 2 {
		t.Errorf("Tasks grid = %v, want header plus one row", grid)
	}

	cps, err := a.Checkpoints()
	if err != nil {
		t.Fatalf("Checkpoints() error = %v", err)
	}
	if len(cps) != 2 {
		t.Errorf("len(Checkpoints()) = %d, want 2", len(cps))
	}

	runs, err := a.GetHistory(10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("len(GetHistory()) = %d, want 2", len(runs))
	}
}

func TestApp_SyncErrors(t *testing.T) {
	t.Run("no collections", func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.Collections = nil
		a := newTestApp(t, cfg, Options{Source: testutil.NewFakeSource(), Destination: testutil.NewFakeDestination()})

		if _, err := a.Sync(context.Background(), n2s.SyncOptions{}); err == nil {
			t.Error("Sync() expected error without collections")
		}
	})

	t.Run("unknown collection", func(t *testing.T) {
		a := newTestApp(t, newTestConfig(t), Options{Source: testutil.NewFakeSource(), Destination: testutil.NewFakeDestination()})

		_, err := a.Sync(context.Background(), n2s.SyncOptions{Only: []string{"Nope"}})
		if err == nil || !strings.Contains(err.Error(), "Nope") {
			t.Errorf("Sync() error = %v, want unknown collection", err)
		}
	})

	t.Run("missing credentials", func(t *testing.T) {
		t.Setenv("NOTION_TOKEN", "")
		t.Setenv("GOOGLE_SERVICE_ACCOUNT", "")
		a := newTestApp(t, newTestConfig(t), Options{})

		if _, err := a.Sync(context.Background(), n2s.SyncOptions{}); err == nil {
			t.Error("Sync() expected error without credentials")
		}
	})
}

func TestApp_ResetCheckpoint(t *testing.T) {
	a := newTestApp(t, newTestConfig(t), Options{})
	for _, id := range []string{"db-tasks", "db-notes", "db-orphan"} {
		if err := a.checkpoints.PutCheckpoint(id, testutil.FixedClock().Now()); err != nil {
			t.Fatalf("PutCheckpoint() error = %v", err)
		}
	}

	// By collection name.
	if err := a.ResetCheckpoint("Tasks"); err != nil {
		t.Fatalf("ResetCheckpoint(Tasks) error = %v", err)
	}
	// By raw database ID.
	if err := a.ResetCheckpoint("db-orphan"); err != nil {
		t.Fatalf("ResetCheckpoint(db-orphan) error = %v", err)
	}

	cps, _ := a.Checkpoints()
	if len(cps) != 1 || cps[0].DatabaseID != "db-notes" {
		t.Errorf("Checkpoints() = %+v, want only db-notes", cps)
	}

	if err := a.ResetAllCheckpoints(); err != nil {
		t.Fatalf("ResetAllCheckpoints() error = %v", err)
	}
	if cps, _ := a.Checkpoints(); len(cps) != 0 {
		t.Errorf("Checkpoints() = %+v, want none", cps)
	}
}

func TestApp_Credentials(t *testing.T) {
	t.Run("environment only", func(t *testing.T) {
		t.Setenv("NOTION_TOKEN", "env-token")
		t.Setenv("GOOGLE_SERVICE_ACCOUNT", testAccount)
		a := newTestApp(t, newTestConfig(t), Options{
			Passphrase: func() (string, error) {
				t.Error("passphrase requested although env is complete")
				return "", nil
			},
		})

		creds, err := a.credentials()
		if err != nil {
			t.Fatalf("credentials() error = %v", err)
		}
		if creds.NotionToken != "env-token" {
			t.Errorf("NotionToken = %q", creds.NotionToken)
		}
	})

	t.Run("vault fills the gaps", func(t *testing.T) {
		t.Setenv("NOTION_TOKEN", "env-token")
		t.Setenv("GOOGLE_SERVICE_ACCOUNT", "")
		cfg := newTestConfig(t)

		v := secrets.NewVault(cfg.Secrets)
		if err := v.Setup("pw"); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
		if err := v.Seal(secrets.Credentials{NotionToken: "vault-token", GoogleServiceAccount: testAccount}); err != nil {
			t.Fatalf("Seal() error = %v", err)
		}

		asked := 0
		a := newTestApp(t, cfg, Options{Passphrase: func() (string, error) {
			asked++
			return "pw", nil
		}})

		creds, err := a.credentials()
		if err != nil {
			t.Fatalf("credentials() error = %v", err)
		}
		if creds.NotionToken != "env-token" || creds.GoogleServiceAccount != testAccount {
			t.Errorf("credentials() = %+v", creds)
		}
		if asked != 1 {
			t.Errorf("passphrase asked %d times, want 1", asked)
		}
	})

	t.Run("passphrase failure", func(t *testing.T) {
		t.Setenv("NOTION_TOKEN", "")
		t.Setenv("GOOGLE_SERVICE_ACCOUNT", "")
		cfg := newTestConfig(t)

		v := secrets.NewVault(cfg.Secrets)
		if err := v.Setup("pw"); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
		if err := v.Seal(secrets.Credentials{NotionToken: "t", GoogleServiceAccount: testAccount}); err != nil {
			t.Fatalf("Seal() error = %v", err)
		}

		a := newTestApp(t, cfg, Options{Passphrase: func() (string, error) {
			return "", errors.New("no terminal")
		}})
		if _, err := a.credentials(); err == nil {
			t.Error("credentials() expected error")
		}
	})
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(cfg *config.Config)
	}{
		{"bad log level", func(cfg *config.Config) { cfg.LogLevel = "chatty" }},
		{"bad timezone", func(cfg *config.Config) { cfg.Timezone = "Mars/Olympus" }},
		{"bad locale", func(cfg *config.Config) { cfg.Locale = "not_a-locale!" }},
		{"bad database type", func(cfg *config.Config) { cfg.Database.Type = "oracle" }},
		{"bad checkpoint type", func(cfg *config.Config) { cfg.Checkpoint.Type = "floppy" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConfig(t)
			tt.modify(cfg)
			if _, err := New(context.Background(), cfg, Options{Console: io.Discard}); err == nil {
				t.Error("New() expected error")
			}
		})
	}
}

func TestNew_WritesLogFile(t *testing.T) {
	cfg := newTestConfig(t)
	a := newTestApp(t, cfg, Options{})
	a.logger.Info("hello")

	matches, _ := filepath.Glob(filepath.Join(cfg.LogDir, LogFileName))
	if len(matches) != 1 {
		t.Errorf("log file not created in %s", cfg.LogDir)
	}
}

func TestApp_TransportPacesBothClients(t *testing.T) {
	var starts []time.Time
	record := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			starts = append(starts, time.Now())
			io.WriteString(w, body)
		}
	}
	notionSrv := httptest.NewServer(record(`{"object":"user","id":"u1","name":"Ada"}`))
	t.Cleanup(notionSrv.Close)
	sheetsSrv := httptest.NewServer(record(`{"sheets":[]}`))
	t.Cleanup(sheetsSrv.Close)

	interval := 40 * time.Millisecond
	cfg := newTestConfig(t)
	cfg.Notion.BaseURL = notionSrv.URL
	cfg.Transport.MinIntervalMS = int(interval / time.Millisecond)
	a := newTestApp(t, cfg, Options{})

	transport := a.transport()
	nc, err := a.newNotionClient(secrets.Credentials{NotionToken: "t"}, transport)
	if err != nil {
		t.Fatalf("newNotionClient() error = %v", err)
	}
	sc, err := sheets.NewClient(context.Background(), sheets.Config{Endpoint: sheetsSrv.URL + "/", Limiter: transport})
	if err != nil {
		t.Fatalf("sheets.NewClient() error = %v", err)
	}

	if _, err := nc.GetUser(context.Background(), "u1"); err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if _, err := sc.ListTabs(context.Background(), "sheet-1"); err != nil {
		t.Fatalf("ListTabs() error = %v", err)
	}

	if len(starts) != 2 {
		t.Fatalf("requests = %d, want 2", len(starts))
	}
	// Allow a little slack for timer granularity.
	if gap := starts[1].Sub(starts[0]); gap < interval-5*time.Millisecond {
		t.Errorf("gap between notion and sheets requests = %v, want >= %v", gap, interval)
	}
}
