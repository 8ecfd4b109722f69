package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/caiotarifa/notion2sheets/internal/checkpoint"
	"github.com/caiotarifa/notion2sheets/internal/config"
	"github.com/caiotarifa/notion2sheets/internal/database"
	"github.com/caiotarifa/notion2sheets/internal/format"
	"github.com/caiotarifa/notion2sheets/internal/n2s"
	"github.com/caiotarifa/notion2sheets/internal/notion"
	"github.com/caiotarifa/notion2sheets/internal/ratelimit"
	"github.com/caiotarifa/notion2sheets/internal/secrets"
	"github.com/caiotarifa/notion2sheets/internal/sheets"
)

// PassphraseFunc supplies the passphrase that unseals stored credentials.
type PassphraseFunc func() (string, error)

// Options customizes App construction.
type Options struct {
	// Verbose lowers the log level to debug.
	Verbose bool
	// Console receives log output in addition to the log file. Nil means stderr.
	Console io.Writer
	// Passphrase is asked for only when credentials must be unsealed.
	Passphrase PassphraseFunc

	// Source and Destination replace the API clients. Used by tests.
	Source      n2s.Source
	Destination n2s.Destination
}

// App is the application layer between the CLI and SyncService.
// It constructs all dependencies from config, exposes high-level operations
// keyed by collection names, and releases resources on Close.
type App struct {
	cfg         *config.Config
	opts        Options
	db          n2s.Database
	checkpoints n2s.CheckpointStore
	formatter   *format.Formatter
	vault       *secrets.Vault
	logger      n2s.Logger
	logFile     *os.File
	service     *n2s.SyncService
}

// New creates a fully wired App from the given config.
// The caller must call Close when done.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	level, err := ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	formatter, err := format.New(cfg.Locale, loc)
	if err != nil {
		return nil, fmt.Errorf("creating formatter: %w", err)
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	checkpoints, err := checkpoint.NewStoreFromConfig(ctx, cfg.Checkpoint, db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating checkpoint store: %w", err)
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	runID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, runID, level, console)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	return &App{
		cfg:         cfg,
		opts:        opts,
		db:          db,
		checkpoints: checkpoints,
		formatter:   formatter,
		vault:       secrets.NewVault(cfg.Secrets),
		logger:      &slogAdapter{l: logger},
		logFile:     logFile,
	}, nil
}

// Sync runs every configured collection selected by opts.
func (a *App) Sync(ctx context.Context, opts n2s.SyncOptions) ([]*n2s.CollectionResult, error) {
	collections := a.cfg.SyncCollections()
	if len(collections) == 0 {
		return nil, errors.New("no collections configured")
	}
	for _, want := range opts.Only {
		if a.findCollection(want) == nil {
			return nil, fmt.Errorf("unknown collection %q", want)
		}
	}

	svc, err := a.syncService(ctx)
	if err != nil {
		return nil, err
	}
	return svc.SyncAll(ctx, collections, opts)
}

// Collections returns the configured collections in file order.
func (a *App) Collections() []n2s.Collection {
	return a.cfg.SyncCollections()
}

// Checkpoints lists stored checkpoints.
func (a *App) Checkpoints() ([]*n2s.Checkpoint, error) {
	return a.checkpoints.ListCheckpoints()
}

// ResetCheckpoint forces the next sync of a collection, given by name or
// database ID, to fetch everything.
func (a *App) ResetCheckpoint(nameOrID string) error {
	databaseID := nameOrID
	if c := a.findCollection(nameOrID); c != nil {
		databaseID = c.DatabaseID
	}
	a.logger.Info("resetting checkpoint", "database_id", databaseID)
	return a.checkpoints.DeleteCheckpoint(databaseID)
}

// ResetAllCheckpoints removes every stored checkpoint.
func (a *App) ResetAllCheckpoints() error {
	all, err := a.checkpoints.ListCheckpoints()
	if err != nil {
		return err
	}
	for _, cp := range all {
		if err := a.ResetCheckpoint(cp.DatabaseID); err != nil {
			return err
		}
	}
	return nil
}

// GetHistory returns the most recent sync runs.
func (a *App) GetHistory(limit int) ([]*n2s.SyncRun, error) {
	return a.db.ListSyncRuns(limit)
}

// Close closes the database and the log file.
func (a *App) Close() error {
	var firstErr error
	if err := a.db.Close(); err != nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}

func (a *App) findCollection(nameOrID string) *n2s.Collection {
	collections := a.cfg.SyncCollections()
	i := slices.IndexFunc(collections, func(c n2s.Collection) bool {
		return c.Name == nameOrID || c.DatabaseID == nameOrID
	})
	if i < 0 {
		return nil
	}
	return &collections[i]
}

// syncService builds the API clients on first use, so commands that never
// talk to Notion or Google never ask for credentials.
func (a *App) syncService(ctx context.Context) (*n2s.SyncService, error) {
	if a.service != nil {
		return a.service, nil
	}

	source, dest := a.opts.Source, a.opts.Destination
	if source == nil || dest == nil {
		creds, err := a.credentials()
		if err != nil {
			return nil, err
		}
		transport := a.transport()
		if source == nil {
			if source, err = a.newNotionClient(creds, transport); err != nil {
				return nil, err
			}
		}
		if dest == nil {
			if dest, err = a.newSheetsClient(ctx, creds, transport); err != nil {
				return nil, err
			}
		}
	}

	a.service = n2s.NewSyncService(source, dest, a.checkpoints, a.db, a.formatter, a.logger, n2s.RealClock{}, n2s.UUIDGenerator{})
	a.service.SetPageSize(a.cfg.Notion.PageSize)
	return a.service, nil
}

// credentials prefers the environment and falls back to the sealed vault
// for anything missing.
func (a *App) credentials() (secrets.Credentials, error) {
	creds, err := secrets.FromEnv()
	if err != nil {
		return secrets.Credentials{}, err
	}

	if !creds.Complete() && a.vault.IsConfigured() {
		if a.opts.Passphrase == nil {
			return secrets.Credentials{}, errors.New("credentials are sealed but no passphrase is available (set N2S_PASSPHRASE)")
		}
		passphrase, err := a.opts.Passphrase()
		if err != nil {
			return secrets.Credentials{}, fmt.Errorf("reading passphrase: %w", err)
		}
		sealed, err := a.vault.Unseal(passphrase)
		if err != nil {
			return secrets.Credentials{}, err
		}
		creds = creds.Merge(sealed)
	}

	if err := creds.Validate(); err != nil {
		return secrets.Credentials{}, err
	}
	return creds, nil
}

// transport is the single limiter both API clients share, so one request is
// in flight across Notion and Google at any time.
func (a *App) transport() *ratelimit.Limiter {
	t := a.cfg.Transport
	return ratelimit.New(ratelimit.Options{
		MinInterval: t.MinInterval(),
		MaxRetries:  t.MaxRetries,
		RetryBase:   t.RetryBase(),
	})
}

func (a *App) newNotionClient(creds secrets.Credentials, limiter *ratelimit.Limiter) (*notion.Client, error) {
	c, err := notion.NewClient(notion.Config{
		Token:   creds.NotionToken,
		BaseURL: a.cfg.Notion.BaseURL,
		Version: a.cfg.Notion.Version,
		Limiter: limiter,
		Logger:  a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating notion client: %w", err)
	}
	return c, nil
}

func (a *App) newSheetsClient(ctx context.Context, creds secrets.Credentials, limiter *ratelimit.Limiter) (*sheets.Client, error) {
	c, err := sheets.NewClient(ctx, sheets.Config{
		CredentialsJSON: []byte(creds.GoogleServiceAccount),
		Limiter:         limiter,
		Logger:          a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating sheets client: %w", err)
	}
	return c, nil
}
