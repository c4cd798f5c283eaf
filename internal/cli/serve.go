package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/gridsync/internal/remote"
	"github.com/roach88/gridsync/internal/remote/pgstore"
	"github.com/roach88/gridsync/internal/remote/sqlitestore"
	"github.com/roach88/gridsync/internal/server"
)

// Storage backends for the serve command.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr        string
	Grid        string
	Dataset     string
	IDField     string
	Backend     string
	Database    string
	DatabaseURL string
	JWTSecret   string
	LogRequests bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the batch API for one dataset",
		Long: `Serve batch-read, batch-create, batch-update and batch-delete for one
dataset over HTTP.

The dataset name and id field come from --grid or from --dataset/--id-field.
Rows are kept in SQLite (default), PostgreSQL or memory. With a JWT secret
(--jwt-secret or GRIDSYNC_JWT_SECRET) every batch endpoint requires a bearer
token; see "gridsync token".

Examples:
  gridsync serve --grid ./grids/karyawan.cue --db ./karyawan.db
  gridsync serve --grid ./grids/karyawan.cue --backend postgres --database-url postgres://...
  gridsync serve --dataset people --backend memory --addr :9090`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&opts.Grid, "grid", "", "grid definition (.cue file or directory)")
	cmd.Flags().StringVar(&opts.Dataset, "dataset", "", "dataset name (overrides the grid name)")
	cmd.Flags().StringVar(&opts.IDField, "id-field", "", "JSON field carrying row ids (overrides the grid)")
	cmd.Flags().StringVar(&opts.Backend, "backend", BackendSQLite, "storage backend (sqlite|postgres|memory)")
	cmd.Flags().StringVar(&opts.Database, "db", "gridsync.db", "SQLite database path")
	cmd.Flags().StringVar(&opts.DatabaseURL, "database-url", "", "PostgreSQL URL (env "+EnvDatabaseURL+")")
	cmd.Flags().StringVar(&opts.JWTSecret, "jwt-secret", "", "require bearer tokens signed with this secret (env "+EnvJWTSecret+")")
	cmd.Flags().BoolVar(&opts.LogRequests, "log-requests", false, "log every request")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	grid, err := loadGrid(opts.Grid, opts.Dataset, opts.IDField)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	dataset := grid.Name

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := opts.openBackend(ctx, dataset, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer closeStore()

	srvOpts := []server.Option{
		server.WithIDField(grid.IDField),
		server.WithLogger(logger),
		server.WithRequestLogging(opts.LogRequests),
	}
	if secret := firstNonEmpty(opts.JWTSecret, os.Getenv(EnvJWTSecret)); secret != "" {
		srvOpts = append(srvOpts, server.WithAuth(server.NewJWTAuth(secret)))
	} else {
		logger.Warn("serving without authentication", "hint", "set "+EnvJWTSecret)
	}

	srv := server.New(dataset, store, srvOpts...)
	if err := srv.ListenAndServe(ctx, opts.Addr); err != nil {
		return WrapExitError(ExitFailure, "server stopped", err)
	}
	return nil
}

// openBackend opens the configured store. The returned func releases it.
func (o *ServeOptions) openBackend(ctx context.Context, dataset string, logger *slog.Logger) (remote.Store, func(), error) {
	switch o.Backend {
	case BackendMemory:
		logger.Info("using in-memory store", "dataset", dataset)
		return remote.NewMemoryStore(nil), func() {}, nil

	case BackendSQLite:
		logger.Info("opening database", "path", o.Database, "dataset", dataset)
		st, err := sqlitestore.Open(o.Database, dataset)
		if err != nil {
			return nil, nil, err
		}
		return st, func() {
			if err := st.Close(); err != nil {
				logger.Error("error closing database", "error", err)
			}
		}, nil

	case BackendPostgres:
		url := firstNonEmpty(o.DatabaseURL, os.Getenv(EnvDatabaseURL))
		if url == "" {
			return nil, nil, fmt.Errorf("postgres backend needs --database-url or %s", EnvDatabaseURL)
		}
		logger.Info("connecting to postgres", "dataset", dataset)
		st, err := pgstore.Connect(ctx, pgstore.Config{DatabaseURL: url, Logger: logger}, dataset)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q (want %s, %s or %s)", o.Backend, BackendSQLite, BackendPostgres, BackendMemory)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
