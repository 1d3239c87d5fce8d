// Package cli implements the hubviewer command line client.
package cli

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/atinyakov/HubViewer/internal/client"
	"github.com/atinyakov/HubViewer/internal/client/storage"
	"github.com/atinyakov/HubViewer/internal/db"
	"github.com/atinyakov/HubViewer/internal/logger"
	"github.com/atinyakov/HubViewer/internal/repository"
)

// stateRetention is how long soft-deleted state rows are kept in PostgreSQL.
const stateRetention = 30 * 24 * time.Hour

// Options holds the global flags and the state shared by all commands.
type Options struct {
	URL      string
	State    string
	DSN      string
	CAFile   string
	Profile  string
	Timeout  time.Duration
	LogLevel string

	log   *zap.Logger
	store *storage.Store
	db    *sql.DB
}

// NewRootCmd builds the hubviewer command tree.
func NewRootCmd(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:               "hubviewer",
		Short:             "Browse Docker Hub repositories and tags through a HubViewer server",
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error { return o.open(cmd.Context()) },
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&o.URL, "url", envOr("HUBVIEWER_URL", "https://localhost:8443"), "HubViewer server URL")
	pf.StringVar(&o.State, "state", defaultStatePath(), "client state file")
	pf.StringVar(&o.DSN, "dsn", os.Getenv("HUBVIEWER_DSN"), "PostgreSQL DSN, stores client state in the database instead of --state")
	pf.StringVar(&o.Profile, "profile", "default", "state profile inside the database")
	pf.StringVar(&o.CAFile, "ca", os.Getenv("HUBVIEWER_CA"), "CA certificate trusted for the server")
	pf.DurationVar(&o.Timeout, "timeout", client.DefaultTimeout, "timeout of a single request")
	pf.StringVar(&o.LogLevel, "log-level", "warn", "log level")

	cmd.AddCommand(
		NewLoginCmd(o),
		NewLogoutCmd(o),
		NewAccountsCmd(o),
		NewUseCmd(o),
		NewRemoveCmd(o),
		NewReposCmd(o),
		NewTagsCmd(o),
		NewTagCmd(o),
		NewConfigCmd(o),
	)
	return cmd
}

// Close releases the state backend.
func (o *Options) Close() error {
	if o.log != nil {
		_ = o.log.Sync()
	}
	if o.db != nil {
		return o.db.Close()
	}
	return nil
}

func (o *Options) open(ctx context.Context) error {
	if o.store != nil {
		return nil
	}

	lg := logger.New()
	if err := lg.Init(o.LogLevel); err != nil {
		return err
	}
	o.log = lg.Log

	var kv storage.KV
	if o.DSN != "" {
		conn, err := db.InitPostgres(o.DSN)
		if err != nil {
			return err
		}
		o.db = conn
		if _, err := db.PurgeDeletedState(ctx, conn, time.Now().Add(-stateRetention), o.log); err != nil {
			o.log.Warn("failed to purge deleted client state", zap.Error(err))
		}
		kv = repository.NewPostgresStateRepository(conn, o.Profile)
	} else {
		kv = storage.NewFileKV(o.State)
	}

	store, err := storage.Open(ctx, kv, storage.WithLogger(o.log))
	if err != nil {
		return err
	}
	o.store = store
	return nil
}

// newClient returns an API client. With requireAccount it sends the active
// account and fails when there is none.
func (o *Options) newClient(requireAccount bool) (*client.Client, error) {
	hc, err := client.NewHTTPClient(o.CAFile)
	if err != nil {
		return nil, err
	}
	opts := []client.Option{
		client.WithHTTPClient(hc),
		client.WithTimeout(o.Timeout),
		client.WithLogger(o.log),
	}
	if requireAccount {
		acc, ok := o.store.Config().ActiveAccount()
		if !ok {
			return nil, client.ErrNoActiveAccount
		}
		opts = append(opts, client.WithAccount(acc.Data))
	}
	return client.New(o.URL, opts...), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "hubviewer.json"
	}
	return filepath.Join(dir, "hubviewer", "state.json")
}
