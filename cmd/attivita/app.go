package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/apiclient"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/auth"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/autocomplete"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/config"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/datewindow"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/observability"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/reconcile"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/session"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/store"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/suppression"
)

var errUserRequired = errors.New("user id required (--user or ATTIVITA_USER_ID)")

var verboseFlag = &cli.BoolFlag{
	Name:  "verbose",
	Usage: "Enable debug logging",
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "attivita",
		Usage: "Manage daily activities and reimbursements",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "api-url",
				Usage: "Activity service base URL (default API_BASE_URL)",
			},
			&cli.StringFlag{
				Name:  "token",
				Usage: "Bearer token (default API_TOKEN, minted from JWT_SECRET when empty)",
			},
			&cli.StringFlag{
				Name:    "user",
				Aliases: []string{"u"},
				Usage:   "Owner of the activities (default ATTIVITA_USER_ID)",
			},
			&cli.StringFlag{
				Name:  "tenant",
				Usage: "Tenant used when minting a development token",
				Value: "dev",
			},
			&cli.StringFlag{
				Name:  "session-db",
				Usage: "SQLite file holding session storage (default SESSION_DB, empty keeps it in memory)",
			},
			verboseFlag,
		},
		Commands: []*cli.Command{
			listCommand(),
			watchCommand(),
			setCommand(),
			submitCommand(),
			addCommand(),
			deleteCommand(),
			clientsCommand(),
		},
	}
}

// env bundles the collaborators every subcommand needs.
type env struct {
	cfg        config.Config
	logger     *log.Logger
	api        *apiclient.Client
	store      *store.Store
	suppressed *suppression.Set
	catalog    *autocomplete.Catalog
	window     datewindow.Window
	closers    []func() error
}

func setup(ctx context.Context, cmd *cli.Command) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	overrideString(cmd, "api-url", &cfg.APIBaseURL)
	overrideString(cmd, "token", &cfg.APIToken)
	overrideString(cmd, "user", &cfg.UserID)
	overrideString(cmd, "session-db", &cfg.SessionDB)
	if cmd.Bool("verbose") {
		cfg.LogLevel = "debug"
	}
	if cfg.UserID == "" {
		return nil, errUserRequired
	}

	logger := observability.NewLogger("attivita", cfg.LogLevel, cfg.LogFormat)

	token := cfg.APIToken
	if token == "" {
		token, err = auth.IssueToken(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer},
			cfg.UserID, cmd.String("tenant"), 12*time.Hour, auth.ScopeAttivitaWrite)
		if err != nil {
			return nil, fmt.Errorf("mint token: %w", err)
		}
		logger.Debug("minted development token", "tenant", cmd.String("tenant"))
	}

	client, err := apiclient.New(cfg.APIBaseURL, token,
		apiclient.WithTimeout(cfg.APITimeout),
		apiclient.WithRateLimit(cfg.APIRateLimit),
		apiclient.WithLogger(logger.WithPrefix("apiclient")))
	if err != nil {
		return nil, err
	}

	e := &env{
		cfg:     cfg,
		logger:  logger,
		api:     client,
		store:   store.New(client),
		catalog: autocomplete.NewCatalog(client, autocomplete.WithLogger(logger.WithPrefix("autocomplete"))),
		window:  datewindow.Window{WorkingDay: cfg.WorkingDay()},
	}

	var storage session.Storage = session.NewMemoryStorage()
	if cfg.SessionDB != "" {
		sessionID := cfg.SessionID
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		sqlite, err := session.OpenSQLite(ctx, cfg.SessionDB, sessionID)
		if err != nil {
			return nil, err
		}
		storage = sqlite
		e.closers = append(e.closers, sqlite.Close)
	}
	e.suppressed = suppression.New(storage, suppression.WithLogger(logger.WithPrefix("suppression")))
	return e, nil
}

func overrideString(cmd *cli.Command, flag string, dst *string) {
	if cmd.IsSet(flag) {
		*dst = cmd.String(flag)
	}
}

func (e *env) Close() {
	for _, c := range e.closers {
		if err := c(); err != nil {
			e.logger.Warn("close", "err", err)
		}
	}
}

func (e *env) reconciler(opts ...reconcile.Option) *reconcile.Reconciler {
	cfg := reconcile.Config{
		UserID:            e.cfg.UserID,
		DebounceDelay:     e.cfg.DebounceDelay,
		DeleteSettleDelay: e.cfg.DeleteSettleDelay,
		LookbackDays:      e.cfg.LookbackDays,
		RequestTimeout:    e.cfg.APITimeout,
	}
	base := []reconcile.Option{
		reconcile.WithLogger(e.logger.WithPrefix("reconcile")),
		reconcile.WithWindow(e.window),
	}
	return reconcile.New(e.api, e.store, e.suppressed, cfg, append(base, opts...)...)
}

// mounted runs fn against a mounted table that has finished its first load. Pending
// edits are flushed and awaited before unmounting.
func (e *env) mounted(ctx context.Context, fn func(*reconcile.Reconciler) error, opts ...reconcile.Option) (reconcile.View, error) {
	r := e.reconciler(opts...)
	if err := r.Mount(ctx); err != nil {
		return reconcile.View{}, err
	}
	defer r.Unmount()

	if err := r.WaitIdle(ctx); err != nil {
		return reconcile.View{}, err
	}
	if v, err := r.View(); err != nil {
		return reconcile.View{}, err
	} else if v.Error != "" {
		return v, errors.New(v.Error)
	}

	if err := fn(r); err != nil {
		return reconcile.View{}, err
	}
	if err := r.Flush(); err != nil {
		return reconcile.View{}, err
	}
	if err := r.WaitIdle(ctx); err != nil {
		return reconcile.View{}, err
	}
	v, err := r.View()
	if err != nil {
		return reconcile.View{}, err
	}
	if v.Error != "" {
		return v, errors.New(v.Error)
	}
	return v, nil
}

func stdout(s string) {
	fmt.Fprintln(os.Stdout, s)
}
