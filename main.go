package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"

	"github.com/monograph/monograph/internal/mgauth"
	"github.com/monograph/monograph/internal/mgbackup"
	"github.com/monograph/monograph/internal/mgcache"
	"github.com/monograph/monograph/internal/mgstore"
	"github.com/monograph/monograph/internal/util/syncutil"
)

func main() {
	time.Local = time.UTC

	rootCmd := &cobra.Command{
		Use:   "monograph",
		Short: "Single-author content server",
		Long: strings.TrimSpace(`
Monograph is a single-author content server: posts written in markdown, stored
in SQLite, served as plain HTML, with a blogroll of followed feeds refreshed
on a schedule.

Running with no arguments starts the server.
			`),
		Example: strings.TrimSpace(`
# start the server listening on $PORT
monograph serve

# generate a session-signing secret
monograph secret
		`),
		Run: func(cmd *cobra.Command, args []string) {
			if err := runServe(); err != nil {
				abortErr(err)
			}
		},
	}

	// monograph secret
	{
		cmd := &cobra.Command{
			Use:   "secret",
			Short: "Generate a session-signing secret",
			Long: strings.TrimSpace(`
Generates a new random secret of the kind used to sign session cookies. The
server manages its own secret in production, so this exists for cases where
one has to be provisioned by hand, like seeding a database out of band.
			`),
			Run: func(cmd *cobra.Command, args []string) {
				runSecret()
			},
		}
		rootCmd.AddCommand(cmd)
	}

	// monograph serve
	{
		cmd := &cobra.Command{
			Use:   "serve",
			Short: "Start the content server",
			Long: strings.TrimSpace(`
Starts the server, binding to $PORT (default 8000). Configuration comes
entirely from the environment; see the Config struct for the full list of
variables.
			`),
			Run: func(cmd *cobra.Command, args []string) {
				if err := runServe(); err != nil {
					abortErr(err)
				}
			},
		}
		rootCmd.AddCommand(cmd)
	}

	if err := rootCmd.Execute(); err != nil {
		abortErr(err)
	}
}

func abort(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

func abortErr(err error) {
	abort("error: %v", err)
}

func runSecret() {
	secret := mgauth.GenerateSecret()
	fmt.Printf("%s\n", base64.StdEncoding.EncodeToString(secret))
}

func runServe() error {
	logger := logrus.New()

	var config Config
	if err := env.Parse(&config); err != nil {
		return xerrors.Errorf("error parsing env config: %w", err)
	}

	ctx := context.Background()

	store, err := mgstore.Open(logger, config.Database)
	if err != nil {
		return err
	}

	salt, err := obtainSalt(ctx, config, store)
	if err != nil {
		return xerrors.Errorf("error obtaining session salt: %w", err)
	}

	sources, err := blogrollSources(ctx, logger, store)
	if err != nil {
		return xerrors.Errorf("error reading blogroll sources: %w", err)
	}

	var backup mgbackup.Trigger = mgbackup.NopTrigger{}
	if config.BackupURL != "" {
		backup = mgbackup.NewWebhookTrigger(logger, config.BackupURL, config.BackupToken)
	}

	serverCtx := &ServerContext{
		Backup: backup,
		Cache:  syncutil.NewGuarded(mgcache.NewFeedCache(logger, sources)),
		Config: config,
		Logger: logger,
		Salt:   salt,
		Store:  syncutil.NewGuarded(store),
	}

	scheduler := scheduleFeedRefresh(logger, serverCtx.Cache)
	defer scheduler.Stop()

	server := NewServer(logger, serverCtx)
	return server.Start()
}
