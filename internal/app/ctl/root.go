// Package ctl implements stratablogctl, the operator command line for
// maintenance tasks that run against the blog database without the server.
package ctl

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// runtime is what every subcommand works against.
type runtime struct {
	db     *mongo.Database
	logger *zap.Logger
	out    io.Writer
}

// opener connects to the database named by the root flags. The returned
// func releases everything the runtime holds.
type opener func(cmd *cobra.Command) (*runtime, func(), error)

type rootFlags struct {
	mongoURI string
	database string
	logFile  string
	logLevel string
	timeout  time.Duration
}

// Execute runs stratablogctl with os.Args.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCommand builds the command tree connected to MongoDB.
func NewRootCommand() *cobra.Command {
	flags := &rootFlags{}
	return newRootCommand(flags, mongoOpener(flags))
}

func newRootCommand(flags *rootFlags, open opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "stratablogctl",
		Short:         "Maintenance commands for a stratablog database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.mongoURI, "mongo-uri", envOr("STRATABLOG_MONGO_URI", "mongodb://localhost:27017"), "MongoDB connection URI")
	pf.StringVar(&flags.database, "database", envOr("STRATABLOG_MONGO_DATABASE", "stratablog"), "MongoDB database name")
	pf.StringVar(&flags.logFile, "log-file", "", "append logs to this file (rotated) instead of stderr")
	pf.StringVar(&flags.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pf.DurationVar(&flags.timeout, "timeout", 30*time.Second, "MongoDB connect timeout")

	root.AddCommand(
		newSeedAdminCommand(open),
		newEnsureSchemaCommand(open),
		newSetAdminCommand(open, true),
		newSetAdminCommand(open, false),
		newSetPasswordCommand(open),
		newAuditCommand(open),
		newRunJobCommand(open),
	)
	return root
}

func mongoOpener(flags *rootFlags) opener {
	return func(cmd *cobra.Command) (*runtime, func(), error) {
		logger, err := newLogger(flags.logFile, flags.logLevel, cmd.ErrOrStderr())
		if err != nil {
			return nil, nil, err
		}
		if err := wafflemongo.ValidateURI(flags.mongoURI); err != nil {
			return nil, nil, fmt.Errorf("invalid MongoDB URI: %w", err)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), flags.timeout)
		defer cancel()
		client, err := wafflemongo.ConnectWithPool(ctx, flags.mongoURI, flags.database, wafflemongo.DefaultPoolConfig())
		if err != nil {
			return nil, nil, fmt.Errorf("connect to MongoDB: %w", err)
		}

		rt := &runtime{db: client.Database(flags.database), logger: logger, out: cmd.OutOrStdout()}
		release := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(ctx); err != nil {
				logger.Warn("MongoDB disconnect failed", zap.Error(err))
			}
			_ = logger.Sync()
		}
		return rt, release, nil
	}
}

// withRuntime adapts a subcommand body to cobra's RunE, opening and
// releasing the runtime around it.
func withRuntime(open opener, fn func(ctx context.Context, rt *runtime, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		rt, release, err := open(cmd)
		if err != nil {
			return err
		}
		defer release()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return fn(ctx, rt, args)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
