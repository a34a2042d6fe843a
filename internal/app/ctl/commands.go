package ctl

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dalemusser/stratablog/internal/app/blog"
	"github.com/dalemusser/stratablog/internal/app/store/audit"
	userstore "github.com/dalemusser/stratablog/internal/app/store/users"
	"github.com/dalemusser/stratablog/internal/app/system/auditlog"
	"github.com/dalemusser/stratablog/internal/app/system/indexes"
	"github.com/dalemusser/stratablog/internal/app/system/seeding"
	"github.com/dalemusser/stratablog/internal/app/system/tasks"
	"github.com/dalemusser/stratablog/internal/app/system/validators"
	"github.com/dalemusser/stratablog/internal/domain/models"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// source is recorded on audit events written by this tool.
const source = "stratablogctl"

// auditLogger records admin changes to the database and the tool log.
func (rt *runtime) auditLogger() *auditlog.Logger {
	return auditlog.New(audit.New(rt.db), rt.logger, auditlog.Config{Admin: auditlog.All})
}

func (rt *runtime) identity() *blog.Identity {
	return blog.NewIdentity(userstore.New(rt.db), rt.logger)
}

func newSeedAdminCommand(open opener) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create the admin account if it does not exist",
		Args:  cobra.NoArgs,
		RunE: withRuntime(open, func(ctx context.Context, rt *runtime, _ []string) error {
			u, created, err := seeding.SeedAdmin(ctx, rt.identity(), password, source, rt.auditLogger(), rt.logger)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(rt.out, "created admin user %s (%s)\n", u.Username, u.ID.Hex())
			} else {
				fmt.Fprintf(rt.out, "admin user %s already exists\n", u.Username)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&password, "password", models.DefaultAdminPassword, "password for a newly created admin")
	return cmd
}

func newEnsureSchemaCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:     "ensure-schema",
		Aliases: []string{"ensure-indexes"},
		Short:   "Create collections, validators and indexes",
		Args:    cobra.NoArgs,
		RunE: withRuntime(open, func(ctx context.Context, rt *runtime, _ []string) error {
			if err := validators.EnsureAll(ctx, rt.db, rt.logger); err != nil {
				return fmt.Errorf("validators: %w", err)
			}
			if err := indexes.EnsureAll(ctx, rt.db); err != nil {
				return fmt.Errorf("indexes: %w", err)
			}
			fmt.Fprintln(rt.out, "schema ensured")
			return nil
		}),
	}
}

func newSetAdminCommand(open opener, grant bool) *cobra.Command {
	use, short, event := "demote <username>", "Revoke admin rights", audit.EventAdminRevoked
	if grant {
		use, short, event = "promote <username>", "Grant admin rights", audit.EventAdminGranted
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(open, func(ctx context.Context, rt *runtime, args []string) error {
			u, err := rt.identity().SetAdmin(ctx, args[0], grant)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			rt.auditLogger().AdminChanged(ctx, event, u.ID, source)
			fmt.Fprintf(rt.out, "%s is_admin=%t\n", u.Username, u.IsAdmin)
			return nil
		}),
	}
}

func newSetPasswordCommand(open opener) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "set-password <username>",
		Short: "Replace a user's password",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(open, func(ctx context.Context, rt *runtime, args []string) error {
			if password == "" {
				return errors.New("--password is required")
			}
			u, err := rt.identity().SetPassword(ctx, args[0], password)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			rt.auditLogger().AdminChanged(ctx, audit.EventPasswordReset, u.ID, source)
			fmt.Fprintf(rt.out, "password updated for %s\n", u.Username)
			return nil
		}),
	}
	cmd.Flags().StringVar(&password, "password", "", "the new password")
	return cmd
}

func newAuditCommand(open opener) *cobra.Command {
	var (
		category  string
		eventType string
		since     time.Duration
		limit     int64
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List recent audit events",
		Args:  cobra.NoArgs,
		RunE: withRuntime(open, func(ctx context.Context, rt *runtime, _ []string) error {
			filter := audit.QueryFilter{Category: category, EventType: eventType, Limit: limit}
			if since > 0 {
				start := time.Now().Add(-since)
				filter.StartTime = &start
			}
			events, err := audit.New(rt.db).Query(ctx, filter)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(rt.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tCATEGORY\tEVENT\tUSER\tIP\tDETAILS")
			for _, e := range events {
				user := "-"
				if e.UserID != nil {
					user = e.UserID.Hex()
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.CreatedAt.Format(time.RFC3339), e.Category, e.EventType, user, e.IP, details(e.Details))
			}
			return tw.Flush()
		}),
	}
	cmd.Flags().StringVar(&category, "category", "", "filter by category (auth, content, admin)")
	cmd.Flags().StringVar(&eventType, "type", "", "filter by event type")
	cmd.Flags().DurationVar(&since, "since", 0, "only events newer than this (e.g., 24h)")
	cmd.Flags().Int64Var(&limit, "limit", 50, "maximum events to list")
	return cmd
}

func details(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	parts := make([]string, 0, len(m))
	for k, v := range m {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}

func newRunJobCommand(open opener) *cobra.Command {
	var retention time.Duration
	cmd := &cobra.Command{
		Use:   "run-job <name>",
		Short: "Run a background job once (audit-retention)",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(open, func(ctx context.Context, rt *runtime, args []string) error {
			runner := tasks.New(rt.logger)
			runner.Register(tasks.AuditRetentionJob(rt.db, retention, rt.logger))

			if err := runner.RunOnce(ctx, args[0]); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			rt.logger.Info("job finished", zap.String("job", args[0]))
			fmt.Fprintf(rt.out, "%s done\n", args[0])
			return nil
		}),
	}
	cmd.Flags().DurationVar(&retention, "retention", 90*24*time.Hour, "audit-retention: delete events older than this")
	return cmd
}
