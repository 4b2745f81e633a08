package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/infinitetech/repairdesk/internal/app"
	"github.com/infinitetech/repairdesk/internal/migration"
	"github.com/infinitetech/repairdesk/internal/seeder"
	"github.com/infinitetech/repairdesk/internal/service/booking"
	"github.com/infinitetech/repairdesk/pkg/errorbank"
)

// NewRootCommand builds the root repairdesk CLI command.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "repairdesk",
		Short: "Repair booking service and operator toolkit",
	}

	root.AddCommand(newStartCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newSeedCmd())
	root.AddCommand(newWorkerCmd())
	root.AddCommand(newBookingsCmd())

	return root
}

// Execute runs the repairdesk CLI.
func Execute() error {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	return nil
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "start",
		Aliases: []string{"run"},
		Short:   "Run the HTTP and gRPC services",
		RunE: func(cmd *cobra.Command, args []string) error {
			application := fx.New(app.Module)
			if err := application.Start(cmd.Context()); err != nil {
				return err
			}
			<-cmd.Context().Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return application.Stop(stopCtx)
		},
	}
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			var mig *migration.Migrator
			opts := fx.Options(app.Core, migration.Module, fx.Populate(&mig))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := mig.Up(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			all, _ := cmd.Flags().GetBool("all")
			var mig *migration.Migrator
			opts := fx.Options(app.Core, migration.Module, fx.Populate(&mig))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := mig.Down(ctx, steps, all); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations rolled back")
				return nil
			})
		},
	}
	downCmd.Flags().Int("steps", 1, "Number of migration steps to rollback")
	downCmd.Flags().Bool("all", false, "Rollback all applied migrations")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			var mig *migration.Migrator
			opts := fx.Options(app.Core, migration.Module, fx.Populate(&mig))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				version, err := mig.Version(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
				return nil
			})
		},
	}

	cmd.AddCommand(upCmd, downCmd, statusCmd)
	return cmd
}

func newSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create demo bookings",
		RunE: func(cmd *cobra.Command, args []string) error {
			count, _ := cmd.Flags().GetInt("count")
			seed, _ := cmd.Flags().GetUint64("seed")
			var s *seeder.Seeder
			opts := fx.Options(app.Core, seeder.Module, fx.Populate(&s))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if seed != 0 {
					s.WithSeed(seed)
				}
				res, err := s.Bookings(ctx, count)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d bookings (%d archived)\n", res.Created, res.Archived)
				return nil
			})
		},
	}
	cmd.Flags().Int("count", 25, "Number of bookings to create")
	cmd.Flags().Uint64("seed", 0, "Random seed for reproducible data (0 picks one)")
	return cmd
}

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Manage background workers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run worker engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			application := fx.New(app.Worker)
			if err := application.Start(cmd.Context()); err != nil {
				return err
			}
			<-cmd.Context().Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return application.Stop(stopCtx)
		},
	})
	return cmd
}

func newBookingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookings",
		Short: "Operate on bookings",
	}

	archiveCmd := &cobra.Command{
		Use:   "archive <id>...",
		Short: "Move bookings to the archive",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			var svc *booking.Service
			opts := fx.Options(app.Core, fx.Populate(&svc))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				var failed int
				for _, id := range ids {
					archived, err := svc.Archive(ctx, id)
					if err != nil {
						failed++
						fmt.Fprintln(cmd.ErrOrStderr(), archiveFailure(id, err))
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\tarchived at %s\n", id, archived.TrackingID, archived.ArchivedAt.Format(time.RFC3339))
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d bookings not archived", failed, len(ids))
				}
				return nil
			})
		},
	}

	findCmd := &cobra.Command{
		Use:   "find [query]",
		Short: "List recent bookings or search both tables",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rawView, _ := cmd.Flags().GetString("view")
			limit, _ := cmd.Flags().GetInt("limit")
			view, err := booking.ParseView(rawView)
			if err != nil {
				return err
			}
			q := booking.Query{View: view, Limit: limit}
			if len(args) == 1 {
				q.Text = args[0]
			}

			var svc *booking.Service
			opts := fx.Options(app.Core, fx.Populate(&svc))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				records, err := svc.Find(ctx, q)
				if err != nil {
					return err
				}
				for _, r := range records {
					where := "active"
					if r.Archived() {
						where = "archived " + r.ArchivedAt.Format(time.RFC3339)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%s\t%s\t%s\n",
						r.ID, r.TrackingID, r.CustomerName, r.Status, r.CreatedAt.Format(time.RFC3339), where)
				}
				return nil
			})
		},
	}
	findCmd.Flags().String("view", string(booking.ViewActive), "Listing to show without a query: active or archived")
	findCmd.Flags().Int("limit", 50, "Maximum rows (capped at 50)")

	cmd.AddCommand(archiveCmd, findCmd)
	return cmd
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid booking id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func runWithApp(ctx context.Context, opts fx.Option, fn func(context.Context) error) error {
	application := fx.New(opts, fx.NopLogger)
	if err := application.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = application.Stop(stopCtx)
	}()
	return fn(ctx)
}

func archiveFailure(id int64, err error) string {
	if errorbank.Is(err, errorbank.KindNotFound) {
		return fmt.Sprintf("%d: no active booking (missing or already archived)", id)
	}
	return fmt.Sprintf("%d: %v", id, err)
}
