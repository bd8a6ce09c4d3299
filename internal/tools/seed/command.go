package seed

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/quantumchem/quantumchem-backend/internal/config"
	"github.com/quantumchem/quantumchem-backend/internal/database"
	"github.com/quantumchem/quantumchem-backend/internal/tools/common"
	"github.com/quantumchem/quantumchem-backend/internal/tools/ui"
)

type options struct {
	envFile      string
	demoEmail    string
	demoName     string
	demoPassword string
	ci           bool
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{Use: "seed", Short: "Development account tooling"}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to env file")
	cmd.PersistentFlags().StringVar(&opts.demoEmail, "demo-email", "demo@quantumchem.app", "demo account email")
	cmd.PersistentFlags().StringVar(&opts.demoName, "demo-name", "Demo User", "demo account display name")
	cmd.PersistentFlags().StringVar(&opts.demoPassword, "demo-password", "Demo1234", "demo account password")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.AddCommand(newApplyCommand(opts), newDryRunCommand(opts), newPromotePendingCommand(opts))
	return cmd
}

func newApplyCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Create the demo sign-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			details, err := run(opts, "seed apply", func(ctx context.Context) ([]string, error) {
				_, db, err := loadConfigDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				if err := database.Seed(db, opts.demoEmail, opts.demoName, opts.demoPassword); err != nil {
					return nil, err
				}
				return []string{
					"demo account ensured: " + strings.ToLower(opts.demoEmail),
					"provider: manual, email verified, password never expires",
				}, nil
			})
			if opts.ci {
				common.PrintCIResult(err == nil, "seed apply", details, err)
			}
			if err != nil {
				os.Exit(3)
			}
			return nil
		},
	}
}

func newDryRunCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "dry-run",
		Short: "Show what seeding would do",
		RunE: func(cmd *cobra.Command, args []string) error {
			details, err := run(opts, "seed dry-run", func(ctx context.Context) ([]string, error) {
				if _, _, err := loadConfigDB(opts.envFile); err != nil {
					return nil, err
				}
				return []string{
					fmt.Sprintf("would ensure verified manual user: %s", strings.ToLower(opts.demoEmail)),
					"would skip creation if the email already has an account",
					"no mutation executed in dry-run mode",
				}, nil
			})
			if opts.ci {
				common.PrintCIResult(err == nil, "seed dry-run", details, err)
			}
			if err != nil {
				os.Exit(3)
			}
			return nil
		},
	}
}

// promote-pending stands in for the emailed verification link in local
// setups where MAIL_ENABLED is off.
func newPromotePendingCommand(opts *options) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "promote-pending",
		Short: "Promote a pending signup to a verified account",
		RunE: func(cmd *cobra.Command, args []string) error {
			details, err := run(opts, "seed promote-pending", func(ctx context.Context) ([]string, error) {
				if strings.TrimSpace(email) == "" {
					return nil, fmt.Errorf("email is required")
				}
				cfg, db, err := loadConfigDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				tempPassword, err := database.PromotePending(db, email, cfg.TempPasswordTTL)
				if err != nil {
					return nil, err
				}
				return []string{
					"promoted pending signup: " + strings.TrimSpace(strings.ToLower(email)),
					"temporary password: " + tempPassword,
					fmt.Sprintf("password valid for %s", cfg.TempPasswordTTL),
				}, nil
			})
			if opts.ci {
				common.PrintCIResult(err == nil, "seed promote-pending", details, err)
			}
			if err != nil {
				os.Exit(3)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "pending signup email to promote")
	return cmd
}

func run(opts *options, title string, fn func(context.Context) ([]string, error)) ([]string, error) {
	if opts.ci {
		return fn(context.Background())
	}
	return ui.Run(title, fn)
}

func loadConfigDB(envFile string) (*config.Config, *gorm.DB, error) {
	if err := common.LoadEnvFile(envFile); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}
