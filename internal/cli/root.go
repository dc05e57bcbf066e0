package cli

import (
	"log/slog"
	"time"

	"github.com/alexanderramin/timeclock/internal/clock"
	"github.com/alexanderramin/timeclock/internal/service"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// App holds references to all service interfaces used by CLI commands.
type App struct {
	Engine  service.SessionEngine
	Limiter service.Limiter
	Queries service.TimerQueries
	Items   service.ItemService
	Grants  service.GrantService
	Authz   service.GrantChecker
	Auditor service.Auditor
	Sweeper service.Sweeper

	Clock  clock.Clock
	Retry  service.RetryPolicy
	Logger *slog.Logger
}

// BootstrapOptions are the flags read before the App exists. main parses
// them ahead of cobra; the root command declares them so help and
// validation see them too.
type BootstrapOptions struct {
	ConfigPath string
	DBPath     string
	LogLevel   string
	NoColor    bool
}

// BindBootstrapFlags registers the bootstrap flags on fs.
func BindBootstrapFlags(fs *pflag.FlagSet, opts *BootstrapOptions) {
	fs.StringVar(&opts.ConfigPath, "config", "", "Path to a TOML config file")
	fs.StringVar(&opts.DBPath, "db", "", "SQLite database path (overrides config and TIMECLOCK_DB)")
	fs.StringVar(&opts.LogLevel, "log-level", "", "Log level: debug, info, warn or error")
	fs.BoolVar(&opts.NoColor, "no-color", false, "Disable colored output")
}

// NewRootCmd creates the top-level "timeclock" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "timeclock",
		Short:         "Work-session time tracking for tasks, bugs and QA reviews",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	BindBootstrapFlags(root.PersistentFlags(), &BootstrapOptions{})

	root.AddCommand(
		newItemCmd(app),
		newStartCmd(app),
		newPauseCmd(app),
		newResumeCmd(app),
		newFinishCmd(app),
		newForceFinishCmd(app),
		newReopenCmd(app),
		newStatusCmd(app),
		newHistoryCmd(app),
		newActiveCmd(app),
		newGrantCmd(app),
		newSweepCmd(app),
		newServeCmd(app),
		newAuditCmd(app),
	)

	return root
}

func (a *App) currentTime() time.Time {
	return clock.OrSystem(a.Clock).Now()
}
