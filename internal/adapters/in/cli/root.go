// Package cli implements the secretvm command line.
// Cobra commands gather parameters, call the portal API client and report
// through the execution harness.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/scrtlabs/secretvm-cli/internal/adapters/out/apiclient"
	"github.com/scrtlabs/secretvm-cli/internal/adapters/out/session"
	"github.com/scrtlabs/secretvm-cli/internal/config"
	"github.com/scrtlabs/secretvm-cli/internal/domain"
	"github.com/scrtlabs/secretvm-cli/pkg/logger"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// SetVersionInfo sets the version information for the CLI.
func SetVersionInfo(version, commit, date string) {
	Version = version
	Commit = commit
	BuildDate = date
}

// Execute runs the CLI and returns the process exit code. Command failures
// are reported by the harness and still exit 0; only argument errors exit 1.
func Execute(version, commit, date string) int {
	SetVersionInfo(version, commit, date)

	log := logger.GetLogger()
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		log.Warn("could not load config file, using defaults", "error", err)
		cfg = config.Default()
	}
	log.Configure(cfg.LogLevel)

	store := session.NewStore(session.DefaultPath(), log)
	app := NewApp(
		WithFactory(apiclient.NewFactory(cfg.ServerURL, store, log)),
		WithDefaultRegistry(cfg.DefaultRegistry),
		WithLogger(log),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd(app).ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, cliRenderError(err.Error()))
		return 1
	}
	return 0
}

// NewRootCmd creates the root command. Global options are resolved into a
// before any subcommand runs.
func NewRootCmd(a *App) *cobra.Command {
	var (
		interactive bool
		apiKey      string
	)

	rootCmd := &cobra.Command{
		Use:   "secretvm-cli",
		Short: "CLI tool for the SecretAI developer portal",
		Long: `secretvm-cli manages confidential virtual machines on the SecretAI
developer portal: sign in, create VMs from a docker-compose file, and
start, stop, edit, inspect or remove them.

Without -i every command prints exactly one JSON line on stdout:
{"status":"success","result":...} or {"status":"error","log":...}.`,
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.opts = domain.GlobalOptions{
				Interactive: interactive,
				APIKey:      a.resolveAPIKey(apiKey),
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&interactive, "interactive", "i", false, "Enable interactive mode with prompts and human-readable output")
	flags.StringVarP(&apiKey, "api-key", "k", "", "API key for authentication (default $"+config.EnvAPIKey+", then the OS keyring)")

	rootCmd.SetOut(a.stdout)
	rootCmd.SetErr(a.stderr)

	rootCmd.AddCommand(newAuthCmd(a))
	rootCmd.AddCommand(newStatusCmd(a))
	rootCmd.AddCommand(newVMCmd(a))
	rootCmd.AddCommand(newVersionCmd(a))

	return rootCmd
}

// resolveAPIKey picks the API key: flag, then environment, then keyring.
func (a *App) resolveAPIKey(flagValue string) string {
	if key := strings.TrimSpace(flagValue); key != "" {
		return key
	}
	if key := strings.TrimSpace(os.Getenv(config.EnvAPIKey)); key != "" {
		return key
	}
	return a.keys.Lookup()
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
}

// newVersionCmd creates the version command.
func newVersionCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), a, func(context.Context) (versionInfo, error) {
				return versionInfo{Version: Version, Commit: Commit, BuildDate: BuildDate}, nil
			}, func(w io.Writer, v versionInfo) {
				_, _ = color.New(color.FgGreen).Fprintf(w, "secretvm-cli %s\n", v.Version)
				_, _ = fmt.Fprintf(w, "Commit: %s\n", v.Commit)
				_, _ = fmt.Fprintf(w, "Build Date: %s\n", v.BuildDate)
			})
		},
	}
}
