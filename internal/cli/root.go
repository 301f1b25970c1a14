package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"gattguard/internal/guard"
	"gattguard/pkg/config"
	gerrors "gattguard/pkg/errors"
	"gattguard/pkg/logger"
	"gattguard/pkg/platform"

	"github.com/spf13/cobra"
)

// ExitError ends the process with Code without printing anything
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

type rootOptions struct {
	configPath  string
	projectDir  string
	jsonOutput  bool
	logLevel    string
	mode        string
	profile     string
	header      string
	compiler    string
	interpreter string
}

// session is everything a command needs once configuration is resolved
type session struct {
	config   *config.Config
	logger   *logger.Logger
	platform platform.Platform
	guard    *guard.Guard
}

// NewRootCmd creates the gattguard command tree
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "gattguard",
		Short: "Keep a generated GATT header in step with its profile",
		Long: `gattguard regenerates a Bluetooth GATT header with btstack's compile_gatt.py
before a firmware build.

Call it from the build tool's pre-build hook:
  - Regenerate when stale: gattguard run
  - Regenerate every build: gattguard run --mode always
  - Report without running: gattguard check`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "",
		"Path to gattguard.yml (searches common locations if not specified)")
	flags.StringVar(&opts.projectDir, "project-dir", "",
		"Build root the profile and header paths are relative to")
	flags.BoolVar(&opts.jsonOutput, "json", false, "Output in JSON format")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&opts.mode, "mode", "", "When to regenerate: stale or always")
	flags.StringVar(&opts.profile, "profile", "", "GATT profile source")
	flags.StringVar(&opts.header, "header", "", "Generated header")
	flags.StringVar(&opts.compiler, "compiler", "", "Path to compile_gatt.py")
	flags.StringVar(&opts.interpreter, "interpreter", "", "Interpreter to run the compiler with, e.g. python3")

	rootCmd.AddCommand(newRunCmd(opts))
	rootCmd.AddCommand(newCheckCmd(opts))
	rootCmd.AddCommand(newVersionCmd(opts))

	return rootCmd
}

// Execute runs the root command. SIGINT and SIGTERM cancel a running
// compiler.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return NewRootCmd().ExecuteContext(ctx)
}

// ReportError prints err for the build log and returns the exit code to use
func ReportError(w io.Writer, err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
	if classified := gerrors.ClassifyError(err); classified != nil && classified.Category != gerrors.CategoryUnknown {
		_, _ = fmt.Fprintf(w, "%s\n", classified.UserMsg)
	}
	return 1
}

// newSession loads configuration, applies flag overrides and builds the
// guard. Validation runs once, after flags, so a flag can correct a bad
// file or environment value.
func (o *rootOptions) newSession(cmd *cobra.Command) (*session, error) {
	cfg, source, err := config.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}

	o.applyFlags(cmd, cfg)
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, gerrors.NewConfigError("logging", "level", err)
	}
	log := logger.NewWithConfig(logger.Config{
		Level:  level,
		Output: cmd.ErrOrStderr(),
		Format: cfg.Logging.Format,
		Mode:   "gattguard",
	})
	log.Debug("configuration loaded", "source", source)

	p := platform.NewPlatform()

	home, err := p.UserHomeDir()
	if err != nil {
		log.Debug("home directory unknown", "error", err)
		home = ""
	}

	compiler, err := cfg.CompilerPath(home)
	if err != nil {
		return nil, err
	}

	mode, err := guard.ParseMode(cfg.Mode)
	if err != nil {
		return nil, gerrors.NewConfigError("guard", "mode", err)
	}

	paths := guard.ResolvePaths(cfg.ProjectDir, guard.Paths{
		Profile:  cfg.Profile,
		Header:   cfg.Header,
		Compiler: compiler,
	})

	g, err := guard.NewGuard(p, log, guard.Options{
		Paths:       paths,
		Mode:        mode,
		Interpreter: cfg.Interpreter,
	})
	if err != nil {
		return nil, err
	}

	return &session{config: cfg, logger: log, platform: p, guard: g}, nil
}

func (o *rootOptions) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	overrides := []struct {
		flag  string
		value string
		field *string
	}{
		{"project-dir", o.projectDir, &cfg.ProjectDir},
		{"log-level", o.logLevel, &cfg.Logging.Level},
		{"mode", o.mode, &cfg.Mode},
		{"profile", o.profile, &cfg.Profile},
		{"header", o.header, &cfg.Header},
		{"compiler", o.compiler, &cfg.Compiler},
		{"interpreter", o.interpreter, &cfg.Interpreter},
	}

	for _, ov := range overrides {
		if cmd.Flags().Changed(ov.flag) {
			*ov.field = ov.value
		}
	}
}
