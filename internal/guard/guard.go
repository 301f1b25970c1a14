// Package guard keeps a generated GATT header in step with its profile
// source. A Guard decides whether the header needs regenerating and, when it
// does, runs the btstack GATT compiler through an Environment supplied by the
// caller.
package guard

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gattguard/pkg/config"
	gerrors "gattguard/pkg/errors"
	"gattguard/pkg/logger"
	"gattguard/pkg/platform"
)

//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 -generate

// Environment is the build-environment handle the guard runs commands in.
// Execute blocks until the command exits and returns an error for a
// non-zero exit or a command that could not be started.
//
//counterfeiter:generate . Environment
type Environment interface {
	Execute(ctx context.Context, name string, args ...string) error
}

// Mode selects when the compiler runs
type Mode string

const (
	ModeAlways Mode = config.ModeAlways
	ModeStale  Mode = config.ModeStale
)

// ParseMode converts a configured mode name into a Mode
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeAlways:
		return ModeAlways, nil
	case ModeStale:
		return ModeStale, nil
	default:
		return "", fmt.Errorf("%w: %q", gerrors.ErrInvalidMode, s)
	}
}

// Reason explains a Decision
type Reason string

const (
	ReasonAlways        Reason = "mode-always"
	ReasonHeaderMissing Reason = "header-missing"
	ReasonSourceNewer   Reason = "source-newer"
	ReasonUpToDate      Reason = "up-to-date"
)

// Paths locates the profile source, the generated header and the compiler
type Paths struct {
	Profile  string `json:"profile"`
	Header   string `json:"header"`
	Compiler string `json:"compiler"`
}

// ResolvePaths joins relative profile and header paths onto projectDir. The
// compiler is joined only when it contains a path separator; a bare name is
// left for PATH lookup.
func ResolvePaths(projectDir string, p Paths) Paths {
	join := func(path string) string {
		if path == "" || filepath.IsAbs(path) || projectDir == "" {
			return path
		}
		return filepath.Join(projectDir, path)
	}

	resolved := Paths{
		Profile:  join(p.Profile),
		Header:   join(p.Header),
		Compiler: p.Compiler,
	}
	if strings.ContainsRune(p.Compiler, '/') || strings.ContainsRune(p.Compiler, filepath.Separator) {
		resolved.Compiler = join(p.Compiler)
	}
	return resolved
}

// Decision is the outcome of a freshness check. Modification times are set
// for the files that were inspected.
type Decision struct {
	Regenerate     bool       `json:"regenerate"`
	Reason         Reason     `json:"reason"`
	Mode           Mode       `json:"mode"`
	Profile        string     `json:"profile"`
	Header         string     `json:"header"`
	ProfileModTime *time.Time `json:"profile_mod_time,omitempty"`
	HeaderModTime  *time.Time `json:"header_mod_time,omitempty"`
}

// Options configures a Guard
type Options struct {
	Paths       Paths
	Mode        Mode
	Interpreter string
}

// Guard regenerates a GATT header when it is out of date
type Guard struct {
	os          platform.OSOperations
	logger      *logger.Logger
	paths       Paths
	mode        Mode
	interpreter string
}

// NewGuard creates a guard for the given paths and mode
func NewGuard(osOps platform.OSOperations, log *logger.Logger, opts Options) (*Guard, error) {
	if _, err := ParseMode(string(opts.Mode)); err != nil {
		return nil, gerrors.NewConfigError("guard", "mode", err)
	}
	if opts.Paths.Profile == "" || opts.Paths.Header == "" || opts.Paths.Compiler == "" {
		return nil, gerrors.NewConfigError("guard", "paths",
			fmt.Errorf("profile, header and compiler are required (got %+v)", opts.Paths))
	}
	if log == nil {
		log = logger.New()
	}

	return &Guard{
		os:          osOps,
		logger:      log.WithField("component", "guard"),
		paths:       opts.Paths,
		mode:        opts.Mode,
		interpreter: opts.Interpreter,
	}, nil
}

// Paths returns the paths the guard operates on
func (g *Guard) Paths() Paths {
	return g.paths
}

// Check decides whether the header must be regenerated without running
// anything. In always mode no file is inspected. In stale mode a missing
// header counts as out of date and a missing profile is an error.
func (g *Guard) Check() (Decision, error) {
	d := Decision{
		Mode:    g.mode,
		Profile: g.paths.Profile,
		Header:  g.paths.Header,
	}

	if g.mode == ModeAlways {
		d.Regenerate = true
		d.Reason = ReasonAlways
		return d, nil
	}

	profileInfo, err := g.os.Stat(g.paths.Profile)
	if err != nil {
		if g.os.IsNotExist(err) {
			return d, gerrors.NewProfileNotFoundError(g.paths.Profile, err)
		}
		return d, gerrors.NewFilesystemError(g.paths.Profile, "stat", err)
	}
	profileMod := profileInfo.ModTime()
	d.ProfileModTime = &profileMod

	headerInfo, err := g.os.Stat(g.paths.Header)
	if err != nil {
		if g.os.IsNotExist(err) {
			d.Regenerate = true
			d.Reason = ReasonHeaderMissing
			return d, nil
		}
		return d, gerrors.NewFilesystemError(g.paths.Header, "stat", err)
	}
	headerMod := headerInfo.ModTime()
	d.HeaderModTime = &headerMod

	if profileMod.After(headerMod) {
		d.Regenerate = true
		d.Reason = ReasonSourceNewer
		return d, nil
	}

	d.Reason = ReasonUpToDate
	return d, nil
}

// Command returns the command line that regenerates the header. The
// compiler always receives the profile and the header, in that order.
func (g *Guard) Command() (string, []string) {
	if g.interpreter != "" {
		return g.interpreter, []string{g.paths.Compiler, g.paths.Profile, g.paths.Header}
	}
	return g.paths.Compiler, []string{g.paths.Profile, g.paths.Header}
}

// Run checks the header and regenerates it through env when needed. The
// returned Decision is valid whenever Check succeeded.
func (g *Guard) Run(ctx context.Context, env Environment) (Decision, error) {
	d, err := g.Check()
	if err != nil {
		g.logger.Error("freshness check failed", "error", err)
		return d, err
	}

	log := g.logger.WithFields("header", g.paths.Header, "reason", string(d.Reason))

	if !d.Regenerate {
		log.Debug("header is up to date, skipping generation")
		return d, nil
	}

	name, args := g.Command()
	log.Info("generating header", "profile", g.paths.Profile)

	if err := env.Execute(ctx, name, args...); err != nil {
		if !gerrors.IsCompilerError(err) && !gerrors.IsContextError(err) {
			err = gerrors.NewCompilerFailedError(g.paths.Compiler, -1, err)
		}
		if code, ok := gerrors.GetExitCode(err); ok && code >= 0 {
			log = log.WithField("exit_code", code)
		}
		log.Error("header generation failed", "error", err)
		return d, err
	}

	log.Debug("header generated")
	return d, nil
}
