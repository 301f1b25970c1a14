package guard_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gattguard/internal/guard"
	"gattguard/internal/guard/guardfakes"
	gerrors "gattguard/pkg/errors"
	"gattguard/pkg/logger"
	"gattguard/pkg/platform"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const compiler = "/pio/packages/framework-arduinopico/pico-sdk/lib/btstack/tool/compile_gatt.py"

type fixture struct {
	dir     string
	profile string
	header  string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir:     dir,
		profile: filepath.Join(dir, "meshtastic-profile.gatt"),
		header:  filepath.Join(dir, "include", "meshtastic-profile.h"),
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(f.header), 0755))
	return f
}

func (f fixture) writeProfile(t *testing.T, mod time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(f.profile, []byte("PRIMARY_SERVICE, GAP_SERVICE\n"), 0644))
	require.NoError(t, os.Chtimes(f.profile, mod, mod))
}

func (f fixture) writeHeader(t *testing.T, mod time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(f.header, []byte("// generated\n"), 0644))
	require.NoError(t, os.Chtimes(f.header, mod, mod))
}

func (f fixture) guard(t *testing.T, mode guard.Mode) *guard.Guard {
	t.Helper()
	return f.guardWith(t, platform.NewPlatform(), mode, "")
}

func (f fixture) guardWith(t *testing.T, osOps platform.OSOperations, mode guard.Mode, interpreter string) *guard.Guard {
	t.Helper()
	g, err := guard.NewGuard(osOps, quietLogger(), guard.Options{
		Paths:       guard.Paths{Profile: f.profile, Header: f.header, Compiler: compiler},
		Mode:        mode,
		Interpreter: interpreter,
	})
	require.NoError(t, err)
	return g
}

func quietLogger() *logger.Logger {
	return logger.NewWithConfig(logger.Config{Level: logger.ERROR, Output: io.Discard})
}

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestGuard_StaleMode(t *testing.T) {
	tests := []struct {
		name          string
		profileMod    time.Time
		headerMod     *time.Time
		wantRegen     bool
		wantReason    guard.Reason
		wantHeaderMod bool
	}{
		{
			name:       "header missing",
			profileMod: base,
			wantRegen:  true,
			wantReason: guard.ReasonHeaderMissing,
		},
		{
			name:          "profile newer than header",
			profileMod:    base.Add(time.Minute),
			headerMod:     &base,
			wantRegen:     true,
			wantReason:    guard.ReasonSourceNewer,
			wantHeaderMod: true,
		},
		{
			name:          "same modification time",
			profileMod:    base,
			headerMod:     &base,
			wantRegen:     false,
			wantReason:    guard.ReasonUpToDate,
			wantHeaderMod: true,
		},
		{
			name:          "header newer than profile",
			profileMod:    base.Add(-time.Hour),
			headerMod:     &base,
			wantRegen:     false,
			wantReason:    guard.ReasonUpToDate,
			wantHeaderMod: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.writeProfile(t, tt.profileMod)
			if tt.headerMod != nil {
				f.writeHeader(t, *tt.headerMod)
			}

			env := &guardfakes.FakeEnvironment{}
			d, err := f.guard(t, guard.ModeStale).Run(context.Background(), env)
			require.NoError(t, err)

			assert.Equal(t, tt.wantRegen, d.Regenerate)
			assert.Equal(t, tt.wantReason, d.Reason)
			require.NotNil(t, d.ProfileModTime)
			assert.True(t, d.ProfileModTime.Equal(tt.profileMod))
			assert.Equal(t, tt.wantHeaderMod, d.HeaderModTime != nil)

			if !tt.wantRegen {
				assert.Equal(t, 0, env.ExecuteCallCount())
				return
			}
			require.Equal(t, 1, env.ExecuteCallCount())
			_, name, args := env.ExecuteArgsForCall(0)
			assert.Equal(t, compiler, name)
			assert.Equal(t, []string{f.profile, f.header}, args)
		})
	}
}

func TestGuard_StaleMode_ProfileMissing(t *testing.T) {
	f := newFixture(t)
	f.writeHeader(t, base)

	env := &guardfakes.FakeEnvironment{}
	_, err := f.guard(t, guard.ModeStale).Run(context.Background(), env)

	require.Error(t, err)
	assert.True(t, errors.Is(err, gerrors.ErrProfileNotFound))
	assert.Equal(t, 0, env.ExecuteCallCount())
}

type statFailingOS struct {
	platform.OSOperations
	failPath string
	err      error
}

func (s statFailingOS) Stat(name string) (os.FileInfo, error) {
	if name == s.failPath {
		return nil, s.err
	}
	return s.OSOperations.Stat(name)
}

func TestGuard_StaleMode_HeaderStatError(t *testing.T) {
	f := newFixture(t)
	f.writeProfile(t, base)
	f.writeHeader(t, base)

	osOps := statFailingOS{
		OSOperations: platform.NewPlatform(),
		failPath:     f.header,
		err:          os.ErrPermission,
	}

	env := &guardfakes.FakeEnvironment{}
	_, err := f.guardWith(t, osOps, guard.ModeStale, "").Run(context.Background(), env)

	require.Error(t, err)
	var fsErr *gerrors.FilesystemError
	require.ErrorAs(t, err, &fsErr)
	assert.Equal(t, f.header, fsErr.Path)
	assert.True(t, errors.Is(err, os.ErrPermission) || errors.Is(err, gerrors.ErrFilesystemFailed))
	assert.Equal(t, 0, env.ExecuteCallCount())
}

func TestGuard_AlwaysMode(t *testing.T) {
	f := newFixture(t)

	// Nothing exists on disk; always mode must not look.
	osOps := statFailingOS{OSOperations: platform.NewPlatform(), failPath: f.profile, err: errors.New("stat called")}

	env := &guardfakes.FakeEnvironment{}
	g := f.guardWith(t, osOps, guard.ModeAlways, "")

	for i := 0; i < 2; i++ {
		d, err := g.Run(context.Background(), env)
		require.NoError(t, err)
		assert.True(t, d.Regenerate)
		assert.Equal(t, guard.ReasonAlways, d.Reason)
		assert.Nil(t, d.ProfileModTime)
	}
	assert.Equal(t, 2, env.ExecuteCallCount())
}

func TestGuard_Interpreter(t *testing.T) {
	f := newFixture(t)
	env := &guardfakes.FakeEnvironment{}

	_, err := f.guardWith(t, platform.NewPlatform(), guard.ModeAlways, "python3").Run(context.Background(), env)
	require.NoError(t, err)

	_, name, args := env.ExecuteArgsForCall(0)
	assert.Equal(t, "python3", name)
	assert.Equal(t, []string{compiler, f.profile, f.header}, args)
}

func TestGuard_CompilerFailurePropagates(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"plain error is wrapped", errors.New("exit status 1"), -1},
		{"compiler error kept", gerrors.NewCompilerFailedError(compiler, 4, errors.New("exit status 4")), 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			env := &guardfakes.FakeEnvironment{}
			env.ExecuteReturns(tt.err)

			d, err := f.guard(t, guard.ModeAlways).Run(context.Background(), env)
			require.Error(t, err)
			assert.True(t, d.Regenerate)
			assert.True(t, errors.Is(err, gerrors.ErrCompilerFailed))

			code, ok := gerrors.GetExitCode(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestGuard_ContextPassedThrough(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := &guardfakes.FakeEnvironment{}
	env.ExecuteCalls(func(got context.Context, _ string, _ ...string) error {
		cancel()
		return got.Err()
	})

	_, err := f.guard(t, guard.ModeAlways).Run(ctx, env)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, gerrors.IsCompilerError(err))
}

func TestGuard_LogsGeneration(t *testing.T) {
	f := newFixture(t)
	var buf bytes.Buffer
	log := logger.NewWithConfig(logger.Config{Level: logger.INFO, Output: &buf})

	g, err := guard.NewGuard(platform.NewPlatform(), log, guard.Options{
		Paths: guard.Paths{Profile: f.profile, Header: f.header, Compiler: compiler},
		Mode:  guard.ModeAlways,
	})
	require.NoError(t, err)

	_, err = g.Run(context.Background(), &guardfakes.FakeEnvironment{})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "generating header")
	assert.Contains(t, buf.String(), "reason=mode-always")
}

func TestGuard_LogsCompilerExitCode(t *testing.T) {
	f := newFixture(t)
	var buf bytes.Buffer
	log := logger.NewWithConfig(logger.Config{Level: logger.ERROR, Output: &buf})

	g, err := guard.NewGuard(platform.NewPlatform(), log, guard.Options{
		Paths: guard.Paths{Profile: f.profile, Header: f.header, Compiler: compiler},
		Mode:  guard.ModeAlways,
	})
	require.NoError(t, err)

	env := &guardfakes.FakeEnvironment{}
	env.ExecuteReturns(gerrors.NewCompilerFailedError(compiler, 5, errors.New("exit status 5")))

	_, err = g.Run(context.Background(), env)
	require.Error(t, err)
	assert.Contains(t, buf.String(), "header generation failed")
	assert.Contains(t, buf.String(), "exit_code=5")
}

func TestNewGuard_Validation(t *testing.T) {
	paths := guard.Paths{Profile: "a.gatt", Header: "a.h", Compiler: "compile_gatt.py"}

	_, err := guard.NewGuard(platform.NewPlatform(), nil, guard.Options{Paths: paths, Mode: "weekly"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, gerrors.ErrInvalidMode))

	_, err = guard.NewGuard(platform.NewPlatform(), nil, guard.Options{Paths: guard.Paths{Profile: "a.gatt"}, Mode: guard.ModeStale})
	require.Error(t, err)
	assert.True(t, gerrors.IsConfigError(err))
}

func TestParseMode(t *testing.T) {
	m, err := guard.ParseMode(" Always ")
	require.NoError(t, err)
	assert.Equal(t, guard.ModeAlways, m)

	m, err = guard.ParseMode("stale")
	require.NoError(t, err)
	assert.Equal(t, guard.ModeStale, m)

	_, err = guard.ParseMode("")
	assert.ErrorIs(t, err, gerrors.ErrInvalidMode)
}

func TestResolvePaths(t *testing.T) {
	root := filepath.FromSlash("/work/firmware")
	abs := filepath.FromSlash("/opt/gen/profile.h")

	got := guard.ResolvePaths(root, guard.Paths{
		Profile:  "src/platform/rp2xx0/meshtastic-profile.gatt",
		Header:   abs,
		Compiler: "compile_gatt.py",
	})
	assert.Equal(t, filepath.Join(root, "src", "platform", "rp2xx0", "meshtastic-profile.gatt"), got.Profile)
	assert.Equal(t, abs, got.Header)
	assert.Equal(t, "compile_gatt.py", got.Compiler, "bare names are looked up on PATH")

	got = guard.ResolvePaths(root, guard.Paths{Compiler: "tools/compile_gatt.py"})
	assert.Equal(t, filepath.Join(root, "tools", "compile_gatt.py"), got.Compiler)

	got = guard.ResolvePaths(".", guard.Paths{Profile: "src/a.gatt"})
	assert.Equal(t, filepath.FromSlash("src/a.gatt"), got.Profile)
}
