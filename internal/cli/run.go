package cli

import (
	"gattguard/internal/guard"

	"github.com/spf13/cobra"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Regenerate the header if needed",
		Long: `Regenerate the GATT header with the configured compiler.

In stale mode the compiler runs only when the profile is newer than the
header or the header does not exist. In always mode it runs every time.
Any compiler failure makes gattguard exit non-zero so the build stops.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.newSession(cmd)
			if err != nil {
				return err
			}

			env := guard.NewShellEnvironment(s.platform, s.logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
			_, err = s.guard.Run(cmd.Context(), env)
			return err
		},
	}
}
