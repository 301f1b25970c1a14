package cli

import (
	"encoding/json"
	"fmt"

	"gattguard/pkg/version"

	"github.com/spf13/cobra"
)

func newVersionCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.jsonOutput {
				jsonOutput, err := json.MarshalIndent(version.GetBuildInfo(), "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(jsonOutput))
				return err
			}

			_, err := fmt.Fprint(cmd.OutOrStdout(), version.GetLongVersion())
			return err
		},
	}
}
