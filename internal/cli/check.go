package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"gattguard/internal/guard"

	"github.com/spf13/cobra"
)

// checkExitCode is returned by check --exit-code when the header is stale
const checkExitCode = 2

func newCheckCmd(opts *rootOptions) *cobra.Command {
	var exitCode bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report whether the header would be regenerated",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.newSession(cmd)
			if err != nil {
				return err
			}

			d, err := s.guard.Check()
			if err != nil {
				return err
			}

			if opts.jsonOutput {
				err = printDecisionJSON(cmd.OutOrStdout(), d)
			} else {
				err = printDecision(cmd.OutOrStdout(), d)
			}
			if err != nil {
				return err
			}

			if exitCode && d.Regenerate {
				return &ExitError{Code: checkExitCode}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&exitCode, "exit-code", false,
		fmt.Sprintf("Exit with status %d when the header would be regenerated", checkExitCode))

	return cmd
}

func printDecision(w io.Writer, d guard.Decision) error {
	state := "fresh"
	if d.Regenerate {
		state = "stale"
	}

	if _, err := fmt.Fprintf(w, "%s: %s (%s)\n", state, d.Reason, d.Header); err != nil {
		return err
	}
	if d.ProfileModTime != nil {
		if _, err := fmt.Fprintf(w, "Profile: %s\n", d.ProfileModTime.Format("2006-01-02T15:04:05.000Z07:00")); err != nil {
			return err
		}
	}
	if d.HeaderModTime != nil {
		if _, err := fmt.Fprintf(w, "Header:  %s\n", d.HeaderModTime.Format("2006-01-02T15:04:05.000Z07:00")); err != nil {
			return err
		}
	}
	return nil
}

func printDecisionJSON(w io.Writer, d guard.Decision) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}
