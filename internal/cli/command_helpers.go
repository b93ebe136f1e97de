package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/codex-k8s/localaictl/internal/prefs"
	"github.com/codex-k8s/localaictl/internal/resolver"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

// Process exit codes returned by ExitCode.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitRejected = 2
	ExitStore    = 3
)

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case resolver.IsRejected(err):
		return ExitRejected
	case prefs.IsStoreError(err):
		return ExitStore
	default:
		return ExitFailure
	}
}

// newGroupCommand builds a cobra.Command that groups subcommands.
func newGroupCommand(use, short string, subcommands ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
	}
	if len(subcommands) > 0 {
		cmd.AddCommand(subcommands...)
	}
	return cmd
}

func validateOutput(format string) error {
	switch format {
	case outputTable, outputJSON:
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (want %s or %s)", format, outputTable, outputJSON)
	}
}

// writeJSON prints v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// rejection returns the RejectedError inside err, if any.
func rejection(err error) *resolver.RejectedError {
	var rej *resolver.RejectedError
	if errors.As(err, &rej) {
		return rej
	}
	return nil
}
