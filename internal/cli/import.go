package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banshee-data/veto.report/internal/db"
	"github.com/banshee-data/veto.report/internal/event"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	IFONames bool
	Channels []string
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <trigger-dir>",
		Short: "Store trigger CSV files in the database",
		Long: `Import every <channel>.csv in a directory into the trigger table, replacing
any triggers already stored for those channels. A malformed file aborts the
import of that channel only.

Example:
  veto import ./triggers
  veto import --channel H1:STRAIN --channel H1:AUX ./triggers`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := opts.dbPath()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid environment", err)
			}
			database, err := db.NewDB(path)
			if err != nil {
				return WrapExitError(ExitCommandError, "open database", err)
			}
			defer database.Close()

			src := event.CSVDirSource{Dir: args[0]}
			if opts.IFONames {
				src.ChannelName = event.IFOChannelName
			}
			ctx := cmd.Context()
			channels := opts.Channels
			if len(channels) == 0 {
				if channels, err = src.Channels(ctx); err != nil {
					return WrapExitError(ExitCommandError, "list trigger files", err)
				}
			}

			store := db.NewTriggerStore(database)
			out := cmd.OutOrStdout()
			failed := 0
			for _, ch := range channels {
				evs, err := src.Read(ctx, ch)
				if err == nil {
					var n int
					n, err = store.Import(ctx, ch, evs)
					if err == nil {
						fmt.Fprintf(out, "%s\t%d triggers\n", ch, n)
						continue
					}
				}
				failed++
				fmt.Fprintf(out, "%s\tfailed: %v\n", ch, err)
			}
			if failed > 0 {
				return NewExitError(ExitFailure, fmt.Sprintf("%d of %d channels failed to import", failed, len(channels)))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.IFONames, "ifo-names", true, "map file stems like H1-AUX to channel names like H1:AUX")
	cmd.Flags().StringArrayVar(&opts.Channels, "channel", nil, "import only this channel (repeatable)")

	return cmd
}
