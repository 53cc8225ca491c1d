package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/interruptmeter/interruptmeter/pkg/types"
	"github.com/interruptmeter/interruptmeter/server/internal/api"
	"github.com/interruptmeter/interruptmeter/server/internal/streak"
	"github.com/interruptmeter/interruptmeter/server/internal/tracker"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print current streaks and records",
		Long: `Print days since the last outage and hotfix with their records.

Like every status query this observes both tracks: a streak that beats its
record is stored as the new record.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}
			defer e.Close()

			rep, err := e.streaks.Report()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rep)
		},
	}
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "reset <outage|hotfix>",
		Short:     "Record an outage or hotfix today",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(streak.Outage), string(streak.Hotfix)},
		RunE: func(cmd *cobra.Command, args []string) error {
			track, err := streak.ParseTrack(args[0])
			if err != nil {
				return err
			}
			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}
			defer e.Close()

			today := e.streaks.Today()
			if err := e.streaks.Reset(track, today); err != nil {
				return err
			}
			st, err := e.streaks.Observe(track)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), api.ResetResponse{
				Status: "ok",
				Track:  string(track),
				Date:   today.Format(streak.DateLayout),
				Streak: st,
			})
		},
	}
}

// NewRefreshCommand creates the refresh command.
func NewRefreshCommand(rootOpts *RootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "refresh --file <stories.json|stories.xml>",
		Short: "Recompute iteration totals from a story export",
		Long: `Recompute the current and previous iteration totals from a story file.

Files ending in .xml are read as the tracker's XML story export, anything
else as a JSON array of stories. Stories with an unreadable creation time
are skipped and listed under "faults".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, decodeFaults, err := loadStories(file)
			if err != nil {
				return err
			}
			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}
			defer e.Close()

			res, err := e.meter.Refresh(raw, decodeFaults...)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), api.NewRefreshResponse(res))
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "story export to read (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func loadStories(path string) ([]types.RawStory, []tracker.ParseFault, error) {
	f, err := readFile(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	if strings.EqualFold(filepath.Ext(path), ".xml") {
		raw, err := tracker.DecodeXML(f)
		return raw, nil, err
	}
	return tracker.DecodeJSON(f)
}

// NewSetupCommand creates the setup command.
func NewSetupCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		current, previous, outage, hotfix string
		outageRecord, hotfixRecord        int
	)
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Show or edit iteration dates, anchors and records",
		Long: `Without flags, print the stored iteration start dates, last outage and
hotfix dates and both records. With flags, change them first. Dates are
YYYY-MM-DD. Anchors may not lie in the future and records may only go up;
if any value is rejected nothing is written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts)
			if err != nil {
				return err
			}
			defer e.Close()

			var req api.SetupRequest
			flags := cmd.Flags()
			if flags.Changed("current") {
				req.CurrentIteration = &current
			}
			if flags.Changed("previous") {
				req.LastIteration = &previous
			}
			if flags.Changed("outage") {
				req.LastOutage = &outage
			}
			if flags.Changed("hotfix") {
				req.LastHotfix = &hotfix
			}
			if flags.Changed("outage-record") {
				req.MaxOutage = &outageRecord
			}
			if flags.Changed("hotfix-record") {
				req.MaxHotfix = &hotfixRecord
			}

			var resp *api.SetupResponse
			if req == (api.SetupRequest{}) {
				resp, err = e.api.Setup()
			} else {
				resp, err = e.api.ApplySetup(req)
			}
			if err != nil {
				return fmt.Errorf("setup: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	f := cmd.Flags()
	f.StringVar(&current, "current", "", "start of the current iteration")
	f.StringVar(&previous, "previous", "", "start of the previous iteration")
	f.StringVar(&outage, "outage", "", "date of the last outage")
	f.StringVar(&hotfix, "hotfix", "", "date of the last hotfix")
	f.IntVar(&outageRecord, "outage-record", 0, "longest outage-free streak in days")
	f.IntVar(&hotfixRecord, "hotfix-record", 0, "longest hotfix-free streak in days")
	return cmd
}
