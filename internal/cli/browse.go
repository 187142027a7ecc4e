package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/finobytes/maxreward/pkg/pipeline"
)

func (c *CLI) treeBrowseCommand() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "browse <file|member-id>",
		Short: "Browse a referral tree interactively",
		Long: `Open an interactive tree browser. The argument is read as a payload file
when such a file exists and fetched from the API as a member id otherwise.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBrowse(cmd.Context(), args[0], refresh)
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the payload cache when fetching")
	return cmd
}

func (c *CLI) runBrowse(ctx context.Context, arg string, refresh bool) error {
	runner, err := c.newRunner(ctx, runnerOpts{noStore: true})
	if err != nil {
		return err
	}
	defer runner.Close()

	opts := pipeline.Options{Formats: []string{pipeline.FormatJSON}, Refresh: refresh}
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		if opts.Payload, err = os.ReadFile(arg); err != nil {
			return err
		}
	} else {
		opts.MemberID = arg
	}

	spin := newSpinnerWithContext(ctx, "Loading tree...")
	spin.Start()
	res, err := runner.Execute(ctx, opts)
	if err != nil {
		spin.StopWithError("Could not load the tree")
		if errors.Is(err, pipeline.ErrNoFetcher) {
			return fmt.Errorf("%q is not a file and no upstream API is configured", arg)
		}
		return err
	}
	spin.Stop()

	_, err = tea.NewProgram(NewTreeBrowserModel(res.Tree), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
