package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/finobytes/maxreward/internal/config"
	pkgerrors "github.com/finobytes/maxreward/pkg/errors"
	"github.com/finobytes/maxreward/pkg/pipeline"
)

const defaultFetchJobs = 4

// treeOpts holds the flags shared by the tree subcommands.
type treeOpts struct {
	output   string // output file, base path or directory
	formats  string // comma-separated formats
	member   string // label for normalized payloads
	refresh  bool   // bypass the payload cache
	snapshot bool   // record the tree in the snapshot store
	noCache  bool   // disable caching entirely
	detailed bool   // phone numbers and sides in text/DOT output
	lr       bool   // left-to-right DOT layout
	color    bool   // level colors in text output
	depth    int    // text depth limit
	jobs     int    // concurrent fetches
}

func (o *treeOpts) pipelineOptions() (pipeline.Options, error) {
	formats, err := parseFormats(o.formats)
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		Refresh:     o.refresh,
		Formats:     formats,
		Detailed:    o.detailed,
		LeftToRight: o.lr,
		Color:       o.color,
		MaxDepth:    o.depth,
		Snapshot:    o.snapshot,
	}, nil
}

func (o *treeOpts) addRenderFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.output, "output", "o", "", "output file (one tree, one format), base path (several formats) or directory (several trees)")
	cmd.Flags().StringVarP(&o.formats, "format", "f", "", "output format(s): json (default), text, dot, svg, pdf, png (comma-separated)")
	cmd.Flags().BoolVar(&o.detailed, "detailed", false, "include phone numbers and sides in text and diagram output")
	cmd.Flags().BoolVar(&o.lr, "lr", false, "lay diagrams out left to right")
	cmd.Flags().BoolVar(&o.color, "color", false, "color text output by level")
	cmd.Flags().IntVar(&o.depth, "depth", 0, "limit text output to this many levels below the root (0 = all)")
	cmd.Flags().BoolVar(&o.snapshot, "snapshot", false, "record the normalized tree in the snapshot store")
	cmd.Flags().BoolVar(&o.noCache, "no-cache", false, "disable the payload and artifact cache")
}

// treeCommand groups the tree subcommands.
func (c *CLI) treeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Fetch, normalize, watch and browse referral trees",
	}
	cmd.AddCommand(c.treeFetchCommand())
	cmd.AddCommand(c.treeNormalizeCommand())
	cmd.AddCommand(c.treeWatchCommand())
	cmd.AddCommand(c.treeBrowseCommand())
	return cmd
}

func (c *CLI) treeFetchCommand() *cobra.Command {
	opts := treeOpts{jobs: defaultFetchJobs}
	cmd := &cobra.Command{
		Use:   "fetch <member-id>...",
		Short: "Fetch members' trees from the API and write the normalized result",
		Example: `  maxreward tree fetch 34
  maxreward tree fetch 34 -f text --color
  maxreward tree fetch 34 35 52 -f json,svg -o trees/`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runFetch(cmd.Context(), args, &opts)
		},
	}
	opts.addRenderFlags(cmd)
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "bypass the payload cache")
	cmd.Flags().IntVarP(&opts.jobs, "jobs", "j", opts.jobs, "number of concurrent fetches")
	return cmd
}

func (c *CLI) runFetch(ctx context.Context, ids []string, opts *treeOpts) error {
	base, err := opts.pipelineOptions()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := pkgerrors.ValidateMemberID(id); err != nil {
			return errors.New(pkgerrors.UserMessage(err))
		}
	}

	runner, err := c.newRunner(ctx, runnerOpts{noCache: opts.noCache, noStore: !opts.snapshot})
	if err != nil {
		return err
	}
	defer runner.Close()
	if runner.Fetcher == nil {
		return fmt.Errorf("no upstream API configured: set api.base_url in %s or %s", configPathHint(c.ConfigPath), config.EnvAPIURL)
	}

	prog := newProgress(c.Logger)
	spin := newSpinnerWithContext(ctx, fmt.Sprintf("Fetching %d tree(s)...", len(ids)))
	spin.Start()

	results := make([]*pipeline.Result, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.jobs, 1))
	for i, id := range ids {
		g.Go(func() error {
			o := base
			o.MemberID = id
			res, err := runner.Execute(gctx, o)
			if err != nil {
				return fmt.Errorf("member %s: %w", id, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if spin.Cancelled() {
			spin.Stop()
			return ctx.Err()
		}
		spin.StopWithError("Fetch failed")
		return err
	}
	spin.Stop()
	prog.done(fmt.Sprintf("Fetched %d tree(s)", len(ids)))

	return writeResults(results, base.Formats, opts.output, os.Stdout)
}

func (c *CLI) treeNormalizeCommand() *cobra.Command {
	var opts treeOpts
	cmd := &cobra.Command{
		Use:   "normalize <file|->",
		Short: "Normalize a referral tree payload from a file or stdin",
		Example: `  maxreward tree normalize payload.json
  curl -s $API/api/member/referral-tree/34 | maxreward tree normalize - -f text`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runNormalize(cmd.Context(), args[0], cmd.InOrStdin(), &opts)
		},
	}
	opts.addRenderFlags(cmd)
	cmd.Flags().StringVar(&opts.member, "member", "", "member id to label the result and snapshot with")
	return cmd
}

func (c *CLI) runNormalize(ctx context.Context, path string, stdin io.Reader, opts *treeOpts) error {
	o, err := opts.pipelineOptions()
	if err != nil {
		return err
	}
	payload, err := readPayload(path, stdin)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, runnerOpts{noCache: opts.noCache, noStore: !opts.snapshot})
	if err != nil {
		return err
	}
	defer runner.Close()

	o.MemberID = opts.member
	o.Payload = payload
	res, err := runner.Execute(ctx, o)
	if err != nil {
		return err
	}
	if res.MemberID == "" {
		res.MemberID = res.Tree.ID
	}
	return writeResults([]*pipeline.Result{res}, o.Formats, opts.output, os.Stdout)
}

func readPayload(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return data, nil
}

// writeResults writes every artifact of every result. One tree in one
// format without -o goes to stdout; everything else goes to files.
func writeResults(results []*pipeline.Result, formats []string, output string, stdout io.Writer) error {
	if len(results) == 1 && len(formats) == 1 && output == "" {
		_, err := stdout.Write(results[0].Artifacts[formats[0]])
		return err
	}

	for _, res := range results {
		for _, f := range formats {
			path := artifactPath(output, res.MemberID, f, len(results) > 1, len(formats) > 1)
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
			}
			if err := os.WriteFile(path, res.Artifacts[f], 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
		}
		printSuccess("Member %s", res.MemberID)
		printTreeStats(res.Summary, res.Report.Rejected(), res.CacheInfo.FetchHit || res.CacheInfo.RenderHit)
		for _, f := range formats {
			printFile(artifactPath(output, res.MemberID, f, len(results) > 1, len(formats) > 1))
		}
		if res.Snapshot != nil {
			printDetail("snapshot %s", res.Snapshot.ID)
		}
	}
	return nil
}

// artifactPath names the file for one artifact:
//
//	one tree, one format:    output
//	one tree, many formats:  <output without extension>.<ext>
//	many trees:              <output dir>/<member>.<ext>
func artifactPath(output, memberID, format string, manyTrees, manyFormats bool) string {
	name := memberID
	if name == "" {
		name = "tree"
	}
	switch {
	case manyTrees:
		return filepath.Join(output, name+"."+fileExt(format))
	case output == "":
		return name + "." + fileExt(format)
	case manyFormats:
		return strings.TrimSuffix(output, filepath.Ext(output)) + "." + fileExt(format)
	}
	return output
}

func fileExt(format string) string {
	if format == pipeline.FormatText {
		return "txt"
	}
	return format
}

func configPathHint(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return config.DefaultPath()
}
