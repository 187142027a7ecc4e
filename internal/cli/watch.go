package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/finobytes/maxreward/pkg/pipeline"
)

const watchDebounce = 200 * time.Millisecond

func (c *CLI) treeWatchCommand() *cobra.Command {
	var opts treeOpts
	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Re-normalize a payload file every time it changes",
		Long: `Watch a payload file and re-run normalization whenever it is written.

Without -o the text rendering is redrawn on stdout; with -o the artifacts are
rewritten in place, which pairs well with a browser or image viewer that
reloads on change.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.formats == "" && opts.output == "" {
				opts.formats = pipeline.FormatText
			}
			return c.runWatch(cmd.Context(), args[0], &opts)
		},
	}
	opts.addRenderFlags(cmd)
	cmd.Flags().StringVar(&opts.member, "member", "", "member id to label the result and snapshot with")
	return cmd
}

func (c *CLI) runWatch(ctx context.Context, path string, opts *treeOpts) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	logger := loggerFromContext(ctx)

	rebuild := func(ctx context.Context) {
		if err := c.runNormalize(ctx, path, nil, opts); err != nil {
			if errors.Is(err, pipeline.ErrEmptyTree) {
				printWarning("%s: payload has no root member or level list", path)
				return
			}
			printError("%s: %v", path, err)
			return
		}
		logger.Debug("rebuilt", "file", path)
	}

	rebuild(ctx)
	printInfo("Watching %s (Ctrl+C to stop)", path)
	err := watchFile(ctx, path, watchDebounce, rebuild)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// watchFile calls fn after path settles from a burst of changes, until ctx
// is done. The parent directory is watched so that editors which replace
// the file by renaming keep triggering.
func watchFile(ctx context.Context, path string, debounce time.Duration, fn func(context.Context)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				timer.Reset(debounce)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			loggerFromContext(ctx).Warn("watcher error", "err", err)
		case <-timer.C:
			if _, err := os.Stat(abs); err != nil {
				continue
			}
			fn(ctx)
		}
	}
}
