package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/finobytes/maxreward/internal/config"
	"github.com/finobytes/maxreward/pkg/cache"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the payload and artifact cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached payload and rendered artifact",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			count, where, err := clearCache(cmd.Context(), cfg.Cache)
			if err != nil {
				return err
			}
			if count == 0 {
				printInfo("Cache is empty")
				return nil
			}
			printSuccess("Cleared %d cached entries", count)
			printDetail("Location: %s", where)
			return nil
		},
	}
}

// clearCache empties the configured backend and reports where it lives.
func clearCache(ctx context.Context, cfg config.CacheConfig) (int, string, error) {
	switch cfg.Backend {
	case config.BackendNone:
		return 0, "", nil
	case config.BackendRedis:
		rc, err := cache.NewRedisCache(ctx, cfg.RedisURL, redisPrefix(cfg.Prefix))
		if err != nil {
			return 0, "", fmt.Errorf("connect to redis: %w", err)
		}
		defer rc.Close()
		n, err := rc.Clear(ctx)
		return n, redisPrefix(cfg.Prefix) + "* on " + redactURL(cfg.RedisURL), err
	}
	fc, err := cache.NewFileCache(cfg.Dir)
	if err != nil {
		return 0, "", fmt.Errorf("open cache dir: %w", err)
	}
	n, err := fc.Clear()
	return n, fc.Dir(), err
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print where the cache lives",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			switch cfg.Cache.Backend {
			case config.BackendNone:
				printInfo("Caching is disabled")
			case config.BackendRedis:
				fmt.Println(redactURL(cfg.Cache.RedisURL))
			default:
				fmt.Println(cfg.Cache.Dir)
			}
			return nil
		},
	}
}
