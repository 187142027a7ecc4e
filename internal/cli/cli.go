package cli

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/finobytes/maxreward/internal/config"
	"github.com/finobytes/maxreward/pkg/api"
	"github.com/finobytes/maxreward/pkg/buildinfo"
	"github.com/finobytes/maxreward/pkg/cache"
	"github.com/finobytes/maxreward/pkg/pipeline"
	"github.com/finobytes/maxreward/pkg/store"
)

const appName = "maxreward"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// ConfigPath overrides config.DefaultPath; set by --config.
	ConfigPath string

	cfg *config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "maxreward normalizes and renders member referral trees",
		Long: `maxreward fetches a member's binary referral tree from the back-office API,
folds the level-by-level payload into a single rooted tree and renders it as
JSON for the front-end tree component, as text, DOT, SVG, PDF or PNG.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.ConfigPath, "config", "", "config file (default "+config.DefaultPath()+")")

	root.AddCommand(c.treeCommand())
	root.AddCommand(c.snapshotCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// config loads the configuration once per process.
func (c *CLI) config() (config.Config, error) {
	if c.cfg != nil {
		return *c.cfg, nil
	}
	cfg, err := config.Load(c.ConfigPath)
	if err != nil {
		return cfg, err
	}
	c.cfg = &cfg
	c.Logger.Debug("loaded config", "cache", cfg.Cache.Backend, "store", cfg.Store.Backend, "api", cfg.API.BaseURL != "")
	return cfg, nil
}

// runnerOpts selects which backends newRunner opens.
type runnerOpts struct {
	noCache bool // use a null cache regardless of config
	noStore bool // skip opening the snapshot store
}

// newRunner builds a pipeline runner from config. The API client is only
// attached when api.base_url is set.
func (c *CLI) newRunner(ctx context.Context, ro runnerOpts) (*pipeline.Runner, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}

	ch := cache.Cache(cache.NewNullCache())
	if !ro.noCache {
		if ch, err = newCache(ctx, cfg.Cache); err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}
	}

	st := store.Store(store.NullStore{})
	if !ro.noStore {
		if st, err = newStore(ctx, cfg.Store); err != nil {
			ch.Close()
			return nil, fmt.Errorf("open snapshot store: %w", err)
		}
	}

	keyer := cache.NewDefaultKeyer()
	var fetcher pipeline.Fetcher
	if cfg.API.BaseURL != "" {
		client, err := api.NewClient(cfg.APIClientConfig(), ch, c.Logger)
		if err != nil {
			ch.Close()
			st.Close()
			return nil, err
		}
		// Payloads from different upstreams must not collide in a shared cache.
		keyer = cache.NewScopedKeyer(keyer, apiScope(cfg.API.BaseURL))
		client.SetKeyer(keyer)
		fetcher = client
	}
	return pipeline.NewRunner(fetcher, ch, keyer, st, c.Logger), nil
}

func apiScope(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return "default:"
	}
	return u.Host + ":"
}

func newCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, error) {
	switch cfg.Backend {
	case config.BackendRedis:
		return cache.NewRedisCache(ctx, cfg.RedisURL, redisPrefix(cfg.Prefix))
	case config.BackendNone:
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(cfg.Dir)
}

// redisPrefix makes sure configured key prefixes end in a separator.
func redisPrefix(p string) string {
	if p == "" || strings.HasSuffix(p, ":") {
		return p
	}
	return p + ":"
}

func newStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case config.BackendMongo:
		return store.OpenMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	case config.BackendNone:
		return store.NullStore{}, nil
	}
	return store.OpenBolt(cfg.Path)
}

// parseFormats parses a comma-separated format string into a slice.
// An empty string means JSON, the front-end format.
func parseFormats(s string) ([]string, error) {
	if s == "" {
		return []string{pipeline.FormatJSON}, nil
	}
	var formats []string
	for _, f := range strings.Split(s, ",") {
		f = strings.ToLower(strings.TrimSpace(f))
		if err := pipeline.ValidateFormat(f); err != nil {
			return nil, err
		}
		formats = append(formats, f)
	}
	return formats, nil
}

// redactURL hides the password of a connection URL before printing it.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Redacted()
}
