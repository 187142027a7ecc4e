package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/finobytes/maxreward/pkg/cache"
	"github.com/finobytes/maxreward/pkg/observability"
	"github.com/finobytes/maxreward/pkg/referral"
	"github.com/finobytes/maxreward/pkg/store"
)

// Fetcher loads a member's raw tree payload. *api.Client implements it.
type Fetcher interface {
	FetchTree(ctx context.Context, memberID string, refresh bool) ([]byte, bool, error)
}

// Runner executes pipeline runs. It holds no per-run state, so one Runner
// can serve concurrent requests.
type Runner struct {
	Fetcher Fetcher
	Cache   cache.Cache
	Keyer   cache.Keyer
	Store   store.Store
	Logger  *log.Logger
}

// NewRunner creates a runner. A nil fetcher limits it to given payloads; nil
// cache, keyer, store and logger fall back to no-op defaults.
func NewRunner(f Fetcher, c cache.Cache, keyer cache.Keyer, st store.Store, logger *log.Logger) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if st == nil {
		st = store.NullStore{}
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Runner{Fetcher: f, Cache: c, Keyer: keyer, Store: st, Logger: logger}
}

// Execute runs load → normalize → render (→ snapshot). When the payload
// normalizes to nothing it returns ErrEmptyTree together with a Result
// carrying the payload hash and the report.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	res := &Result{MemberID: opts.MemberID}

	start := time.Now()
	payload, hit, err := r.Load(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	res.Stats.FetchTime = time.Since(start)
	res.Stats.PayloadBytes = len(payload)
	res.CacheInfo.FetchHit = hit
	res.PayloadHash = cache.Hash(payload)

	start = time.Now()
	root, rep := r.Normalize(ctx, payload)
	res.Stats.NormalizeTime = time.Since(start)
	res.Report = rep
	if root == nil {
		return res, ErrEmptyTree
	}
	res.Tree = root
	res.Summary = referral.Summarize(root)

	treeJSON, err := json.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("encode tree: %w", err)
	}
	res.TreeHash = cache.Hash(treeJSON)

	start = time.Now()
	artifacts, renderHit, err := r.RenderWithCacheInfo(ctx, root, res.TreeHash, opts)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	res.Artifacts = artifacts
	res.Stats.RenderTime = time.Since(start)
	res.CacheInfo.RenderHit = renderHit

	r.Logger.Info("rendered tree",
		"member", opts.MemberID,
		"formats", opts.Formats,
		"cached", renderHit,
		"duration", res.Stats.RenderTime)

	if opts.Snapshot {
		snap := store.NewSnapshot(opts.MemberID, res.PayloadHash, root, rep)
		if err := r.Store.Save(ctx, snap); err != nil {
			return nil, fmt.Errorf("save snapshot: %w", err)
		}
		res.Snapshot = snap
		r.Logger.Debug("saved snapshot", "id", snap.ID, "member", opts.MemberID)
	}
	return res, nil
}

// Load returns the payload for opts: the given bytes, or a (cached) fetch.
func (r *Runner) Load(ctx context.Context, opts Options) ([]byte, bool, error) {
	if opts.Payload != nil {
		return opts.Payload, false, nil
	}
	if r.Fetcher == nil {
		return nil, false, fmt.Errorf("%w: member %q", ErrNoFetcher, opts.MemberID)
	}
	return r.Fetcher.FetchTree(ctx, opts.MemberID, opts.Refresh)
}

// Normalize decodes payload and builds the tree, logging every dropped edge
// at debug level and reporting the pass to the pipeline hooks.
func (r *Runner) Normalize(ctx context.Context, payload []byte) (*referral.TreeNode, referral.Report) {
	start := time.Now()
	root, rep := referral.Build(referral.Decode(payload))
	elapsed := time.Since(start)

	outcomes := make(map[string]int, len(rep.Outcomes))
	for res, n := range rep.Outcomes {
		outcomes[res.String()] = n
		if res != referral.Attached && res != referral.SkippedNoChild && n > 0 {
			r.Logger.Debug("dropped edges", "reason", res.String(), "count", n)
		}
	}
	observability.Pipeline().OnNormalize(ctx, observability.NormalizeStats{
		Nodes:      rep.Reachable,
		Registered: rep.Registered,
		Outcomes:   outcomes,
	}, elapsed)

	if root == nil {
		r.Logger.Warn("payload has no root member or level list")
		return nil, rep
	}
	r.Logger.Info("normalized tree",
		"nodes", rep.Reachable,
		"levels", rep.Levels,
		"rejected", rep.Rejected(),
		"unreachable", rep.Unreachable(),
		"duration", elapsed)
	return root, rep
}

// RenderWithCacheInfo renders every requested format, serving artifacts from
// cache when all of them are present. treeHash identifies the tree.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, root *referral.TreeNode, treeHash string, opts Options) (map[string][]byte, bool, error) {
	if err := opts.ValidateForRender(); err != nil {
		return nil, false, err
	}

	artifacts := make(map[string][]byte, len(opts.Formats))
	for _, f := range opts.Formats {
		data, hit, err := r.Cache.Get(ctx, r.Keyer.ArtifactKey(treeHash, opts.artifactKeyOpts(f)))
		if err != nil || !hit {
			observability.Cache().OnCacheMiss(ctx, "artifact")
			break
		}
		artifacts[f] = data
	}
	if len(artifacts) == len(opts.Formats) {
		observability.Cache().OnCacheHit(ctx, "artifact")
		return artifacts, true, nil
	}

	hooks := observability.Pipeline()
	hooks.OnRenderStart(ctx, opts.Formats)
	start := time.Now()
	rendered, err := Render(ctx, root, opts)
	hooks.OnRenderComplete(ctx, opts.Formats, time.Since(start), err)
	if err != nil {
		return nil, false, err
	}

	for f, data := range rendered {
		if err := r.Cache.Set(ctx, r.Keyer.ArtifactKey(treeHash, opts.artifactKeyOpts(f)), data, cache.ArtifactTTL); err != nil {
			r.Logger.Warn("cache write failed", "format", f, "err", err)
			continue
		}
		observability.Cache().OnCacheSet(ctx, "artifact", len(data))
	}
	return rendered, false, nil
}

// Close releases the cache and the store.
func (r *Runner) Close() error {
	cerr := r.Cache.Close()
	if err := r.Store.Close(); err != nil {
		return err
	}
	return cerr
}
