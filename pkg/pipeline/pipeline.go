// Package pipeline runs the fetch → normalize → render flow shared by the
// CLI and the HTTP server.
//
// # Stages
//
//  1. Load: fetch the member's payload from the upstream API (cached per
//     member) or take a payload supplied by the caller
//  2. Normalize: decode it tolerantly and fold it into one rooted tree
//  3. Render: produce every requested format, cached by tree hash
//
// Optionally the normalized tree is recorded as a snapshot.
//
//	runner := pipeline.NewRunner(client, c, nil, snapshots, logger)
//	res, err := runner.Execute(ctx, pipeline.Options{
//	    MemberID: "34",
//	    Formats:  []string{pipeline.FormatJSON, pipeline.FormatSVG},
//	})
//	svg := res.Artifacts[pipeline.FormatSVG]
package pipeline

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/finobytes/maxreward/pkg/cache"
	"github.com/finobytes/maxreward/pkg/referral"
	"github.com/finobytes/maxreward/pkg/store"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatText = "text"
	FormatDOT  = "dot"
	FormatSVG  = "svg"
	FormatPDF  = "pdf"
	FormatPNG  = "png"
)

// Formats lists every supported format in a stable order.
var Formats = []string{FormatJSON, FormatText, FormatDOT, FormatSVG, FormatPDF, FormatPNG}

// ContentTypes maps formats to HTTP content types.
var ContentTypes = map[string]string{
	FormatJSON: "application/json",
	FormatText: "text/plain; charset=utf-8",
	FormatDOT:  "text/vnd.graphviz; charset=utf-8",
	FormatSVG:  "image/svg+xml",
	FormatPDF:  "application/pdf",
	FormatPNG:  "image/png",
}

// ErrEmptyTree is returned when a payload normalizes to nothing, i.e. it has
// no root member or no level list.
var ErrEmptyTree = errors.New("payload has no tree to render")

// ErrNoSource is returned when neither a member id nor a payload is given.
var ErrNoSource = errors.New("member id or payload is required")

// ErrNoFetcher is returned when a member id is given but the runner has no
// upstream API to fetch from.
var ErrNoFetcher = errors.New("no upstream api configured")

// ValidateFormat reports whether format is supported.
func ValidateFormat(format string) error {
	if !slices.Contains(Formats, format) {
		return fmt.Errorf("invalid format: %q (must be one of: %s)", format, strings.Join(Formats, ", "))
	}
	return nil
}

// Options configures one pipeline run.
type Options struct {
	// Source: exactly one of MemberID (fetch) or Payload (given) is used.
	// When both are set Payload wins and MemberID only labels the result.
	MemberID string `json:"member_id,omitempty"`
	Payload  []byte `json:"-"`
	Refresh  bool   `json:"refresh,omitempty"`

	Formats     []string `json:"formats,omitempty"`
	Detailed    bool     `json:"detailed,omitempty"`
	LeftToRight bool     `json:"left_to_right,omitempty"`
	Color       bool     `json:"color,omitempty"`
	MaxDepth    int      `json:"max_depth,omitempty"`
	Scale       float64  `json:"scale,omitempty"`

	// Snapshot records the normalized tree in the runner's store.
	Snapshot bool `json:"snapshot,omitempty"`

	validated bool
}

// ValidateAndSetDefaults checks the source and formats and fills defaults.
// It is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	o.MemberID = strings.TrimSpace(o.MemberID)
	if o.MemberID == "" && o.Payload == nil {
		return ErrNoSource
	}
	if err := o.ValidateForRender(); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// ValidateForRender checks only the render options, for callers that already
// hold a tree.
func (o *Options) ValidateForRender() error {
	if len(o.Formats) == 0 {
		o.Formats = []string{FormatJSON}
	}
	for _, f := range o.Formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	if o.MaxDepth < 0 {
		return fmt.Errorf("max depth must not be negative, got %d", o.MaxDepth)
	}
	if o.Scale <= 0 {
		o.Scale = 2
	}
	return nil
}

// artifactKeyOpts folds the render options into the artifact cache key.
func (o *Options) artifactKeyOpts(format string) cache.ArtifactKeyOpts {
	var style []string
	switch format {
	case FormatText:
		if o.Color {
			style = append(style, "color")
		}
		if o.Detailed {
			style = append(style, "detailed")
		}
		if o.MaxDepth > 0 {
			style = append(style, "depth="+strconv.Itoa(o.MaxDepth))
		}
	case FormatDOT, FormatSVG, FormatPDF, FormatPNG:
		if o.Detailed {
			style = append(style, "detailed")
		}
		if o.LeftToRight {
			style = append(style, "lr")
		}
		if format == FormatPNG {
			style = append(style, "scale="+strconv.FormatFloat(o.Scale, 'f', -1, 64))
		}
	}
	return cache.ArtifactKeyOpts{Format: format, Style: strings.Join(style, ",")}
}

// Result holds everything one run produced.
type Result struct {
	MemberID    string
	PayloadHash string
	TreeHash    string

	Tree    *referral.TreeNode
	Report  referral.Report
	Summary referral.Summary

	// Artifacts holds rendered outputs keyed by format.
	Artifacts map[string][]byte

	// Snapshot is set when Options.Snapshot was requested and saved.
	Snapshot *store.Snapshot

	Stats     Stats
	CacheInfo CacheInfo
}

// Stats contains timings for each stage.
type Stats struct {
	FetchTime     time.Duration
	NormalizeTime time.Duration
	RenderTime    time.Duration
	PayloadBytes  int
}

// CacheInfo records which stages were served from cache.
type CacheInfo struct {
	FetchHit  bool // payload came from the cache
	RenderHit bool // every requested artifact came from the cache
}
