package pipeline

import (
	"bytes"
	"context"

	"github.com/finobytes/maxreward/pkg/referral"
	"github.com/finobytes/maxreward/pkg/render"
	"github.com/finobytes/maxreward/pkg/render/nodelink"
)

// Render produces every format in opts.Formats without touching the cache.
// DOT source and SVG are computed at most once and shared between formats.
func Render(ctx context.Context, root *referral.TreeNode, opts Options) (map[string][]byte, error) {
	if err := opts.ValidateForRender(); err != nil {
		return nil, err
	}

	var (
		dot string
		svg []byte
	)
	dotSource := func() string {
		if dot == "" {
			dot = nodelink.ToDOT(root, nodelink.Options{Detailed: opts.Detailed, LeftToRight: opts.LeftToRight})
		}
		return dot
	}
	svgBytes := func() ([]byte, error) {
		if svg == nil {
			var err error
			if svg, err = nodelink.RenderSVG(ctx, dotSource()); err != nil {
				return nil, err
			}
		}
		return svg, nil
	}

	out := make(map[string][]byte, len(opts.Formats))
	for _, f := range opts.Formats {
		var (
			data []byte
			err  error
		)
		switch f {
		case FormatJSON:
			var buf bytes.Buffer
			err = referral.WriteJSON(root, &buf)
			data = buf.Bytes()
		case FormatText:
			data = []byte(render.Text(root, render.TextOptions{
				Color:    opts.Color,
				Details:  opts.Detailed,
				MaxDepth: opts.MaxDepth,
			}))
		case FormatDOT:
			data = []byte(dotSource())
		case FormatSVG:
			data, err = svgBytes()
		case FormatPDF:
			if data, err = svgBytes(); err == nil {
				data, err = render.ToPDF(ctx, data)
			}
		case FormatPNG:
			if data, err = svgBytes(); err == nil {
				data, err = render.ToPNG(ctx, data, opts.Scale)
			}
		}
		if err != nil {
			return nil, err
		}
		out[f] = data
	}
	return out, nil
}
