// Package render turns a normalized referral tree into human-facing output.
//
// # Formats
//
//   - text: an indented terminal tree ([Text]), drawn with lipgloss/tree
//   - dot and svg: a Graphviz diagram (in the [nodelink] subpackage)
//   - pdf and png: the SVG converted with rsvg-convert ([ToPDF], [ToPNG])
//
// The JSON shape consumed by the browser renderer is written by
// [referral.WriteJSON] and is not duplicated here.
//
//	dot := nodelink.ToDOT(root, nodelink.Options{})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//	png, err := render.ToPNG(ctx, svg, 2.0)
//
// [nodelink]: github.com/finobytes/maxreward/pkg/render/nodelink
// [referral.WriteJSON]: github.com/finobytes/maxreward/pkg/referral#WriteJSON
package render
