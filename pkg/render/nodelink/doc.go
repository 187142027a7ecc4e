// Package nodelink draws a referral tree as a Graphviz node-link diagram.
//
// [ToDOT] produces DOT source with one rounded box per member, filled with
// the member's level color, and one edge per parent/child link labelled with
// the side (L or R). [RenderSVG] lays it out in-process with go-graphviz, so
// no Graphviz installation is needed.
//
//	dot := nodelink.ToDOT(root, nodelink.Options{Detailed: true})
//	svg, err := nodelink.RenderSVG(ctx, dot)
package nodelink
