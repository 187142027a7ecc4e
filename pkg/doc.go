// Package pkg holds the libraries behind the maxreward referral tree tool.
//
// # Overview
//
// The back-office API describes a member's binary referral tree level by
// level. These packages fetch that payload, fold it into one rooted tree and
// render it for people and for the front-end tree component.
//
//  1. [referral] - payload types, tolerant decoding and normalization
//  2. [api] - upstream client with caching, retries and rate limiting
//  3. [pipeline] - orchestration (load → normalize → render → snapshot)
//  4. [render] - text, DOT, SVG, PDF and PNG output
//  5. [cache], [store] - payload/artifact caching and snapshot history
//  6. [observability], [metrics] - hook registry and its Prometheus backend
//
// # Data flow
//
//	GET /api/member/referral-tree/{id}
//	         ↓
//	    [api] package (fetch, cached per member)
//	         ↓
//	    [referral] package (decode + normalize)
//	         ↓
//	    [render] package (text / DOT / SVG / PDF / PNG)
//	         ↓
//	    [store] package (optional snapshot)
//
// The CLI in cmd/maxreward and the HTTP server in internal/server are thin
// layers over [pipeline.Runner].
//
// [referral]: https://pkg.go.dev/github.com/finobytes/maxreward/pkg/referral
// [api]: https://pkg.go.dev/github.com/finobytes/maxreward/pkg/api
// [pipeline]: https://pkg.go.dev/github.com/finobytes/maxreward/pkg/pipeline
// [pipeline.Runner]: https://pkg.go.dev/github.com/finobytes/maxreward/pkg/pipeline#Runner
// [render]: https://pkg.go.dev/github.com/finobytes/maxreward/pkg/render
// [cache]: https://pkg.go.dev/github.com/finobytes/maxreward/pkg/cache
// [store]: https://pkg.go.dev/github.com/finobytes/maxreward/pkg/store
// [observability]: https://pkg.go.dev/github.com/finobytes/maxreward/pkg/observability
// [metrics]: https://pkg.go.dev/github.com/finobytes/maxreward/pkg/metrics
package pkg
