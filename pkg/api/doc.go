// Package api talks to the back-office REST API that serves referral trees.
//
// [Client] adds what the CLI and the server both need on top of net/http:
// bearer authentication, an outbound rate limit, retry of transient failures
// with backoff, status classification and caching of raw payloads per member.
//
//	c, err := api.NewClient(api.Config{BaseURL: "https://api.maxreward.test", Token: tok},
//	    cache.NewNullCache(), nil)
//	body, hit, err := c.FetchTree(ctx, "34", false)
//
// Payload bytes are returned as-is; decoding and normalization live in
// package referral.
package api
