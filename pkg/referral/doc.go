// Package referral turns the back-office referral tree payload into a single
// rooted tree for the front-end tree renderer.
//
// # Overview
//
// The API describes a binary referral tree level by level. Each level lists
// parent entries with an optional left and right child. The same member can
// show up many times (once as a bare parent reference, again as a fully
// populated child), edges may be repeated, and inconsistent data can describe
// cycles or give a member two parents.
//
// [Build] folds that description into one tree keyed by member id:
//
//   - every id maps to exactly one [TreeNode]; repeated mentions only fill in
//     fields that still hold fallbacks (phone falls back to name, image to
//     [PlaceholderImage])
//   - the root member is never attached as a child
//   - a member keeps the first parent it was attached to
//   - an edge that would close a cycle, a self-loop or a repeated edge is dropped
//
// Ids are compared through [NormalizeID] only, so numeric and string ids from
// different fields of the payload line up.
//
// # Failure policy
//
// Nothing in this package returns an error for bad tree data. A payload
// without a root member or level list normalizes to nil; every dropped edge is
// recorded as an [AttachResult] in the [Report] returned by [Build].
//
// # Usage
//
//	resp := referral.Decode(body)
//	root, rep := referral.Build(resp)
//	if root == nil {
//	    // nothing to render
//	}
//	_ = referral.WriteJSON(root, os.Stdout)
//
// Each call builds its registries from scratch, so concurrent calls on
// different payloads need no synchronization.
package referral
