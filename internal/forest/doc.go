// Package forest assembles flat comment fragments into per-post reply
// trees.
//
// The comment listing delivers fragments in display order, but not
// necessarily parent-before-child, and interleaves "load more"
// placeholders that name hidden children without carrying them. The
// Builder buffers fragments whose parent has not arrived yet, keyed by
// the parent identity, and attaches the whole waiting chain the moment
// the parent shows up. Placeholders are queued for follow-up fetching
// when the expansion policy's depth and node budgets allow it;
// otherwise they become terminal pending nodes in the tree, reported
// rather than dropped. Removed and deleted comments materialize with
// their state marked, because omitting them would detach every
// descendant below them.
//
// Sibling order always equals delivery order. The Builder never
// re-sorts.
package forest
