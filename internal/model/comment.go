package model

import "time"

// CommentState describes how much of a comment node is actually present.
type CommentState int

const (
	// StateMaterialized is a regular comment with author and body intact.
	StateMaterialized CommentState = iota

	// StateRemoved marks a comment taken down by moderation. The node is
	// kept with a redacted body so its descendants stay attached.
	StateRemoved

	// StateDeleted marks a comment deleted by its author. Kept for the
	// same reason as StateRemoved.
	StateDeleted

	// StatePending marks an unexpanded "load more" placeholder that the
	// expansion policy declined to fetch. MoreCount records how many
	// descendants remain behind it.
	StatePending
)

// String returns the state name used in exports.
func (s CommentState) String() string {
	switch s {
	case StateMaterialized:
		return "materialized"
	case StateRemoved:
		return "removed"
	case StateDeleted:
		return "deleted"
	case StatePending:
		return "pending"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so states serialize as
// their names in JSON exports rather than bare integers.
func (s CommentState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Comment is one node of a post's reply forest.
//
// A Comment arrives from the transport as a flat fragment (Replies empty,
// Depth zero); the forest builder links fragments into trees and assigns
// depths. Sibling order inside Replies is the upstream delivery order and
// must not be re-sorted.
type Comment struct {
	// ID is the base-36 comment identifier without the type prefix.
	ID string `json:"id"`

	// Fullname is the platform-wide identity ("t1_" + ID).
	Fullname string `json:"fullname"`

	// PostID is the fullname of the post this comment belongs to (t3_…).
	PostID string `json:"post_id"`

	// ParentID is the fullname of the parent comment, or the post
	// fullname for top-level comments.
	ParentID string `json:"parent_id"`

	// Author is the commenting account, "[deleted]" for deleted nodes.
	Author string `json:"author"`

	// Body is the markdown body. Removed and deleted nodes carry the
	// platform's redaction marker instead of content.
	Body string `json:"body"`

	// Score is the net vote count at crawl time.
	Score int `json:"score"`

	// CreatedUTC is the comment time. Zero for placeholder nodes.
	CreatedUTC time.Time `json:"created_utc,omitzero"`

	// Depth is the nesting level assigned by the forest builder:
	// 0 for top-level comments.
	Depth int `json:"depth"`

	// State records whether the node is materialized, redacted, or an
	// abandoned placeholder.
	State CommentState `json:"state"`

	// MoreCount is the number of unfetched descendants behind a
	// StatePending node, 0 otherwise.
	MoreCount int `json:"more_count,omitempty"`

	// Replies holds child comments in delivery order.
	Replies []*Comment `json:"replies,omitempty"`
}

// IsTopLevel reports whether the comment sits directly under its post.
func (c *Comment) IsTopLevel() bool {
	return c.ParentID == c.PostID
}

// Size returns the number of nodes in the subtree rooted at c, including c.
func (c *Comment) Size() int {
	n := 1
	for _, r := range c.Replies {
		n += r.Size()
	}
	return n
}

// Walk visits c and every descendant in depth-first delivery order.
func (c *Comment) Walk(fn func(*Comment)) {
	fn(c)
	for _, r := range c.Replies {
		r.Walk(fn)
	}
}

// More is a "load more" placeholder delivered inside a comment listing:
// it names children that exist under a parent without carrying their
// content. The forest builder either expands it through a follow-up fetch
// or converts it into a terminal StatePending node.
type More struct {
	// PostID is the fullname of the post the hidden children belong to.
	PostID string `json:"post_id"`

	// ParentID is the fullname of the parent the children sit under.
	ParentID string `json:"parent_id"`

	// Count is the upstream's count of hidden descendants. It can exceed
	// len(Children) because deeper placeholders hide their own subtrees.
	Count int `json:"count"`

	// Children are the base-36 IDs to request from the expansion
	// endpoint, in display order.
	Children []string `json:"children"`
}

// Identity returns a synthetic identity for deduplication. Placeholders
// have no fullname of their own; the parent plus the first hidden child
// is stable across repeated deliveries of the same listing.
func (m *More) Identity() string {
	first := ""
	if len(m.Children) > 0 {
		first = m.Children[0]
	}
	return "more:" + m.ParentID + ":" + first
}
