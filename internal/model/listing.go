package model

// ItemKind tags the payload carried by a listing Item.
type ItemKind int

const (
	// ItemPost is a submission from a post listing.
	ItemPost ItemKind = iota

	// ItemComment is a single comment fragment, not yet linked into a tree.
	ItemComment

	// ItemMore is a "load more" placeholder.
	ItemMore
)

// String returns the kind name used in logs.
func (k ItemKind) String() string {
	switch k {
	case ItemPost:
		return "post"
	case ItemComment:
		return "comment"
	case ItemMore:
		return "more"
	default:
		return "unknown"
	}
}

// Item is one element of a listing stream: exactly one of Post, Comment,
// or More is set, selected by Kind. Items are immutable once produced.
type Item struct {
	Kind    ItemKind
	Post    *Post
	Comment *Comment
	More    *More
}

// PostItem wraps a post as a listing item.
func PostItem(p *Post) Item {
	return Item{Kind: ItemPost, Post: p}
}

// CommentItem wraps a comment fragment as a listing item.
func CommentItem(c *Comment) Item {
	return Item{Kind: ItemComment, Comment: c}
}

// MoreItem wraps a placeholder as a listing item.
func MoreItem(m *More) Item {
	return Item{Kind: ItemMore, More: m}
}

// Identity returns the deduplication key for the item: the platform
// fullname for posts and comments, a synthetic key for placeholders.
func (i Item) Identity() string {
	switch i.Kind {
	case ItemPost:
		return i.Post.Fullname
	case ItemComment:
		return i.Comment.Fullname
	case ItemMore:
		return i.More.Identity()
	default:
		return ""
	}
}

// Page is one fetched slice of a listing.
type Page struct {
	// Items are the page's entries in delivery order.
	Items []Item

	// After is the continuation token for the next page. Empty means the
	// listing is exhausted.
	After string
}
