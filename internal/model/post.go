package model

import "time"

// Post is one submission as delivered by a listing endpoint.
// Posts are immutable once produced by the transport; the crawl engine
// only reads them and the exporters serialize them verbatim.
type Post struct {
	// ID is the base-36 post identifier without the type prefix.
	ID string `json:"id"`

	// Fullname is the platform-wide identity ("t3_" + ID).
	// Deduplication and cursor tokens use fullnames.
	Fullname string `json:"fullname"`

	// Title is the submission title.
	Title string `json:"title"`

	// Author is the submitting account name, "[deleted]" when removed.
	Author string `json:"author"`

	// Subreddit is the community name without the r/ prefix.
	Subreddit string `json:"subreddit"`

	// Flair is the link flair text, empty when the post has none.
	Flair string `json:"flair,omitempty"`

	// PostType classifies the submission: text, link, image, video, or
	// gallery. Derived from the listing payload.
	PostType string `json:"post_type"`

	// URL is the submission's outbound URL. For self posts this is the
	// post's own permalink.
	URL string `json:"url"`

	// Permalink is the site-relative comment-page path.
	Permalink string `json:"permalink"`

	// Selftext is the markdown body of a self post, empty for link posts.
	Selftext string `json:"selftext,omitempty"`

	// SelftextHTML is the rendered body. Retained because embedded media
	// references only appear in the rendered form.
	SelftextHTML string `json:"-"`

	// Score is the net vote count at crawl time.
	Score int `json:"score"`

	// UpvoteRatio is the fraction of upvotes, 0 when not reported.
	UpvoteRatio float64 `json:"upvote_ratio,omitempty"`

	// NumComments is the comment count reported by the listing. The
	// crawled tree can be smaller when comments were removed or capped.
	NumComments int `json:"num_comments"`

	// CreatedUTC is the submission time.
	CreatedUTC time.Time `json:"created_utc"`

	// NSFW mirrors the over-18 flag.
	NSFW bool `json:"nsfw"`

	// Spoiler mirrors the spoiler flag.
	Spoiler bool `json:"spoiler"`

	// Stickied is true for pinned posts. Stickied posts appear on every
	// listing page, so they are the common source of cursor-drift
	// duplicates the seen-set absorbs.
	Stickied bool `json:"stickied"`

	// MediaURLs are direct media links harvested from the submission:
	// the outbound URL for image/video posts, preview sources, and
	// gallery entries.
	MediaURLs []string `json:"media_urls,omitempty"`
}

// HasMedia reports whether any downloadable media was found on the post.
func (p *Post) HasMedia() bool {
	return len(p.MediaURLs) > 0
}
