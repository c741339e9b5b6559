package reddit

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ji-mi-alice/reddit-universal-scraper/internal/model"
)

// Reddit wraps every payload in a typed envelope. Kinds seen on the
// surfaces this client reads.
const (
	kindListing = "Listing"
	kindPost    = "t3"
	kindComment = "t1"
	kindMore    = "more"
)

// thing is the kind/data envelope around every Reddit object.
type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// listingData is the payload of a kind=Listing thing.
type listingData struct {
	Children []thing `json:"children"`
	After    string  `json:"after"`
}

// postData is the payload of a kind=t3 thing, reduced to the fields the
// crawler uses. raw_json=1 keeps URLs and bodies unescaped.
type postData struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Title         string  `json:"title"`
	Author        string  `json:"author"`
	Subreddit     string  `json:"subreddit"`
	LinkFlairText string  `json:"link_flair_text"`
	URL           string  `json:"url"`
	Permalink     string  `json:"permalink"`
	Selftext      string  `json:"selftext"`
	SelftextHTML  string  `json:"selftext_html"`
	Score         int     `json:"score"`
	UpvoteRatio   float64 `json:"upvote_ratio"`
	NumComments   int     `json:"num_comments"`
	CreatedUTC    float64 `json:"created_utc"`
	Over18        bool    `json:"over_18"`
	Spoiler       bool    `json:"spoiler"`
	Stickied      bool    `json:"stickied"`
	IsSelf        bool    `json:"is_self"`
	IsVideo       bool    `json:"is_video"`
	IsGallery     bool    `json:"is_gallery"`
	PostHint      string  `json:"post_hint"`

	Preview struct {
		Images []struct {
			Source struct {
				URL string `json:"url"`
			} `json:"source"`
		} `json:"images"`
	} `json:"preview"`

	Media struct {
		RedditVideo struct {
			FallbackURL string `json:"fallback_url"`
		} `json:"reddit_video"`
	} `json:"media"`

	GalleryData struct {
		Items []struct {
			MediaID string `json:"media_id"`
		} `json:"items"`
	} `json:"gallery_data"`

	// MediaMetadata maps gallery media IDs to their source variants.
	MediaMetadata map[string]struct {
		S struct {
			U   string `json:"u"`
			GIF string `json:"gif"`
			MP4 string `json:"mp4"`
		} `json:"s"`
	} `json:"media_metadata"`
}

// commentData is the payload of a kind=t1 thing. Replies stay raw
// because Reddit sends either a nested Listing thing or the empty
// string.
type commentData struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	LinkID     string          `json:"link_id"`
	ParentID   string          `json:"parent_id"`
	Author     string          `json:"author"`
	Body       string          `json:"body"`
	Score      int             `json:"score"`
	CreatedUTC float64         `json:"created_utc"`
	Replies    json.RawMessage `json:"replies"`
}

// moreData is the payload of a kind=more stub.
type moreData struct {
	Count    int      `json:"count"`
	ParentID string   `json:"parent_id"`
	Children []string `json:"children"`
}

// moreChildrenResponse is the /api/morechildren envelope. Errors are
// [code, message, field] triples.
type moreChildrenResponse struct {
	JSON struct {
		Errors [][]any `json:"errors"`
		Data   struct {
			Things []thing `json:"things"`
		} `json:"data"`
	} `json:"json"`
}

// imageExtensions are URL suffixes treated as direct images when no
// post_hint is present.
var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

func (d *postData) toModel() *model.Post {
	return &model.Post{
		ID:           d.ID,
		Fullname:     d.Name,
		Title:        d.Title,
		Author:       d.Author,
		Subreddit:    d.Subreddit,
		Flair:        d.LinkFlairText,
		PostType:     d.postType(),
		URL:          d.URL,
		Permalink:    d.Permalink,
		Selftext:     d.Selftext,
		SelftextHTML: d.SelftextHTML,
		Score:        d.Score,
		UpvoteRatio:  d.UpvoteRatio,
		NumComments:  d.NumComments,
		CreatedUTC:   epochToTime(d.CreatedUTC),
		NSFW:         d.Over18,
		Spoiler:      d.Spoiler,
		Stickied:     d.Stickied,
		MediaURLs:    d.mediaURLs(),
	}
}

// postType classifies the submission the way the export schema expects:
// text, video, gallery, image, or link.
func (d *postData) postType() string {
	switch {
	case d.IsSelf:
		return "text"
	case d.IsVideo:
		return "video"
	case d.IsGallery:
		return "gallery"
	case d.PostHint == "image":
		return "image"
	case d.PostHint == "hosted:video" || d.PostHint == "rich:video":
		return "video"
	}
	lower := strings.ToLower(d.URL)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return "image"
		}
	}
	return "link"
}

// mediaURLs harvests direct media links from the structured payload:
// the outbound URL of image posts, the video fallback, preview sources,
// and gallery entries in display order.
func (d *postData) mediaURLs() []string {
	var urls []string
	seen := make(map[string]bool)
	add := func(u string) {
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		urls = append(urls, u)
	}

	if d.Media.RedditVideo.FallbackURL != "" {
		add(d.Media.RedditVideo.FallbackURL)
	}
	if d.postType() == "image" {
		add(d.URL)
	}
	for _, img := range d.Preview.Images {
		add(img.Source.URL)
	}

	// Gallery entries follow gallery_data order; galleries whose order
	// list is missing fall back to sorted IDs so output stays stable.
	ids := make([]string, 0, len(d.MediaMetadata))
	if len(d.GalleryData.Items) > 0 {
		for _, item := range d.GalleryData.Items {
			ids = append(ids, item.MediaID)
		}
	} else {
		for id := range d.MediaMetadata {
			ids = append(ids, id)
		}
		sort.Strings(ids)
	}
	for _, id := range ids {
		meta, ok := d.MediaMetadata[id]
		if !ok {
			continue
		}
		switch {
		case meta.S.U != "":
			add(meta.S.U)
		case meta.S.GIF != "":
			add(meta.S.GIF)
		case meta.S.MP4 != "":
			add(meta.S.MP4)
		}
	}

	return urls
}

func (d *commentData) toModel() *model.Comment {
	return &model.Comment{
		ID:         d.ID,
		Fullname:   d.Name,
		PostID:     d.LinkID,
		ParentID:   d.ParentID,
		Author:     d.Author,
		Body:       d.Body,
		Score:      d.Score,
		CreatedUTC: epochToTime(d.CreatedUTC),
		State:      commentState(d.Body),
	}
}

// replyChildren unwraps the nested reply Listing, which Reddit encodes
// as the empty string when a comment has no replies.
func (d *commentData) replyChildren() ([]thing, error) {
	raw := strings.TrimSpace(string(d.Replies))
	if raw == "" || raw == `""` || raw == "null" {
		return nil, nil
	}

	var th thing
	if err := json.Unmarshal(d.Replies, &th); err != nil {
		return nil, fmt.Errorf("decode reply listing: %w", err)
	}
	var ld listingData
	if err := json.Unmarshal(th.Data, &ld); err != nil {
		return nil, fmt.Errorf("decode reply listing data: %w", err)
	}
	return ld.Children, nil
}

func (d *moreData) toModel(postFullname string) *model.More {
	return &model.More{
		PostID:   postFullname,
		ParentID: d.ParentID,
		Count:    d.Count,
		Children: d.Children,
	}
}

// commentState derives the node state from the body's redaction marker.
// A "[deleted]" author alone does not redact the comment; only the body
// markers do.
func commentState(body string) model.CommentState {
	switch body {
	case "[removed]":
		return model.StateRemoved
	case "[deleted]":
		return model.StateDeleted
	default:
		return model.StateMaterialized
	}
}

// epochToTime converts Reddit's fractional epoch seconds.
func epochToTime(epoch float64) time.Time {
	if epoch == 0 {
		return time.Time{}
	}
	return time.Unix(int64(epoch), 0).UTC()
}

// decodeListing unpacks a kind=Listing envelope into its children and
// continuation token.
func decodeListing(data []byte) (*listingData, error) {
	var th thing
	if err := json.Unmarshal(data, &th); err != nil {
		return nil, fmt.Errorf("decode listing envelope: %w", err)
	}
	if th.Kind != kindListing {
		return nil, fmt.Errorf("unexpected envelope kind %q, want Listing", th.Kind)
	}
	var ld listingData
	if err := json.Unmarshal(th.Data, &ld); err != nil {
		return nil, fmt.Errorf("decode listing payload: %w", err)
	}
	return &ld, nil
}

// flattenComments walks a comment Listing depth-first, emitting each
// fragment before its replies so delivery order is preserved, and
// keeping more-stubs in place as placeholder items.
func flattenComments(children []thing, postFullname string) ([]model.Item, error) {
	var items []model.Item
	for _, th := range children {
		switch th.Kind {
		case kindComment:
			var cd commentData
			if err := json.Unmarshal(th.Data, &cd); err != nil {
				return nil, fmt.Errorf("decode comment: %w", err)
			}
			items = append(items, model.CommentItem(cd.toModel()))

			replies, err := cd.replyChildren()
			if err != nil {
				return nil, err
			}
			if len(replies) > 0 {
				nested, err := flattenComments(replies, postFullname)
				if err != nil {
					return nil, err
				}
				items = append(items, nested...)
			}
		case kindMore:
			var md moreData
			if err := json.Unmarshal(th.Data, &md); err != nil {
				return nil, fmt.Errorf("decode more stub: %w", err)
			}
			items = append(items, model.MoreItem(md.toModel(postFullname)))
		default:
			// Unknown kinds inside a comment listing are skipped, not
			// fatal; Reddit adds envelope kinds over time.
			continue
		}
	}
	return items, nil
}
