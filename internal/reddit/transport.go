package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ji-mi-alice/reddit-universal-scraper/internal/fetch"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/model"
)

// Client implements the scheduler's transport contract.
var _ fetch.Transport = (*Client)(nil)

// ListPage fetches one slice of the target's listing. Subreddit and
// user targets page through new.json/submitted.json/comments.json with
// the after cursor; thread targets return the whole comment tree as a
// single page with no continuation.
func (c *Client) ListPage(ctx context.Context, target model.Target, cursor string, pageSize int) (*model.Page, error) {
	const op = "list page"

	if target.Kind == model.TargetThread {
		return c.threadPage(ctx, target, pageSize)
	}

	endpoint, err := c.listingURL(target)
	if err != nil {
		return nil, fetch.Permanent(op, err)
	}

	q := url.Values{}
	q.Set("raw_json", "1")
	if pageSize > 0 {
		q.Set("limit", strconv.Itoa(pageSize))
	}
	if cursor != "" {
		q.Set("after", cursor)
	}

	body, err := c.get(ctx, op, endpoint+"?"+q.Encode())
	if err != nil {
		return nil, err
	}

	ld, err := decodeListing(body)
	if err != nil {
		return nil, fetch.Transient(op, err)
	}

	items := make([]model.Item, 0, len(ld.Children))
	for _, th := range ld.Children {
		switch th.Kind {
		case kindPost:
			var pd postData
			if err := json.Unmarshal(th.Data, &pd); err != nil {
				return nil, fetch.Transient(op, fmt.Errorf("decode post: %w", err))
			}
			items = append(items, model.PostItem(pd.toModel()))
		case kindComment:
			var cd commentData
			if err := json.Unmarshal(th.Data, &cd); err != nil {
				return nil, fetch.Transient(op, fmt.Errorf("decode comment: %w", err))
			}
			items = append(items, model.CommentItem(cd.toModel()))
		default:
			continue
		}
	}

	return &model.Page{Items: items, After: ld.After}, nil
}

func (c *Client) listingURL(target model.Target) (string, error) {
	switch target.Kind {
	case model.TargetSubreddit:
		return fmt.Sprintf("%s/r/%s/new.json", c.baseURL, target.Name), nil
	case model.TargetUser:
		return fmt.Sprintf("%s/user/%s/submitted.json", c.baseURL, target.Name), nil
	case model.TargetUserComments:
		return fmt.Sprintf("%s/user/%s/comments.json", c.baseURL, target.Name), nil
	default:
		return "", fmt.Errorf("no listing endpoint for target %s", target)
	}
}

// threadPage fetches one post's comment tree. The response is a
// two-element array: the post's own listing, then the comment listing.
// The returned page carries the post item first, the flattened
// fragments after it, and no continuation token.
func (c *Client) threadPage(ctx context.Context, target model.Target, pageSize int) (*model.Page, error) {
	const op = "fetch thread"

	q := url.Values{}
	q.Set("raw_json", "1")
	if pageSize > 0 {
		q.Set("limit", strconv.Itoa(pageSize))
	}

	endpoint := fmt.Sprintf("%s/r/%s/comments/%s.json", c.baseURL, target.Name, target.Post)
	body, err := c.get(ctx, op, endpoint+"?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var envelopes []json.RawMessage
	if err := json.Unmarshal(body, &envelopes); err != nil {
		return nil, fetch.Transient(op, fmt.Errorf("decode thread response: %w", err))
	}
	if len(envelopes) < 2 {
		return nil, fetch.Transient(op, errors.New("thread response missing comment listing"))
	}

	postListing, err := decodeListing(envelopes[0])
	if err != nil {
		return nil, fetch.Transient(op, err)
	}
	if len(postListing.Children) == 0 {
		return nil, fetch.Permanent(op, errors.New("thread has no post"))
	}
	var pd postData
	if err := json.Unmarshal(postListing.Children[0].Data, &pd); err != nil {
		return nil, fetch.Transient(op, fmt.Errorf("decode thread post: %w", err))
	}
	post := pd.toModel()

	commentListing, err := decodeListing(envelopes[1])
	if err != nil {
		return nil, fetch.Transient(op, err)
	}
	fragments, err := flattenComments(commentListing.Children, post.Fullname)
	if err != nil {
		return nil, fetch.Transient(op, err)
	}

	items := make([]model.Item, 0, len(fragments)+1)
	items = append(items, model.PostItem(post))
	items = append(items, fragments...)
	return &model.Page{Items: items}, nil
}

// FetchChildren resolves a placeholder through the expansion endpoint.
// At most MaxChildrenPerFetch IDs fit in one call; ChunkChildren splits
// longer lists.
func (c *Client) FetchChildren(ctx context.Context, postFullname string, childIDs []string) ([]model.Item, error) {
	const op = "expand comments"

	if len(childIDs) == 0 {
		return nil, nil
	}
	if len(childIDs) > MaxChildrenPerFetch {
		return nil, fetch.Permanent(op,
			fmt.Errorf("%d child ids exceed the per-call limit of %d", len(childIDs), MaxChildrenPerFetch))
	}

	q := url.Values{}
	q.Set("api_type", "json")
	q.Set("raw_json", "1")
	q.Set("link_id", postFullname)
	q.Set("children", strings.Join(childIDs, ","))

	body, err := c.get(ctx, op, c.baseURL+"/api/morechildren.json?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var mcr moreChildrenResponse
	if err := json.Unmarshal(body, &mcr); err != nil {
		return nil, fetch.Transient(op, fmt.Errorf("decode morechildren response: %w", err))
	}
	if len(mcr.JSON.Errors) > 0 {
		return nil, fetch.Permanent(op, fmt.Errorf("api errors: %v", mcr.JSON.Errors))
	}

	items, err := flattenComments(mcr.JSON.Data.Things, postFullname)
	if err != nil {
		return nil, fetch.Transient(op, err)
	}
	return items, nil
}

// ChunkChildren splits placeholder child IDs into slices the expansion
// endpoint accepts.
func ChunkChildren(ids []string) [][]string {
	if len(ids) == 0 {
		return nil
	}
	var chunks [][]string
	for len(ids) > MaxChildrenPerFetch {
		chunks = append(chunks, ids[:MaxChildrenPerFetch])
		ids = ids[MaxChildrenPerFetch:]
	}
	return append(chunks, ids)
}
