package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ji-mi-alice/reddit-universal-scraper/internal/fetch"
)

// About is a community's metadata snapshot.
type About struct {
	// Title is the community's display title.
	Title string `json:"title"`

	// PublicDescription is the sidebar blurb.
	PublicDescription string `json:"public_description"`

	// Subscribers is the member count.
	Subscribers int `json:"subscribers"`

	// ActiveUserCount is the here-now count at fetch time.
	ActiveUserCount int `json:"active_user_count"`

	// Over18 mirrors the community's NSFW flag.
	Over18 bool `json:"over_18"`

	// CreatedUTC is the community creation time.
	CreatedUTC time.Time `json:"created_utc"`
}

// Rule is one entry of a community's posted rules.
type Rule struct {
	ShortName   string `json:"short_name"`
	Description string `json:"description"`
	Kind        string `json:"kind"`
}

// Moderator is one entry of a community's moderator list.
type Moderator struct {
	Name  string    `json:"name"`
	Since time.Time `json:"since"`
}

// Flair is one configured link flair.
type Flair struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

// About fetches the community metadata document.
func (c *Client) About(ctx context.Context, subreddit string) (*About, error) {
	const op = "fetch about"

	body, err := c.get(ctx, op, fmt.Sprintf("%s/r/%s/about.json?raw_json=1", c.oldBaseURL, url.PathEscape(subreddit)))
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Data struct {
			Title             string  `json:"title"`
			PublicDescription string  `json:"public_description"`
			Subscribers       int     `json:"subscribers"`
			ActiveUserCount   int     `json:"active_user_count"`
			Over18            bool    `json:"over18"`
			CreatedUTC        float64 `json:"created_utc"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fetch.Transient(op, fmt.Errorf("decode about: %w", err))
	}

	d := envelope.Data
	return &About{
		Title:             d.Title,
		PublicDescription: d.PublicDescription,
		Subscribers:       d.Subscribers,
		ActiveUserCount:   d.ActiveUserCount,
		Over18:            d.Over18,
		CreatedUTC:        epochToTime(d.CreatedUTC),
	}, nil
}

// Rules fetches the community's posted rules.
func (c *Client) Rules(ctx context.Context, subreddit string) ([]Rule, error) {
	const op = "fetch rules"

	body, err := c.get(ctx, op, fmt.Sprintf("%s/r/%s/about/rules.json?raw_json=1", c.oldBaseURL, url.PathEscape(subreddit)))
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Rules []struct {
			ShortName   string `json:"short_name"`
			Description string `json:"description"`
			Kind        string `json:"kind"`
		} `json:"rules"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fetch.Transient(op, fmt.Errorf("decode rules: %w", err))
	}

	rules := make([]Rule, 0, len(envelope.Rules))
	for _, r := range envelope.Rules {
		rules = append(rules, Rule{ShortName: r.ShortName, Description: r.Description, Kind: r.Kind})
	}
	return rules, nil
}

// Moderators fetches the community's moderator list.
func (c *Client) Moderators(ctx context.Context, subreddit string) ([]Moderator, error) {
	const op = "fetch moderators"

	body, err := c.get(ctx, op, fmt.Sprintf("%s/r/%s/about/moderators.json?raw_json=1", c.oldBaseURL, url.PathEscape(subreddit)))
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Data struct {
			Children []struct {
				Name string  `json:"name"`
				Date float64 `json:"date"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fetch.Transient(op, fmt.Errorf("decode moderators: %w", err))
	}

	mods := make([]Moderator, 0, len(envelope.Data.Children))
	for _, m := range envelope.Data.Children {
		mods = append(mods, Moderator{Name: m.Name, Since: epochToTime(m.Date)})
	}
	return mods, nil
}

// Flairs fetches the community's configured link flairs. Communities
// that disable flair listing answer 403, which surfaces as a permanent
// error for the caller to tolerate.
func (c *Client) Flairs(ctx context.Context, subreddit string) ([]Flair, error) {
	const op = "fetch flairs"

	body, err := c.get(ctx, op, fmt.Sprintf("%s/r/%s/api/link_flair_v2.json?raw_json=1", c.oldBaseURL, url.PathEscape(subreddit)))
	if err != nil {
		return nil, err
	}

	var entries []struct {
		Text string `json:"text"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fetch.Transient(op, fmt.Errorf("decode flairs: %w", err))
	}

	flairs := make([]Flair, 0, len(entries))
	for _, f := range entries {
		flairs = append(flairs, Flair{Text: f.Text, Type: f.Type})
	}
	return flairs, nil
}

// FetchMedia downloads one media URL and returns the bytes and the
// response content type. Downloads larger than the body cap fail with
// ErrMediaTooLarge rather than truncating silently.
func (c *Client) FetchMedia(ctx context.Context, mediaURL string) ([]byte, string, error) {
	const op = "fetch media"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, "", fetch.Permanent(op, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", fetch.Canceled(op, err)
		}
		return nil, "", fetch.Transient(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", classifyStatus(op, resp)
	}
	if resp.ContentLength > c.maxBodySize {
		return nil, "", fetch.Permanent(op, ErrMediaTooLarge)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", fetch.Canceled(op, err)
		}
		return nil, "", fetch.Transient(op, err)
	}
	if int64(len(data)) > c.maxBodySize {
		return nil, "", fetch.Permanent(op, ErrMediaTooLarge)
	}

	return data, resp.Header.Get("Content-Type"), nil
}
