package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// TargetKind identifies which listing surface a Target refers to.
type TargetKind int

const (
	// TargetSubreddit is a community's submission listing (r/<name>/new).
	TargetSubreddit TargetKind = iota

	// TargetUser is a user's submitted-posts listing (u/<name>/submitted).
	TargetUser

	// TargetUserComments is a user's comment listing (u/<name>/comments).
	// Derived from a TargetUser target when the job requests comment data.
	TargetUserComments

	// TargetThread is the comment listing of a single post.
	// Thread targets are created internally per post; they are never
	// parsed from user input.
	TargetThread
)

// String returns a human-readable representation of the target kind.
func (k TargetKind) String() string {
	switch k {
	case TargetSubreddit:
		return "subreddit"
	case TargetUser:
		return "user"
	case TargetUserComments:
		return "user-comments"
	case TargetThread:
		return "thread"
	default:
		return "unknown"
	}
}

// ErrInvalidTarget is returned when a target string cannot be parsed as a
// subreddit or user identifier.
var ErrInvalidTarget = errors.New("invalid target: expected r/<subreddit> or u/<user>")

// targetNamePattern matches valid subreddit and account names.
// Reddit allows letters, digits, underscores, and (for subreddits) hyphens,
// between 2 and 21 characters for communities and up to 20 for accounts.
// The permissive union keeps parsing simple; the upstream rejects the rest.
var targetNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{1,23}$`)

// Target identifies what a crawl job walks: a community, a user, one of a
// user's feeds, or a single post's comment thread.
type Target struct {
	// Kind selects the listing surface.
	Kind TargetKind `json:"kind"`

	// Name is the subreddit or account name without the r/ or u/ prefix.
	Name string `json:"name"`

	// Post is the base-36 post ID for TargetThread targets, empty otherwise.
	Post string `json:"post,omitempty"`
}

// ParseTarget parses a user-supplied target string.
// Accepted forms: "r/golang", "/r/golang", "u/someone", "user/someone",
// and a bare name, which is treated as a subreddit.
func ParseTarget(s string) (Target, error) {
	trimmed := strings.Trim(strings.TrimSpace(s), "/")
	if trimmed == "" {
		return Target{}, ErrInvalidTarget
	}

	kind := TargetSubreddit
	name := trimmed
	if prefix, rest, ok := strings.Cut(trimmed, "/"); ok {
		switch strings.ToLower(prefix) {
		case "r":
			kind = TargetSubreddit
		case "u", "user":
			kind = TargetUser
		default:
			return Target{}, fmt.Errorf("%w: unknown prefix %q", ErrInvalidTarget, prefix)
		}
		name = rest
	}

	if strings.Contains(name, "/") || !targetNamePattern.MatchString(name) {
		return Target{}, fmt.Errorf("%w: bad name %q", ErrInvalidTarget, name)
	}

	return Target{Kind: kind, Name: name}, nil
}

// ThreadTarget returns the comment-thread target for a post in the given
// subreddit. postID is the base-36 ID without the t3_ prefix.
func ThreadTarget(subreddit, postID string) Target {
	return Target{Kind: TargetThread, Name: subreddit, Post: postID}
}

// CommentsFeed returns the comment-listing variant of a user target.
// For any other kind the target is returned unchanged.
func (t Target) CommentsFeed() Target {
	if t.Kind == TargetUser {
		t.Kind = TargetUserComments
	}
	return t
}

// String formats the target the way users write it (r/name, u/name).
func (t Target) String() string {
	switch t.Kind {
	case TargetUser, TargetUserComments:
		return "u/" + t.Name
	case TargetThread:
		return "r/" + t.Name + "/comments/" + t.Post
	default:
		return "r/" + t.Name
	}
}

// DirName returns the output directory name for this target, matching the
// r_<name> / u_<name> layout of the exported data tree.
func (t Target) DirName() string {
	if t.Kind == TargetUser || t.Kind == TargetUserComments {
		return "u_" + t.Name
	}
	return "r_" + t.Name
}

// IsUser reports whether the target refers to an account rather than a
// community.
func (t Target) IsUser() bool {
	return t.Kind == TargetUser || t.Kind == TargetUserComments
}
