package forest

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/ji-mi-alice/reddit-universal-scraper/internal/model"
)

// Report summarizes how a post's forest was assembled.
type Report struct {
	// Materialized is the number of real comment nodes in the forest,
	// removed and deleted ones included.
	Materialized int

	// Pending is the number of terminal pending nodes: placeholders the
	// policy refused, expansions that failed, or expansions never taken
	// before Finish.
	Pending int

	// Orphaned is the number of fragments whose parent never arrived.
	// They are promoted to roots rather than dropped.
	Orphaned int
}

// Builder assembles the comment stream of one post into a reply forest.
// It is single-use and not safe for concurrent use; the controller runs
// one Builder per post inside one worker.
type Builder struct {
	// postID is the fullname of the post the stream belongs to (t3_…).
	// Fragments whose ParentID equals it become roots.
	postID string

	// policy bounds placeholder expansion.
	policy Policy

	// logger receives records about refused and abandoned placeholders.
	logger *slog.Logger

	// nodes holds every attached comment by fullname.
	nodes map[string]*model.Comment

	// orphans buffers fragments keyed by the parent fullname that has
	// not arrived yet.
	orphans map[string][]*model.Comment

	// orphanMores buffers placeholders the same way.
	orphanMores map[string][]*model.More

	// roots holds top-level nodes in delivery order.
	roots []*model.Comment

	// expand is the queue of placeholders approved for follow-up
	// fetching, drained by TakeExpansions.
	expand []*model.More

	total    int
	pending  int
	orphaned int
	finished bool
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger for placeholder decisions.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBuilder creates a Builder for the post with the given fullname.
func NewBuilder(postFullname string, policy Policy, opts ...Option) *Builder {
	b := &Builder{
		postID:      postFullname,
		policy:      policy,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		nodes:       make(map[string]*model.Comment),
		orphans:     make(map[string][]*model.Comment),
		orphanMores: make(map[string][]*model.More),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Add consumes one item of the post's comment stream, in delivery
// order. Comment fragments attach immediately when their parent is
// present and are buffered otherwise; placeholders are either queued
// for expansion or converted to pending nodes on the spot. Items for
// kinds other than comments and placeholders are rejected.
func (b *Builder) Add(item model.Item) error {
	if b.finished {
		return ErrFinished
	}

	switch item.Kind {
	case model.ItemComment:
		return b.addComment(item.Comment)
	case model.ItemMore:
		return b.addMore(item.More)
	default:
		return fmt.Errorf("unexpected %s item in comment stream", item.Kind)
	}
}

func (b *Builder) addComment(c *model.Comment) error {
	if c == nil || c.Fullname == "" {
		return errors.New("comment fragment without identity")
	}
	if _, ok := b.nodes[c.Fullname]; ok {
		// Repeated delivery of a fragment already in the tree.
		return nil
	}

	if c.ParentID == b.postID {
		c.Depth = 0
		b.roots = append(b.roots, c)
		b.attach(c)
		return nil
	}

	if parent, ok := b.nodes[c.ParentID]; ok {
		c.Depth = parent.Depth + 1
		parent.Replies = append(parent.Replies, c)
		b.attach(c)
		return nil
	}

	b.orphans[c.ParentID] = append(b.orphans[c.ParentID], c)
	return nil
}

func (b *Builder) addMore(m *model.More) error {
	if m == nil || m.ParentID == "" {
		return errors.New("placeholder without parent identity")
	}

	if m.ParentID == b.postID {
		b.resolve(m, nil)
		return nil
	}
	if parent, ok := b.nodes[m.ParentID]; ok {
		b.resolve(m, parent)
		return nil
	}

	b.orphanMores[m.ParentID] = append(b.orphanMores[m.ParentID], m)
	return nil
}

// attach records c and drains everything that was waiting for it: first
// buffered child fragments, in their delivery order, then buffered
// placeholders. Draining recurses, so a whole chain attaches at once.
func (b *Builder) attach(c *model.Comment) {
	b.nodes[c.Fullname] = c
	b.total++

	for _, w := range b.orphans[c.Fullname] {
		w.Depth = c.Depth + 1
		c.Replies = append(c.Replies, w)
		b.attach(w)
	}
	delete(b.orphans, c.Fullname)

	for _, m := range b.orphanMores[c.Fullname] {
		b.resolve(m, c)
	}
	delete(b.orphanMores, c.Fullname)
}

// resolve decides a placeholder's fate: queue it for expansion when the
// policy's budgets allow, otherwise leave a terminal pending node. A
// nil parent means the placeholder sits directly under the post.
func (b *Builder) resolve(m *model.More, parent *model.Comment) {
	depth := 0
	if parent != nil {
		depth = parent.Depth + 1
	}

	if b.policy.permitsDepth(depth) && b.policy.permitsNodes(b.total, m.Count) {
		b.expand = append(b.expand, m)
		return
	}

	b.logger.Debug("placeholder refused by expansion policy",
		"parent", m.ParentID,
		"count", m.Count,
		"depth", depth)
	b.terminal(m, parent, depth)
}

// terminal materializes a placeholder as a pending node so the hidden
// subtree stays visible in the output.
func (b *Builder) terminal(m *model.More, parent *model.Comment, depth int) {
	node := &model.Comment{
		Fullname:  m.Identity(),
		PostID:    m.PostID,
		ParentID:  m.ParentID,
		Depth:     depth,
		State:     model.StatePending,
		MoreCount: m.Count,
	}

	if parent != nil {
		parent.Replies = append(parent.Replies, node)
	} else {
		b.roots = append(b.roots, node)
	}
	b.total++
	b.pending++
}

// TakeExpansions returns and clears the queue of placeholders approved
// for follow-up fetching. Children fetched for them re-enter through
// Add and may queue further placeholders, so callers loop until the
// queue comes back empty.
func (b *Builder) TakeExpansions() []*model.More {
	mores := b.expand
	b.expand = nil
	return mores
}

// Abandon converts a previously approved placeholder into a terminal
// pending node after its follow-up fetch failed.
func (b *Builder) Abandon(m *model.More) {
	depth := 0
	parent := b.nodes[m.ParentID]
	if parent != nil {
		depth = parent.Depth + 1
	}

	b.logger.Debug("placeholder abandoned",
		"parent", m.ParentID,
		"count", m.Count)
	b.terminal(m, parent, depth)
}

// Finish closes the stream and returns the forest roots in delivery
// order plus the build report. Expansions still queued are abandoned,
// and buffered fragments whose parent never arrived are promoted to
// roots so no delivered content is lost.
func (b *Builder) Finish() ([]*model.Comment, Report) {
	b.finished = true

	for _, m := range b.expand {
		b.Abandon(m)
	}
	b.expand = nil

	b.promoteOrphans()

	return b.roots, Report{
		Materialized: b.total - b.pending,
		Pending:      b.pending,
		Orphaned:     b.orphaned,
	}
}

// promoteOrphans turns fragments with a missing parent into roots. A
// fragment whose missing parent is itself buffered stays put: it
// attaches when that parent is promoted, so only the top of each
// stranded chain counts as orphaned.
func (b *Builder) promoteOrphans() {
	buffered := make(map[string]bool)
	for _, frags := range b.orphans {
		for _, c := range frags {
			buffered[c.Fullname] = true
		}
	}

	keys := make([]string, 0, len(b.orphans)+len(b.orphanMores))
	for key := range b.orphans {
		keys = append(keys, key)
	}
	for key := range b.orphanMores {
		if _, ok := b.orphans[key]; !ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		if buffered[key] {
			continue
		}

		for _, c := range b.orphans[key] {
			c.Depth = 0
			b.roots = append(b.roots, c)
			b.orphaned++
			b.attach(c)
		}
		delete(b.orphans, key)

		for _, m := range b.orphanMores[key] {
			b.terminal(m, nil, 0)
			b.orphaned++
		}
		delete(b.orphanMores, key)
	}

	// Anything still buffered forms a parent cycle, which a well-formed
	// listing cannot produce. Log and drop.
	for key, frags := range b.orphans {
		b.logger.Warn("dropping fragments in parent cycle",
			"parent", key,
			"fragments", len(frags))
	}
	for key, mores := range b.orphanMores {
		b.logger.Warn("dropping placeholders in parent cycle",
			"parent", key,
			"placeholders", len(mores))
	}
}
