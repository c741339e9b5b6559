package forest

const (
	// DefaultMaxDepth is the default number of reply levels to expand.
	DefaultMaxDepth = 10

	// DefaultMaxNodes is the default cap on nodes per post, pending
	// placeholders included.
	DefaultMaxNodes = 500
)

// Policy bounds placeholder expansion. It never drops fragments that
// were actually delivered; it only decides whether hidden children are
// worth a follow-up fetch. A placeholder the policy refuses becomes a
// terminal pending node instead.
type Policy struct {
	// MaxDepth is the number of reply levels expansion may materialize:
	// 1 permits top-level comments only, 2 adds their direct replies,
	// and so on. 0 means unlimited.
	MaxDepth int

	// MaxNodes caps the total nodes per post. An expansion whose hidden
	// children would push the count past the cap is refused. 0 means
	// unlimited.
	MaxNodes int
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{MaxDepth: DefaultMaxDepth, MaxNodes: DefaultMaxNodes}
}

// permitsDepth reports whether expansion may create children at the
// given nesting level (0 for top-level comments).
func (p Policy) permitsDepth(depth int) bool {
	return p.MaxDepth == 0 || depth < p.MaxDepth
}

// permitsNodes reports whether count hidden children still fit next to
// total existing nodes. An unknown count ("continue this thread"
// placeholders report 0) is treated as at least one.
func (p Policy) permitsNodes(total, count int) bool {
	if p.MaxNodes == 0 {
		return true
	}
	if count < 1 {
		count = 1
	}
	return total+count <= p.MaxNodes
}
