package forest

import "errors"

// ErrFinished reports that Add was called after Finish. A Builder is
// single-use; create a new one per post.
var ErrFinished = errors.New("forest already finished")
