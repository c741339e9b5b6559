package walker

import "errors"

// ErrEnd reports that the walk is over: the listing ran out of
// continuation tokens or the item cap was reached. It marks normal
// completion, not a failure.
var ErrEnd = errors.New("end of listing")
