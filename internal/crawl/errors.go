package crawl

import "errors"

// ErrAlreadyRan reports that Run was called a second time. A Controller
// runs exactly one job.
var ErrAlreadyRan = errors.New("controller already ran its job")

// ErrNoCheckpoint reports that a resume was requested for a job with no
// saved checkpoint.
var ErrNoCheckpoint = errors.New("no checkpoint for job")

// ErrNoStore reports that a resume was requested without a job
// database to read the checkpoint from.
var ErrNoStore = errors.New("resume requires the job database")
