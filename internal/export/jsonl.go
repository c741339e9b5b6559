package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ji-mi-alice/reddit-universal-scraper/internal/model"
)

// JSONL writes one self-describing JSON object per line. Posts and
// threads go to posts.jsonl; a thread's comment forest nests inside its
// line as arrays of reply objects, never flattened. Flat comments from
// user feeds go to comments.jsonl.
type JSONL struct {
	mu  sync.Mutex
	dir string

	posts    *jsonlFile
	comments *jsonlFile

	closed bool
}

// jsonlFile pairs an open file with its encoder. json.Encoder writes
// each value followed by a newline straight to the file, which is
// exactly the flush-per-record behavior exporters promise.
type jsonlFile struct {
	f   *os.File
	enc *json.Encoder
}

// NewJSONL creates a JSONL exporter rooted at dir, creating the
// directory if needed.
func NewJSONL(dir string) (*JSONL, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}
	return &JSONL{dir: dir}, nil
}

// WritePost appends the post as one line of posts.jsonl.
func (e *JSONL) WritePost(p *model.Post) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if err := e.ensurePosts(); err != nil {
		return err
	}
	return e.posts.append(p)
}

// WriteThread appends the post with its nested comment forest as one
// line of posts.jsonl.
func (e *JSONL) WriteThread(t *model.Thread) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if err := e.ensurePosts(); err != nil {
		return err
	}
	return e.posts.append(t)
}

// WriteComment appends one flat comment as one line of comments.jsonl.
func (e *JSONL) WriteComment(c *model.Comment) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if err := e.ensureComments(); err != nil {
		return err
	}
	return e.comments.append(c)
}

// Close closes whichever files were written.
func (e *JSONL) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	var firstErr error
	for _, jf := range []*jsonlFile{e.posts, e.comments} {
		if jf == nil {
			continue
		}
		if err := jf.f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close export file: %w", err)
		}
	}
	return firstErr
}

func (e *JSONL) ensurePosts() error {
	if e.posts != nil {
		return nil
	}
	jf, err := openJSONL(filepath.Join(e.dir, "posts.jsonl"))
	if err != nil {
		return err
	}
	e.posts = jf
	return nil
}

func (e *JSONL) ensureComments() error {
	if e.comments != nil {
		return nil
	}
	jf, err := openJSONL(filepath.Join(e.dir, "comments.jsonl"))
	if err != nil {
		return err
	}
	e.comments = jf
	return nil
}

func openJSONL(path string) (*jsonlFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	return &jsonlFile{f: f, enc: json.NewEncoder(f)}, nil
}

func (jf *jsonlFile) append(v any) error {
	if err := jf.enc.Encode(v); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}
