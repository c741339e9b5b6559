package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ji-mi-alice/reddit-universal-scraper/internal/model"
)

var (
	postColumns = []string{
		"id", "fullname", "title", "author", "subreddit", "flair",
		"post_type", "url", "permalink", "selftext", "score",
		"upvote_ratio", "num_comments", "created_utc", "nsfw", "spoiler",
		"stickied", "media_urls",
	}

	commentColumns = []string{
		"post_id", "id", "fullname", "parent_id", "author", "body",
		"score", "created_utc", "depth", "position", "state", "more_count",
	}
)

// CSV writes posts.csv and comments.csv under one directory. Comment
// rows carry depth and sibling position, so the flat file preserves the
// tree. Files open lazily on first use and are appended to, which lets
// a resumed job continue the same files without repeating headers.
type CSV struct {
	mu  sync.Mutex
	dir string

	posts    *csvFile
	comments *csvFile

	// commentSeq numbers flat comment records from user feeds, where no
	// sibling position exists.
	commentSeq int

	closed bool
}

// csvFile pairs an open file with its record writer.
type csvFile struct {
	f *os.File
	w *csv.Writer
}

// NewCSV creates a CSV exporter rooted at dir, creating the directory
// if needed.
func NewCSV(dir string) (*CSV, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}
	return &CSV{dir: dir}, nil
}

// WritePost appends one row to posts.csv.
func (e *CSV) WritePost(p *model.Post) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if err := e.ensurePosts(); err != nil {
		return err
	}
	return e.posts.append(postRow(p))
}

// WriteThread appends the post row and one comment row per node,
// depth-first in delivery order.
func (e *CSV) WriteThread(t *model.Thread) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if err := e.ensurePosts(); err != nil {
		return err
	}
	if err := e.posts.append(postRow(t.Post)); err != nil {
		return err
	}

	if len(t.Comments) == 0 {
		return nil
	}
	if err := e.ensureComments(); err != nil {
		return err
	}
	for i, c := range t.Comments {
		if err := e.writeTree(c, i); err != nil {
			return err
		}
	}
	return nil
}

// WriteComment appends one flat comment row with a running position.
func (e *CSV) WriteComment(c *model.Comment) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if err := e.ensureComments(); err != nil {
		return err
	}

	row := commentRow(c, e.commentSeq)
	e.commentSeq++
	return e.comments.append(row)
}

// Close flushes and closes both files. Only files that were actually
// written exist on disk.
func (e *CSV) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	var firstErr error
	for _, cf := range []*csvFile{e.posts, e.comments} {
		if cf == nil {
			continue
		}
		cf.w.Flush()
		if err := cf.w.Error(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("flush export file: %w", err)
		}
		if err := cf.f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close export file: %w", err)
		}
	}
	return firstErr
}

func (e *CSV) writeTree(c *model.Comment, position int) error {
	if err := e.comments.append(commentRow(c, position)); err != nil {
		return err
	}
	for i, r := range c.Replies {
		if err := e.writeTree(r, i); err != nil {
			return err
		}
	}
	return nil
}

func (e *CSV) ensurePosts() error {
	if e.posts != nil {
		return nil
	}
	cf, err := openCSV(filepath.Join(e.dir, "posts.csv"), postColumns)
	if err != nil {
		return err
	}
	e.posts = cf
	return nil
}

func (e *CSV) ensureComments() error {
	if e.comments != nil {
		return nil
	}
	cf, err := openCSV(filepath.Join(e.dir, "comments.csv"), commentColumns)
	if err != nil {
		return err
	}
	e.comments = cf
	return nil
}

// openCSV opens path for appending and writes the header only when the
// file is empty.
func openCSV(path string, header []string) (*csvFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", filepath.Base(path), err)
	}

	cf := &csvFile{f: f, w: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := cf.append(header); err != nil {
			f.Close()
			return nil, err
		}
	}
	return cf, nil
}

// append writes one row and flushes it to the file before returning.
func (cf *csvFile) append(row []string) error {
	if err := cf.w.Write(row); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	cf.w.Flush()
	if err := cf.w.Error(); err != nil {
		return fmt.Errorf("flush record: %w", err)
	}
	return nil
}

func postRow(p *model.Post) []string {
	return []string{
		p.ID,
		p.Fullname,
		p.Title,
		p.Author,
		p.Subreddit,
		p.Flair,
		p.PostType,
		p.URL,
		p.Permalink,
		p.Selftext,
		strconv.Itoa(p.Score),
		strconv.FormatFloat(p.UpvoteRatio, 'f', -1, 64),
		strconv.Itoa(p.NumComments),
		formatTime(p.CreatedUTC),
		strconv.FormatBool(p.NSFW),
		strconv.FormatBool(p.Spoiler),
		strconv.FormatBool(p.Stickied),
		strings.Join(p.MediaURLs, "|"),
	}
}

func commentRow(c *model.Comment, position int) []string {
	return []string{
		c.PostID,
		c.ID,
		c.Fullname,
		c.ParentID,
		c.Author,
		c.Body,
		strconv.Itoa(c.Score),
		formatTime(c.CreatedUTC),
		strconv.Itoa(c.Depth),
		strconv.Itoa(position),
		c.State.String(),
		strconv.Itoa(c.MoreCount),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
