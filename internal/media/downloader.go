package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/ji-mi-alice/reddit-universal-scraper/internal/fetch"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/model"
)

// maxNameLen caps derived file names. CDN paths can embed whole signed
// tokens; the tail is kept because the extension lives there.
const maxNameLen = 100

// Fetcher downloads one media URL and returns the bytes and the
// response content type. *reddit.Client satisfies it.
type Fetcher interface {
	FetchMedia(ctx context.Context, mediaURL string) ([]byte, string, error)
}

// Doer routes a fetch through the rate gate and retry policy.
// *fetch.Scheduler satisfies it.
type Doer interface {
	Do(ctx context.Context, op string, fn func(context.Context) error) error
}

// Dirs names the destinations of one crawl's media files.
type Dirs struct {
	// Images receives image downloads.
	Images string

	// Videos receives video downloads.
	Videos string

	// Metadata is the path of the per-image metadata sidecar,
	// media_metadata.jsonl. Empty disables metadata records.
	Metadata string
}

// Record is one line of media_metadata.jsonl: one saved image and
// whatever EXIF metadata it carried.
type Record struct {
	// PostID is the post the image belongs to.
	PostID string `json:"post_id"`

	// URL is the source the image was fetched from.
	URL string `json:"url"`

	// File is the saved name under the images directory.
	File string `json:"file"`

	// ContentType is the normalized response content type.
	ContentType string `json:"content_type,omitempty"`

	// Bytes is the saved size.
	Bytes int `json:"bytes"`

	// SavedAt is the download time.
	SavedAt time.Time `json:"saved_at"`

	// EXIF is present only when the image carried metadata of interest.
	EXIF *EXIF `json:"exif,omitempty"`
}

// errAlreadySaved marks a URL whose file already exists on disk, which
// happens when a resumed job re-encounters media from the earlier run.
var errAlreadySaved = errors.New("already saved")

// Downloader fetches a post's media through the shared rate gate and
// files it under the crawl's media directories. A URL is fetched at
// most once per job, and files present from an interrupted run are not
// fetched again. Safe for concurrent use.
type Downloader struct {
	fetcher Fetcher
	doer    Doer
	dirs    Dirs
	logger  *slog.Logger

	mu      sync.Mutex
	seen    map[string]bool
	meta    *os.File
	metaEnc *json.Encoder
	metaOff bool
	closed  bool
}

// DownloaderOption configures a Downloader.
type DownloaderOption func(*Downloader)

// WithDoer routes downloads through a scheduler so they share the rate
// budget of the job's API fetches.
func WithDoer(doer Doer) DownloaderOption {
	return func(d *Downloader) {
		d.doer = doer
	}
}

// WithLogger sets the logger. The default discards.
func WithLogger(logger *slog.Logger) DownloaderOption {
	return func(d *Downloader) {
		d.logger = logger
	}
}

// NewDownloader creates a Downloader writing into dirs. The caller is
// expected to have created the directories already.
func NewDownloader(fetcher Fetcher, dirs Dirs, opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		fetcher: fetcher,
		dirs:    dirs,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		seen:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download fetches every media URL of the post and reports how many
// files were saved and how many attempts failed. URLs already fetched
// in this job, and files already on disk from a resumed run, count as
// neither. Cancellation stops the remaining URLs without counting them.
func (d *Downloader) Download(ctx context.Context, p *model.Post) (saved, failed int) {
	for _, mediaURL := range Extract(p) {
		if !d.claim(mediaURL) {
			continue
		}

		err := d.fetchOne(ctx, p, mediaURL)
		switch {
		case err == nil:
			saved++
		case errors.Is(err, errAlreadySaved):
			d.logger.Debug("media already saved", "post", p.ID, "url", mediaURL)
		case fetch.KindOf(err) == fetch.KindCanceled:
			return saved, failed
		default:
			failed++
			d.logger.Warn("media download failed",
				"post", p.ID,
				"url", mediaURL,
				"error", err,
			)
		}
	}
	return saved, failed
}

// Close closes the metadata sidecar if it was opened.
func (d *Downloader) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	if d.meta == nil {
		return nil
	}
	if err := d.meta.Close(); err != nil {
		return fmt.Errorf("close metadata sidecar: %w", err)
	}
	return nil
}

// claim records the URL in the job-wide seen set. False means an
// earlier call already claimed it.
func (d *Downloader) claim(mediaURL string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.seen[mediaURL] {
		return false
	}
	d.seen[mediaURL] = true
	return true
}

// fetchOne downloads a single URL and files it. Images additionally get
// a metadata record, with EXIF fields when the format carries them.
func (d *Downloader) fetchOne(ctx context.Context, p *model.Post, mediaURL string) error {
	name := fileName(p.ID, mediaURL)
	class := Classify(mediaURL)

	if class != ClassUnknown && fileExists(d.destPath(class, name)) {
		return errAlreadySaved
	}

	var data []byte
	var contentType string
	fn := func(ctx context.Context) error {
		var err error
		data, contentType, err = d.fetcher.FetchMedia(ctx, mediaURL)
		return err
	}

	var err error
	if d.doer != nil {
		err = d.doer.Do(ctx, "media "+name, fn)
	} else {
		err = fn(ctx)
	}
	if err != nil {
		return err
	}

	contentType = mediaType(contentType)
	if class == ClassUnknown {
		class = classifyContentType(contentType)
	}
	if class == ClassUnknown {
		return fmt.Errorf("not a media response: content type %q", contentType)
	}
	name = ensureExt(name, contentType)

	dest := d.destPath(class, name)
	if err := writeNew(dest, data); err != nil {
		return err
	}
	d.logger.Debug("media saved", "post", p.ID, "file", dest, "bytes", len(data))

	if class == ClassImage {
		rec := Record{
			PostID:      p.ID,
			URL:         mediaURL,
			File:        name,
			ContentType: contentType,
			Bytes:       len(data),
			SavedAt:     time.Now().UTC(),
		}
		if exifCapable(contentType, name) {
			rec.EXIF = parseEXIF(data)
		}
		d.appendRecord(rec)
	}
	return nil
}

// destPath resolves the destination for a classified file.
func (d *Downloader) destPath(class Class, name string) string {
	if class == ClassVideo {
		return filepath.Join(d.dirs.Videos, name)
	}
	return filepath.Join(d.dirs.Images, name)
}

// appendRecord writes one metadata line. A sidecar failure disables the
// sink for the rest of the job; it never fails the crawl.
func (d *Downloader) appendRecord(rec Record) {
	if d.dirs.Metadata == "" {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.metaOff || d.closed {
		return
	}
	if d.metaEnc == nil {
		f, err := os.OpenFile(d.dirs.Metadata, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			d.metaOff = true
			d.logger.Warn("media metadata sidecar disabled", "path", d.dirs.Metadata, "error", err)
			return
		}
		d.meta = f
		d.metaEnc = json.NewEncoder(f)
	}
	if err := d.metaEnc.Encode(rec); err != nil {
		d.metaOff = true
		d.logger.Warn("media metadata sidecar disabled", "path", d.dirs.Metadata, "error", err)
	}
}

// writeNew creates dest exclusively. Losing the creation race to a
// concurrent worker reports errAlreadySaved, so the file is counted
// once.
func writeNew(dest string, data []byte) error {
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if errors.Is(err, fs.ErrExist) {
		return errAlreadySaved
	}
	if err != nil {
		return fmt.Errorf("create media file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write media file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close media file: %w", err)
	}
	return nil
}

// fileExists reports whether a regular file is already at path.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

var nameSanitizer = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// fileName derives the saved name: the post ID joined to the URL path's
// base, so one post's files sort together and two posts sharing a CDN
// path cannot collide. A URL whose path has no usable base falls back
// to a digest of the URL.
func fileName(postID, mediaURL string) string {
	var base string
	if u, err := url.Parse(mediaURL); err == nil {
		base = path.Base(u.Path)
	}
	if base == "." || base == "/" {
		base = ""
	}
	base = sanitizeName(base)
	if base == "" {
		base = urlDigest(mediaURL)
	}
	if postID == "" {
		return base
	}
	return postID + "_" + base
}

// sanitizeName reduces a URL path base to filesystem-safe characters.
func sanitizeName(base string) string {
	base = nameSanitizer.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if len(base) > maxNameLen {
		// Keep the tail: the extension lives there.
		base = base[len(base)-maxNameLen:]
	}
	return base
}

// urlDigest produces a short stable name for URLs without a usable path.
func urlDigest(mediaURL string) string {
	sum := sha256.Sum256([]byte(mediaURL))
	return hex.EncodeToString(sum[:])[:12]
}

// extByType maps the content types Reddit's CDNs serve to an extension,
// for URLs whose path carries none.
var extByType = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"image/tiff":      ".tiff",
	"video/mp4":       ".mp4",
	"video/webm":      ".webm",
	"video/quicktime": ".mov",
}

// ensureExt appends an extension derived from the content type when the
// derived name lacks a recognized one.
func ensureExt(name, contentType string) string {
	ext := strings.ToLower(path.Ext(name))
	if imageExts[ext] || videoExts[ext] {
		return name
	}
	if add, ok := extByType[contentType]; ok {
		return name + add
	}
	return name
}

// classifyContentType resolves a class the URL extension could not,
// using the server's answer instead.
func classifyContentType(contentType string) Class {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return ClassImage
	case strings.HasPrefix(contentType, "video/"):
		return ClassVideo
	}
	return ClassUnknown
}

// mediaType strips parameters and normalizes case:
// "Image/JPEG; q=1" becomes "image/jpeg".
func mediaType(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
