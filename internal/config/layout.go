package config

import (
	"os"
	"path/filepath"

	"github.com/ji-mi-alice/reddit-universal-scraper/internal/model"
)

// Layout resolves the on-disk output tree for one crawl target:
//
//	<output>/r_<name>/
//	    posts.csv + comments.csv   (or posts.jsonl + comments.jsonl)
//	    media/images/
//	    media/videos/
//	    media_metadata.jsonl
//	    subreddit_stats.json
//	    report.md / report.json
//
// User targets use u_<name> instead of r_<name>.
type Layout struct {
	root string
}

// NewLayout builds the layout for a target under the output directory.
func NewLayout(outputDir string, target model.Target) Layout {
	return Layout{root: filepath.Join(outputDir, target.DirName())}
}

// Root returns the target's directory.
func (l Layout) Root() string {
	return l.root
}

// MediaImagesDir returns the image download directory.
func (l Layout) MediaImagesDir() string {
	return filepath.Join(l.root, "media", "images")
}

// MediaVideosDir returns the video download directory.
func (l Layout) MediaVideosDir() string {
	return filepath.Join(l.root, "media", "videos")
}

// MediaMetadataFile returns the path of the image-metadata sidecar.
func (l Layout) MediaMetadataFile() string {
	return filepath.Join(l.root, "media_metadata.jsonl")
}

// StatsFile returns the path of the target stats snapshot.
func (l Layout) StatsFile() string {
	return filepath.Join(l.root, "subreddit_stats.json")
}

// MarkdownReportFile returns the path of the markdown job report.
func (l Layout) MarkdownReportFile() string {
	return filepath.Join(l.root, "report.md")
}

// JSONReportFile returns the path of the JSON job report.
func (l Layout) JSONReportFile() string {
	return filepath.Join(l.root, "report.json")
}

// EnsureDirs creates the target directory, and the media directories
// when media collection is enabled.
func (l Layout) EnsureDirs(media bool) error {
	dirs := []string{l.root}
	if media {
		dirs = append(dirs, l.MediaImagesDir(), l.MediaVideosDir())
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return err
		}
	}
	return nil
}
