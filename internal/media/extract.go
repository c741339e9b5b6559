package media

import (
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"

	"github.com/ji-mi-alice/reddit-universal-scraper/internal/model"
)

// Class partitions downloadable media by destination directory.
type Class int

const (
	// ClassUnknown means the URL's extension identifies neither an image
	// nor a video. The downloader resolves it from the response content
	// type instead.
	ClassUnknown Class = iota

	// ClassImage files under media/images.
	ClassImage

	// ClassVideo files under media/videos.
	ClassVideo
)

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".tif":  true,
	".tiff": true,
	".heic": true,
	".bmp":  true,
}

var videoExts = map[string]bool{
	".mp4":  true,
	".m4v":  true,
	".webm": true,
	".mov":  true,
	".mkv":  true,
	".avi":  true,
}

// Classify reports whether rawURL points at an image or a video, judged
// by the extension of the URL path. Query strings do not participate:
// preview CDNs append sizing parameters after the extension.
func Classify(rawURL string) Class {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ClassUnknown
	}
	ext := strings.ToLower(path.Ext(u.Path))
	switch {
	case imageExts[ext]:
		return ClassImage
	case videoExts[ext]:
		return ClassVideo
	}
	return ClassUnknown
}

// Extract returns the unique downloadable media URLs of one post: the
// direct links harvested from the listing payload first, then anything
// embedded in the rendered self-text. Order is preserved; a duplicate
// keeps its first position.
func Extract(p *model.Post) []string {
	seen := make(map[string]bool)
	urls := make([]string, 0, len(p.MediaURLs))

	add := func(raw string) {
		raw = strings.TrimSpace(raw)
		if raw == "" || seen[raw] {
			return
		}
		seen[raw] = true
		urls = append(urls, raw)
	}

	for _, u := range p.MediaURLs {
		add(u)
	}
	for _, u := range embeddedURLs(p.SelftextHTML) {
		add(u)
	}
	return urls
}

// embeddedURLs walks the rendered self-text and collects media
// references: every <img> source, plus anchors whose target looks like
// a direct media file. Other anchors are ignored; most links in a post
// body point at pages, not media.
func embeddedURLs(selftextHTML string) []string {
	if selftextHTML == "" {
		return nil
	}
	doc, err := html.Parse(strings.NewReader(selftextHTML))
	if err != nil {
		return nil
	}

	var urls []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "img":
				if src := getAttr(n, "src"); isFetchable(src) {
					urls = append(urls, src)
				}
			case "a":
				href := getAttr(n, "href")
				if isFetchable(href) && Classify(href) != ClassUnknown {
					urls = append(urls, href)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return urls
}

// isFetchable filters to absolute http(s) URLs. Rendered self-text can
// carry data: URIs, fragment anchors, and relative paths; none of them
// is downloadable here.
func isFetchable(raw string) bool {
	return strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://")
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
