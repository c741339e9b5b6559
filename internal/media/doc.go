// Package media captures the downloadable media of crawled posts.
//
// Extract harvests media URLs from a post: the direct links the listing
// payload carried plus anything embedded in the rendered self-text.
// Downloader fetches them through the crawl's shared rate gate, files
// images and videos under the target's media directories, and appends
// one metadata record per saved image to media_metadata.jsonl,
// including whatever EXIF fields the image carried. Media failures are
// logged and counted; they never abort a crawl.
package media
