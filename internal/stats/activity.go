package stats

import (
	"sort"
	"strings"

	"github.com/pemistahl/lingua-go"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ji-mi-alice/reddit-universal-scraper/internal/model"
)

// DefaultTopAuthors is the number of authors kept in the activity
// summary's most-active list.
const DefaultTopAuthors = 10

// minDetectionLength is the minimum combined title+body length for
// language detection. Shorter texts are skipped: single-word titles
// detect as noise.
const minDetectionLength = 20

// candidateLanguages is the fixed detection set. A bounded set keeps the
// detector's model footprint small and avoids exotic false positives on
// short post titles.
var candidateLanguages = []lingua.Language{
	lingua.English,
	lingua.Spanish,
	lingua.French,
	lingua.German,
	lingua.Portuguese,
	lingua.Italian,
	lingua.Dutch,
	lingua.Russian,
	lingua.Japanese,
	lingua.Korean,
	lingua.Chinese,
	lingua.Arabic,
}

// AuthorCount is one entry of the most-active author list.
type AuthorCount struct {
	Author string `json:"author"`
	Posts  int    `json:"posts"`
}

// ActivityStats summarizes the posts collected by a crawl.
type ActivityStats struct {
	// Posts is the number of posts summarized.
	Posts int `json:"posts"`

	// ByType counts posts per post type (text, link, image, …).
	ByType map[string]int `json:"by_type,omitempty"`

	// ByFlair counts posts per link flair. Unflaired posts are not
	// counted.
	ByFlair map[string]int `json:"by_flair,omitempty"`

	// TopAuthors lists the most active authors, highest first.
	TopAuthors []AuthorCount `json:"top_authors,omitempty"`

	// ByHour is a posting histogram over UTC hours 0-23.
	ByHour [24]int `json:"by_hour"`

	// Languages counts posts per detected language. Best effort: posts
	// with too little text are skipped.
	Languages map[string]int `json:"languages,omitempty"`
}

// Analyzer derives activity summaries from crawled posts.
type Analyzer struct {
	detector   lingua.LanguageDetector
	topAuthors int
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithTopAuthors sets how many authors the most-active list keeps.
func WithTopAuthors(n int) AnalyzerOption {
	return func(a *Analyzer) {
		if n > 0 {
			a.topAuthors = n
		}
	}
}

// NewAnalyzer creates an Analyzer. Building the language detector loads
// its models once; reuse the Analyzer across calls.
func NewAnalyzer(opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		topAuthors: DefaultTopAuthors,
	}

	for _, opt := range opts {
		opt(a)
	}

	a.detector = lingua.NewLanguageDetectorBuilder().
		FromLanguages(candidateLanguages...).
		WithLowAccuracyMode().
		Build()

	return a
}

// Activity summarizes the given posts.
func (a *Analyzer) Activity(posts []*model.Post) *ActivityStats {
	stats := &ActivityStats{Posts: len(posts)}
	if len(posts) == 0 {
		return stats
	}

	stats.ByType = make(map[string]int)
	authorCounts := make(map[string]int)
	for _, p := range posts {
		stats.ByType[p.PostType]++

		if p.Flair != "" {
			if stats.ByFlair == nil {
				stats.ByFlair = make(map[string]int)
			}
			stats.ByFlair[p.Flair]++
		}

		if p.Author != "" && p.Author != "[deleted]" {
			authorCounts[p.Author]++
		}

		stats.ByHour[p.CreatedUTC.UTC().Hour()]++

		if lang, ok := a.detectLanguage(p); ok {
			if stats.Languages == nil {
				stats.Languages = make(map[string]int)
			}
			stats.Languages[lang]++
		}
	}

	stats.TopAuthors = topAuthors(authorCounts, a.topAuthors)
	return stats
}

// detectLanguage classifies the post's language from its title and body.
func (a *Analyzer) detectLanguage(p *model.Post) (string, bool) {
	text := strings.TrimSpace(p.Title + " " + p.Selftext)
	if len(text) < minDetectionLength {
		return "", false
	}
	lang, ok := a.detector.DetectLanguageOf(text)
	if !ok {
		return "", false
	}
	return lang.String(), true
}

// topAuthors flattens the author counts into a stable ranking: highest
// count first, ties broken by name.
func topAuthors(counts map[string]int, limit int) []AuthorCount {
	if len(counts) == 0 {
		return nil
	}
	ranked := make([]AuthorCount, 0, len(counts))
	for author, n := range counts {
		ranked = append(ranked, AuthorCount{Author: author, Posts: n})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Posts != ranked[j].Posts {
			return ranked[i].Posts > ranked[j].Posts
		}
		return ranked[i].Author < ranked[j].Author
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// displayLabels maps counter keys whose display form is not plain
// title case.
var displayLabels = map[string]string{
	"nsfw": "NSFW",
	"url":  "URL",
}

// DisplayLabel returns the human-facing form of a counter key.
func DisplayLabel(key string) string {
	if label, ok := displayLabels[key]; ok {
		return label
	}
	return cases.Title(language.English).String(key)
}
