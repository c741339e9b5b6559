package crawl

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ji-mi-alice/reddit-universal-scraper/internal/config"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/database"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/fetch"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/model"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/reddit"
	"github.com/ji-mi-alice/reddit-universal-scraper/internal/walker"
)

// fakeTransport serves scripted listing pages and child batches. Pages
// are keyed by target and cursor, child batches by their first id.
type fakeTransport struct {
	mu       sync.Mutex
	pages    map[string]*model.Page
	pageErrs map[string]error
	children map[string][]model.Item
	childErr map[string]error
	listed   []string

	// cancelOn cancels the job context when the matching page key is
	// requested, simulating an interrupt mid-crawl.
	cancelOn string
	cancel   context.CancelFunc
}

// pageKey distinguishes the two user feeds, which share a String form.
func pageKey(target model.Target, cursor string) string {
	key := target.String()
	if target.Kind == model.TargetUserComments {
		key += "/comments"
	}
	return key + "|" + cursor
}

func (f *fakeTransport) ListPage(ctx context.Context, target model.Target, cursor string, _ int) (*model.Page, error) {
	f.mu.Lock()
	key := pageKey(target, cursor)
	f.listed = append(f.listed, key)
	cancel := key == f.cancelOn
	err, errScripted := f.pageErrs[key]
	page, ok := f.pages[key]
	f.mu.Unlock()

	if cancel {
		f.cancel()
		return nil, ctx.Err()
	}
	if errScripted {
		return nil, err
	}
	if !ok {
		return nil, fetch.Permanent("list "+target.String(), errors.New("no page scripted"))
	}
	return page, nil
}

func (f *fakeTransport) FetchChildren(_ context.Context, _ string, childIDs []string) ([]model.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := childIDs[0]
	if err, ok := f.childErr[key]; ok {
		return nil, err
	}
	items, ok := f.children[key]
	if !ok {
		return nil, fetch.Permanent("children", errors.New("no children scripted"))
	}
	return items, nil
}

func (f *fakeTransport) firstListed() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.listed) == 0 {
		return ""
	}
	return f.listed[0]
}

type fakeMetadata struct{}

func (fakeMetadata) About(_ context.Context, _ string) (*reddit.About, error) {
	return &reddit.About{Title: "Test Community", Subscribers: 42, ActiveUserCount: 7}, nil
}

func (fakeMetadata) Rules(_ context.Context, _ string) ([]reddit.Rule, error) {
	return []reddit.Rule{{ShortName: "be kind"}}, nil
}

func (fakeMetadata) Moderators(_ context.Context, _ string) ([]reddit.Moderator, error) {
	return nil, nil
}

func (fakeMetadata) Flairs(_ context.Context, _ string) ([]reddit.Flair, error) {
	return nil, nil
}

type fakeMediaFetcher struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeMediaFetcher) FetchMedia(_ context.Context, mediaURL string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, mediaURL)
	return []byte("media-bytes"), "image/jpeg", nil
}

func subPost(id, subreddit string) *model.Post {
	return &model.Post{
		ID:         id,
		Fullname:   "t3_" + id,
		Title:      "post " + id,
		Author:     "author_" + id,
		Subreddit:  subreddit,
		PostType:   "text",
		CreatedUTC: time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC),
	}
}

func commentItem(id, parent, postID string) model.Item {
	return model.CommentItem(&model.Comment{
		ID:       id,
		Fullname: "t1_" + id,
		PostID:   postID,
		ParentID: parent,
		Author:   "u_" + id,
		Body:     "body " + id,
	})
}

func testConfig(t *testing.T, target string) *config.Config {
	t.Helper()

	cfg := config.NewConfig()
	cfg.Target = target
	cfg.Format = model.FormatJSON
	cfg.OutputDir = t.TempDir()
	cfg.Concurrency = 2
	cfg.RateBurst = 100
	cfg.RateEvery = time.Millisecond
	return cfg
}

func testStore(t *testing.T) *database.Store {
	t.Helper()

	store, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func readJSONL(t *testing.T, path string) []map[string]any {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}

	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var record map[string]any
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			t.Fatalf("decode line %q: %v", line, err)
		}
		records = append(records, record)
	}
	return records
}

func TestControllerPostsMode(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{pages: map[string]*model.Page{
		"r/test|": {
			Items: []model.Item{
				model.PostItem(subPost("p1", "test")),
				model.PostItem(subPost("p2", "test")),
			},
			After: "c2",
		},
		"r/test|c2": {
			Items: []model.Item{model.PostItem(subPost("p3", "test"))},
		},
	}}
	cfg := testConfig(t, "r/test")
	store := testStore(t)

	ctrl, err := New(cfg, ft, WithStore(store))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	report, err := ctrl.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Outcome != model.OutcomeComplete {
		t.Errorf("Outcome = %s, want complete (%s)", report.Outcome, report.OutcomeLine())
	}
	if report.PostsExported != 3 {
		t.Errorf("PostsExported = %d, want 3", report.PostsExported)
	}
	if report.CommentsExported != 0 {
		t.Errorf("CommentsExported = %d, want 0", report.CommentsExported)
	}
	if report.PagesFetched != 2 {
		t.Errorf("PagesFetched = %d, want 2", report.PagesFetched)
	}
	if report.PostTypes["text"] != 3 {
		t.Errorf("PostTypes[text] = %d, want 3", report.PostTypes["text"])
	}
	if got := ctrl.Phase(); got != PhaseDone {
		t.Errorf("Phase = %s, want done", got)
	}

	lines := readJSONL(t, filepath.Join(cfg.OutputDir, "r_test", "posts.jsonl"))
	if len(lines) != 3 {
		t.Fatalf("posts.jsonl has %d lines, want 3", len(lines))
	}
	if lines[0]["id"] != "p1" || lines[2]["id"] != "p3" {
		t.Errorf("posts out of listing order: %v, %v", lines[0]["id"], lines[2]["id"])
	}

	rec, err := store.Job(context.Background(), report.JobID)
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	if rec == nil || rec.Status != database.StatusFinished || rec.Outcome != model.OutcomeComplete {
		t.Errorf("history row = %+v, want finished/complete", rec)
	}

	cp, err := store.LoadCheckpoint(context.Background(), report.JobID)
	if err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}
	if cp != nil {
		t.Errorf("checkpoint survived a finished job: %+v", cp)
	}
}

func TestControllerCommentsMode(t *testing.T) {
	t.Parallel()

	thread := model.ThreadTarget("test", "p1")
	ft := &fakeTransport{
		pages: map[string]*model.Page{
			"r/test|": {Items: []model.Item{model.PostItem(subPost("p1", "test"))}},
			pageKey(thread, ""): {Items: []model.Item{
				model.PostItem(subPost("p1", "test")),
				commentItem("c1", "t3_p1", "p1"),
				commentItem("c2", "t1_c1", "p1"),
				model.MoreItem(&model.More{PostID: "p1", ParentID: "t3_p1", Count: 1, Children: []string{"c3"}}),
			}},
		},
		children: map[string][]model.Item{
			"c3": {commentItem("c3", "t3_p1", "p1")},
		},
	}
	cfg := testConfig(t, "r/test")
	cfg.Mode = model.ModeComments

	ctrl, err := New(cfg, ft)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	report, err := ctrl.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Outcome != model.OutcomeComplete {
		t.Errorf("Outcome = %s, want complete (%s)", report.Outcome, report.OutcomeLine())
	}
	if report.PostsExported != 1 {
		t.Errorf("PostsExported = %d, want 1", report.PostsExported)
	}
	if report.CommentsExported != 3 {
		t.Errorf("CommentsExported = %d, want 3", report.CommentsExported)
	}
	if report.SubtreesAbandoned != 0 {
		t.Errorf("SubtreesAbandoned = %d, want 0", report.SubtreesAbandoned)
	}

	lines := readJSONL(t, filepath.Join(cfg.OutputDir, "r_test", "posts.jsonl"))
	if len(lines) != 1 {
		t.Fatalf("posts.jsonl has %d lines, want 1", len(lines))
	}
	post, ok := lines[0]["post"].(map[string]any)
	if !ok || post["id"] != "p1" {
		t.Fatalf("thread line post = %v, want p1", lines[0]["post"])
	}
	comments, ok := lines[0]["comments"].([]any)
	if !ok || len(comments) != 2 {
		t.Fatalf("thread has %d roots, want 2", len(comments))
	}
	c1 := comments[0].(map[string]any)
	if c1["id"] != "c1" {
		t.Errorf("first root = %v, want c1", c1["id"])
	}
	replies, ok := c1["replies"].([]any)
	if !ok || len(replies) != 1 {
		t.Fatalf("c1 has %d replies, want 1", len(replies))
	}
	if reply := replies[0].(map[string]any); reply["id"] != "c2" || reply["depth"] != float64(1) {
		t.Errorf("c1 reply = %v depth %v, want c2 depth 1", reply["id"], reply["depth"])
	}
	if c3 := comments[1].(map[string]any); c3["id"] != "c3" {
		t.Errorf("second root = %v, want c3", c3["id"])
	}
}

func TestControllerDegradedSkip(t *testing.T) {
	t.Parallel()

	okThread := model.ThreadTarget("test", "p1")
	badThread := model.ThreadTarget("test", "p2")
	ft := &fakeTransport{
		pages: map[string]*model.Page{
			"r/test|": {Items: []model.Item{
				model.PostItem(subPost("p1", "test")),
				model.PostItem(subPost("p2", "test")),
			}},
			pageKey(okThread, ""): {Items: []model.Item{
				model.PostItem(subPost("p1", "test")),
				commentItem("c1", "t3_p1", "p1"),
			}},
		},
		pageErrs: map[string]error{
			pageKey(badThread, ""): fetch.Permanent("list "+badThread.String(), errors.New("thread gone (404)")),
		},
	}
	cfg := testConfig(t, "r/test")
	cfg.Mode = model.ModeComments

	ctrl, err := New(cfg, ft)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	report, err := ctrl.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error for a degraded job: %v", err)
	}

	if report.Outcome != model.OutcomePartial {
		t.Errorf("Outcome = %s, want partial", report.Outcome)
	}
	if report.PostsExported != 1 {
		t.Errorf("PostsExported = %d, want 1", report.PostsExported)
	}
	if report.PostsSkipped != 1 {
		t.Errorf("PostsSkipped = %d, want 1", report.PostsSkipped)
	}
	if !strings.Contains(report.OutcomeLine(), "1 posts skipped") {
		t.Errorf("OutcomeLine = %q, want posts-skipped qualifier", report.OutcomeLine())
	}
}

func TestControllerAbandonedSubtree(t *testing.T) {
	t.Parallel()

	thread := model.ThreadTarget("test", "p1")
	ft := &fakeTransport{
		pages: map[string]*model.Page{
			"r/test|": {Items: []model.Item{model.PostItem(subPost("p1", "test"))}},
			pageKey(thread, ""): {Items: []model.Item{
				model.PostItem(subPost("p1", "test")),
				model.MoreItem(&model.More{PostID: "p1", ParentID: "t3_p1", Count: 5, Children: []string{"cx"}}),
			}},
		},
		childErr: map[string]error{
			"cx": fetch.Permanent("children of t3_p1", errors.New("expansion refused")),
		},
	}
	cfg := testConfig(t, "r/test")
	cfg.Mode = model.ModeComments

	ctrl, err := New(cfg, ft)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	report, err := ctrl.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Outcome != model.OutcomePartial {
		t.Errorf("Outcome = %s, want partial", report.Outcome)
	}
	if report.SubtreesAbandoned != 1 {
		t.Errorf("SubtreesAbandoned = %d, want 1", report.SubtreesAbandoned)
	}
	if report.CommentsExported != 0 {
		t.Errorf("CommentsExported = %d, want 0", report.CommentsExported)
	}

	lines := readJSONL(t, filepath.Join(cfg.OutputDir, "r_test", "posts.jsonl"))
	if len(lines) != 1 {
		t.Fatalf("posts.jsonl has %d lines, want 1", len(lines))
	}
	comments := lines[0]["comments"].([]any)
	if len(comments) != 1 {
		t.Fatalf("thread has %d nodes, want the pending placeholder", len(comments))
	}
	node := comments[0].(map[string]any)
	if node["state"] != "pending" || node["more_count"] != float64(5) {
		t.Errorf("placeholder = state %v count %v, want pending/5", node["state"], node["more_count"])
	}
}

func TestControllerListingTruncated(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{
		pages: map[string]*model.Page{
			"r/test|": {
				Items: []model.Item{
					model.PostItem(subPost("p1", "test")),
					model.PostItem(subPost("p2", "test")),
				},
				After: "c2",
			},
		},
		pageErrs: map[string]error{
			"r/test|c2": fetch.Transient("list r/test", errors.New("connection reset")),
		},
	}
	cfg := testConfig(t, "r/test")
	cfg.MaxTransientRetries = 0

	ctrl, err := New(cfg, ft)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	report, err := ctrl.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error for a truncated listing: %v", err)
	}

	if report.Outcome != model.OutcomePartial {
		t.Errorf("Outcome = %s, want partial", report.Outcome)
	}
	if !report.ListingTruncated {
		t.Error("ListingTruncated = false, want true")
	}
	if report.PostsExported != 2 {
		t.Errorf("PostsExported = %d, want the 2 posts before the cut", report.PostsExported)
	}
	if !strings.Contains(report.OutcomeLine(), "listing truncated") {
		t.Errorf("OutcomeLine = %q, want truncation qualifier", report.OutcomeLine())
	}
}

func TestControllerAbortsOnListingFailure(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{
		pageErrs: map[string]error{
			"r/missing|": fetch.Permanent("list r/missing", errors.New("subreddit not found (404)")),
		},
	}
	cfg := testConfig(t, "r/missing")
	store := testStore(t)

	ctrl, err := New(cfg, ft, WithStore(store))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	report, err := ctrl.Run(context.Background())
	if err == nil {
		t.Fatal("Run returned nil error for an unreachable target")
	}

	if report.Outcome != model.OutcomeAborted {
		t.Errorf("Outcome = %s, want aborted", report.Outcome)
	}
	if !strings.Contains(report.Error, "not found") {
		t.Errorf("report.Error = %q, want the upstream cause", report.Error)
	}
	if got := ctrl.Phase(); got != PhaseAborted {
		t.Errorf("Phase = %s, want aborted", got)
	}

	rec, err := store.Job(context.Background(), report.JobID)
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	if rec == nil || rec.Outcome != model.OutcomeAborted || rec.Error == "" {
		t.Errorf("history row = %+v, want aborted with error", rec)
	}
}

func TestControllerAbortsWhenOutputBlocked(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{pages: map[string]*model.Page{
		"r/test|": {Items: []model.Item{model.PostItem(subPost("p1", "test"))}},
	}}
	cfg := testConfig(t, "r/test")

	// A regular file where the output tree should go.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0600); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	cfg.OutputDir = filepath.Join(blocker, "data")

	ctrl, err := New(cfg, ft)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	report, err := ctrl.Run(context.Background())
	if err == nil {
		t.Fatal("Run returned nil error with an unwritable output directory")
	}
	if report.Outcome != model.OutcomeAborted {
		t.Errorf("Outcome = %s, want aborted", report.Outcome)
	}
	if !strings.Contains(report.Error, "output directory") {
		t.Errorf("report.Error = %q, want output directory failure", report.Error)
	}
}

func TestControllerCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ft := &fakeTransport{
		pages: map[string]*model.Page{
			"r/test|": {
				Items: []model.Item{
					model.PostItem(subPost("p1", "test")),
					model.PostItem(subPost("p2", "test")),
				},
				After: "c2",
			},
			"r/test|c2": {
				Items: []model.Item{model.PostItem(subPost("p3", "test"))},
				After: "c3",
			},
		},
		cancelOn: "r/test|c3",
		cancel:   cancel,
	}
	cfg := testConfig(t, "r/test")
	store := testStore(t)

	ctrl, err := New(cfg, ft, WithStore(store))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	report, err := ctrl.Run(ctx)
	if err == nil {
		t.Fatal("Run returned nil error after cancellation")
	}

	if report.Outcome != model.OutcomeAborted {
		t.Errorf("Outcome = %s, want aborted", report.Outcome)
	}
	if !strings.Contains(report.Error, "canceled") {
		t.Errorf("report.Error = %q, want cancellation cause", report.Error)
	}
	if report.PostsExported != 3 {
		t.Errorf("PostsExported = %d, want the 3 posts before the cancel", report.PostsExported)
	}

	// Output written before the abort stays on disk.
	lines := readJSONL(t, filepath.Join(cfg.OutputDir, "r_test", "posts.jsonl"))
	if len(lines) != 3 {
		t.Errorf("posts.jsonl has %d lines, want 3", len(lines))
	}

	// The checkpoint survives so the job can resume. Its cursor points
	// at the page that was being drained when the last save happened.
	cp, err := store.LoadCheckpoint(context.Background(), report.JobID)
	if err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}
	if cp == nil {
		t.Fatal("no checkpoint after an aborted job")
	}
	if cp.Cursor != "c2" || cp.Items != 2 || cp.Pages != 1 {
		t.Errorf("checkpoint = cursor %q items %d pages %d, want c2/2/1", cp.Cursor, cp.Items, cp.Pages)
	}
}

func TestControllerDryRun(t *testing.T) {
	t.Parallel()

	thread := model.ThreadTarget("test", "p1")
	ft := &fakeTransport{
		pages: map[string]*model.Page{
			"r/test|": {Items: []model.Item{model.PostItem(subPost("p1", "test"))}},
			pageKey(thread, ""): {Items: []model.Item{
				model.PostItem(subPost("p1", "test")),
				commentItem("c1", "t3_p1", "p1"),
			}},
		},
	}
	cfg := testConfig(t, "r/test")
	cfg.Mode = model.ModeComments
	cfg.DryRun = true
	store := testStore(t)

	ctrl, err := New(cfg, ft, WithStore(store))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	report, err := ctrl.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Outcome != model.OutcomeComplete {
		t.Errorf("Outcome = %s, want complete", report.Outcome)
	}
	if report.PostsExported != 1 || report.CommentsExported != 1 {
		t.Errorf("counters = %d posts, %d comments, want 1/1",
			report.PostsExported, report.CommentsExported)
	}

	if _, err := os.Stat(filepath.Join(cfg.OutputDir, "r_test")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("dry run created the output tree: %v", err)
	}

	rec, err := store.Job(context.Background(), report.JobID)
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	if rec == nil || !rec.DryRun {
		t.Errorf("history row = %+v, want dry_run", rec)
	}
}

func TestControllerResume(t *testing.T) {
	t.Parallel()

	store := testStore(t)

	seeded := walker.NewSeenSet()
	seeded.CheckAndAdd("t3_p1")
	seeded.CheckAndAdd("t3_p2")
	seenJSON, err := json.Marshal(seeded)
	if err != nil {
		t.Fatalf("marshal seen: %v", err)
	}
	cp := &database.Checkpoint{
		JobID:  "job-resume",
		Target: model.Target{Kind: model.TargetSubreddit, Name: "test"},
		Cursor: "c2",
		Seen:   seenJSON,
		Items:  2,
		Pages:  1,
	}
	if err := store.SaveCheckpoint(context.Background(), cp); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}
	running := &model.CrawlReport{
		JobID:     "job-resume",
		Target:    "r/test",
		Mode:      model.ModePosts,
		Format:    model.FormatJSON,
		StartedAt: time.Now().UTC(),
	}
	if err := store.UpsertJob(context.Background(), running); err != nil {
		t.Fatalf("UpsertJob: %v", err)
	}

	ft := &fakeTransport{pages: map[string]*model.Page{
		"r/test|c2": {Items: []model.Item{
			model.PostItem(subPost("p2", "test")), // tail of the refetched page
			model.PostItem(subPost("p3", "test")),
			model.PostItem(subPost("p4", "test")),
		}},
	}}
	cfg := testConfig(t, "")
	cfg.ResumeJobID = "job-resume"
	cfg.Mode = model.ModeComments // the history row wins

	ctrl, err := New(cfg, ft, WithStore(store))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	report, err := ctrl.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.JobID != "job-resume" {
		t.Errorf("JobID = %q, want job-resume", report.JobID)
	}
	if report.Mode != model.ModePosts {
		t.Errorf("Mode = %s, want posts restored from the history row", report.Mode)
	}
	if got := ft.firstListed(); got != "r/test|c2" {
		t.Errorf("first listing call = %q, want the checkpoint cursor", got)
	}
	if report.PostsExported != 2 {
		t.Errorf("PostsExported = %d, want the 2 unseen posts", report.PostsExported)
	}
	if report.Duplicates != 1 {
		t.Errorf("Duplicates = %d, want 1", report.Duplicates)
	}
	if report.PagesFetched != 1 {
		t.Errorf("PagesFetched = %d, want 1 for this run", report.PagesFetched)
	}

	lines := readJSONL(t, filepath.Join(cfg.OutputDir, "r_test", "posts.jsonl"))
	if len(lines) != 2 || lines[0]["id"] != "p3" {
		t.Errorf("resumed export = %d lines starting %v, want p3/p4", len(lines), lines[0]["id"])
	}

	left, err := store.LoadCheckpoint(context.Background(), "job-resume")
	if err != nil {
		t.Fatalf("LoadCheckpoint: %v", err)
	}
	if left != nil {
		t.Errorf("checkpoint survived the finished resume: %+v", left)
	}
}

func TestControllerResumeWithoutCheckpoint(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "")
	cfg.ResumeJobID = "no-such-job"

	ctrl, err := New(cfg, &fakeTransport{}, WithStore(testStore(t)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := ctrl.Run(context.Background()); !errors.Is(err, ErrNoCheckpoint) {
		t.Errorf("Run error = %v, want ErrNoCheckpoint", err)
	}
}

func TestControllerUserCommentsFeed(t *testing.T) {
	t.Parallel()

	thread := model.ThreadTarget("golang", "p1")
	ft := &fakeTransport{pages: map[string]*model.Page{
		"u/alice|": {Items: []model.Item{model.PostItem(subPost("p1", "golang"))}},
		pageKey(thread, ""): {Items: []model.Item{
			model.PostItem(subPost("p1", "golang")),
			commentItem("c1", "t3_p1", "p1"),
		}},
		"u/alice/comments|": {Items: []model.Item{
			commentItem("fc1", "t3_other", "other"),
			commentItem("fc2", "t1_zz", "other"),
		}},
	}}
	cfg := testConfig(t, "u/alice")
	cfg.Mode = model.ModeComments

	ctrl, err := New(cfg, ft)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	report, err := ctrl.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Outcome != model.OutcomeComplete {
		t.Errorf("Outcome = %s, want complete (%s)", report.Outcome, report.OutcomeLine())
	}
	if report.PostsExported != 1 {
		t.Errorf("PostsExported = %d, want 1", report.PostsExported)
	}
	if report.CommentsExported != 3 {
		t.Errorf("CommentsExported = %d, want thread comment plus 2 feed comments", report.CommentsExported)
	}
	if report.PagesFetched != 2 {
		t.Errorf("PagesFetched = %d, want submitted plus feed", report.PagesFetched)
	}

	root := filepath.Join(cfg.OutputDir, "u_alice")
	if lines := readJSONL(t, filepath.Join(root, "posts.jsonl")); len(lines) != 1 {
		t.Errorf("posts.jsonl has %d lines, want 1", len(lines))
	}
	feed := readJSONL(t, filepath.Join(root, "comments.jsonl"))
	if len(feed) != 2 || feed[0]["id"] != "fc1" {
		t.Errorf("comments.jsonl = %d lines starting %v, want fc1/fc2", len(feed), feed[0]["id"])
	}
}

func TestControllerFullMode(t *testing.T) {
	t.Parallel()

	p1 := subPost("p1", "test")
	p1.PostType = "image"
	p1.MediaURLs = []string{"https://i.example.com/a.jpg"}

	thread := model.ThreadTarget("test", "p1")
	ft := &fakeTransport{pages: map[string]*model.Page{
		"r/test|": {Items: []model.Item{model.PostItem(p1)}},
		pageKey(thread, ""): {Items: []model.Item{
			model.PostItem(p1),
			commentItem("c1", "t3_p1", "p1"),
		}},
	}}
	mf := &fakeMediaFetcher{}
	cfg := testConfig(t, "r/test")
	cfg.Mode = model.ModeFull

	ctrl, err := New(cfg, ft, WithMediaFetcher(mf), WithMetadataClient(fakeMetadata{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	report, err := ctrl.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Outcome != model.OutcomeComplete {
		t.Errorf("Outcome = %s, want complete (%s)", report.Outcome, report.OutcomeLine())
	}
	if report.MediaSaved != 1 || report.MediaFailed != 0 {
		t.Errorf("media counters = %d/%d, want 1 saved", report.MediaSaved, report.MediaFailed)
	}

	root := filepath.Join(cfg.OutputDir, "r_test")
	if _, err := os.Stat(filepath.Join(root, "media", "images", "p1_a.jpg")); err != nil {
		t.Errorf("downloaded image missing: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "subreddit_stats.json"))
	if err != nil {
		t.Fatalf("read stats: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if doc["name"] != "test" || doc["subscribers"] != float64(42) {
		t.Errorf("stats doc = name %v subscribers %v, want test/42", doc["name"], doc["subscribers"])
	}
	if doc["activity"] == nil {
		t.Error("stats doc has no activity summary")
	}
}

func TestControllerRunTwice(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{pages: map[string]*model.Page{
		"r/test|": {Items: []model.Item{model.PostItem(subPost("p1", "test"))}},
	}}
	cfg := testConfig(t, "r/test")

	ctrl, err := New(cfg, ft)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := ctrl.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if _, err := ctrl.Run(context.Background()); !errors.Is(err, ErrAlreadyRan) {
		t.Errorf("second Run error = %v, want ErrAlreadyRan", err)
	}
}

func TestPhaseString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		phase Phase
		want  string
	}{
		{PhaseIdle, "idle"},
		{PhaseListing, "listing"},
		{PhaseFetchingComments, "fetching comments"},
		{PhaseExporting, "exporting"},
		{PhaseDone, "done"},
		{PhaseAborted, "aborted"},
		{Phase(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.phase.String(); got != tt.want {
			t.Errorf("Phase(%d).String() = %q, want %q", int(tt.phase), got, tt.want)
		}
	}
}
