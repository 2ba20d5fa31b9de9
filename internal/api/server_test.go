package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/lessonpage/internal/config"
	"github.com/dgallion1/lessonpage/internal/content"
	"github.com/dgallion1/lessonpage/internal/progress"
	"github.com/dgallion1/lessonpage/internal/progressstore"
	"github.com/dgallion1/lessonpage/internal/viewer"
)

const testKey = "secret"

type testEnv struct {
	srv      *Server
	store    *progressstore.MemoryStore
	reporter *progress.Reporter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := progressstore.NewMemoryStore()
	reporter := progress.NewReporter(progressstore.Sink(store), log, 2)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		reporter.Close(ctx)
	})

	cfg := config.Config{
		LessonpageAPIKey: testKey,
		PageMarker:       "line",
		MaxUploadBytes:   1 << 20,
		MaxBatchFiles:    5,
	}
	loader := content.Static{
		"intro": {Title: "Intro", Text: "# Intro\nHello *world*\n---\n## Part 2\nBye\n---\nEnd"},
	}
	deps := Deps{
		Loader:   loader,
		Views:    viewer.NewStore(time.Hour),
		Reporter: reporter,
		Store:    store,
	}
	return &testEnv{srv: NewServer(deps, log, cfg), store: store, reporter: reporter}
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+testKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) doJSON(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	return e.do(t, method, path, r, "application/json")
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
}

func TestServer_Health(t *testing.T) {
	e := newTestEnv(t)
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}
}

func TestServer_Auth(t *testing.T) {
	e := newTestEnv(t)

	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats/delivery", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without key, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/stats/delivery", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong key, got %d", rec.Code)
	}
}

func TestServer_Render(t *testing.T) {
	e := newTestEnv(t)
	rec := e.doJSON(t, http.MethodPost, "/api/lessons/render", map[string]string{
		"text": "# Intro\nHello *world*\n---\n## Part 2\nBye",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		TotalPages int `json:"total_pages"`
		Pages      []struct {
			Index  int `json:"index"`
			Blocks []struct {
				Kind string `json:"kind"`
				Text string `json:"text"`
			} `json:"blocks"`
		} `json:"pages"`
	}
	decode(t, rec, &resp)
	if resp.TotalPages != 2 || len(resp.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %d/%d", resp.TotalPages, len(resp.Pages))
	}
	if resp.Pages[1].Blocks[0].Kind != "subtitle" || resp.Pages[1].Blocks[0].Text != "Part 2" {
		t.Errorf("unexpected page 1 first block %+v", resp.Pages[1].Blocks[0])
	}
}

func TestServer_RenderMarkerAndHTML(t *testing.T) {
	e := newTestEnv(t)

	rec := e.doJSON(t, http.MethodPost, "/api/lessons/render", map[string]string{"text": "a---b", "marker": "dashes"})
	var resp struct {
		TotalPages int `json:"total_pages"`
	}
	decode(t, rec, &resp)
	if resp.TotalPages != 2 {
		t.Errorf("expected dashes marker to split inline, got %d pages", resp.TotalPages)
	}

	rec = e.doJSON(t, http.MethodPost, "/api/lessons/render", map[string]string{"text": "x", "marker": "bogus"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad marker, got %d", rec.Code)
	}

	rec = e.doJSON(t, http.MethodPost, "/api/lessons/render?format=html&page=1", map[string]string{"text": "one\n---\n**two**"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `data-page="1"`) || !strings.Contains(body, "<strong>two</strong>") || strings.Contains(body, "one") {
		t.Errorf("unexpected html %q", body)
	}

	rec = e.doJSON(t, http.MethodPost, "/api/lessons/render?page=7", map[string]string{"text": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for page out of range, got %d", rec.Code)
	}
}

func TestServer_GetLesson(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, "/api/lessons/intro", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Title      string `json:"title"`
		TotalPages int    `json:"total_pages"`
	}
	decode(t, rec, &resp)
	if resp.Title != "Intro" || resp.TotalPages != 3 {
		t.Errorf("unexpected lesson %+v", resp)
	}

	if rec := e.do(t, http.MethodGet, "/api/lessons/missing", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestServer_ViewLifecycle(t *testing.T) {
	e := newTestEnv(t)

	rec := e.doJSON(t, http.MethodPost, "/api/views", map[string]string{"user_id": "u1", "lesson_id": "intro"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var snap viewer.Snapshot
	decode(t, rec, &snap)
	if snap.State.PageCount != 3 || snap.State.Current != 0 {
		t.Fatalf("unexpected initial state %+v", snap.State)
	}
	base := "/api/views/" + snap.ID

	type navResp struct {
		Moved bool            `json:"moved"`
		View  viewer.Snapshot `json:"view"`
	}
	step := func(action string) navResp {
		t.Helper()
		rec := e.do(t, http.MethodPost, base+"/"+action, nil, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", action, rec.Code)
		}
		var nr navResp
		decode(t, rec, &nr)
		return nr
	}

	if nr := step("retreat"); nr.Moved {
		t.Error("expected retreat at start to be a no-op")
	}
	step("advance")
	step("advance")
	nr := step("retreat")
	if nr.View.State.Current != 1 || nr.View.State.Furthest != 2 {
		t.Errorf("expected {1,2}, got %+v", nr.View.State)
	}

	rec = e.do(t, http.MethodPost, base+"/reload", nil, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"changed":false`) {
		t.Errorf("expected unchanged reload, got %d %s", rec.Code, rec.Body.String())
	}

	if rec := e.do(t, http.MethodDelete, base, nil, ""); rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if rec := e.do(t, http.MethodGet, base, nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after close, got %d", rec.Code)
	}

	// Deliveries triggered before close still land in the store.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := e.reporter.Close(ctx); err != nil {
		t.Fatalf("reporter close: %v", err)
	}
	got, ok, _ := e.store.Get(context.Background(), "u1", "intro")
	if !ok || got.FurthestPageIndex != 2 || got.TotalPages != 3 {
		t.Errorf("expected stored furthest 2 of 3, got %+v ok=%v", got, ok)
	}
}

func TestServer_OpenViewErrors(t *testing.T) {
	e := newTestEnv(t)
	tests := []struct {
		body map[string]string
		code int
	}{
		{map[string]string{"lesson_id": "intro"}, http.StatusBadRequest},
		{map[string]string{"user_id": "u", "lesson_id": "../x"}, http.StatusBadRequest},
		{map[string]string{"user_id": "a:b", "lesson_id": "intro"}, http.StatusBadRequest},
		{map[string]string{"user_id": "u", "lesson_id": "nope"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		if rec := e.doJSON(t, http.MethodPost, "/api/views", tt.body); rec.Code != tt.code {
			t.Errorf("%v: expected %d, got %d", tt.body, tt.code, rec.Code)
		}
	}
	if rec := e.do(t, http.MethodPost, "/api/views/unknown/advance", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown view, got %d", rec.Code)
	}
}

func TestServer_ReceiveProgressMaxSemantics(t *testing.T) {
	e := newTestEnv(t)
	post := func(idx int) *httptest.ResponseRecorder {
		return e.doJSON(t, http.MethodPost, "/api/progress", progress.Event{
			UserID: "u", LessonID: "l", FurthestPageIndex: idx, TotalPages: 4,
		})
	}
	for _, idx := range []int{2, 1, 2} {
		if rec := post(idx); rec.Code != http.StatusOK {
			t.Fatalf("post %d: expected 200, got %d", idx, rec.Code)
		}
	}

	rec := e.do(t, http.MethodGet, "/api/progress?user_id=u&lesson_id=l", nil, "")
	var resp struct {
		Furthest int     `json:"furthest_page_index"`
		Percent  float64 `json:"percent"`
	}
	decode(t, rec, &resp)
	if resp.Furthest != 2 || resp.Percent != 75 {
		t.Errorf("expected furthest 2 at 75%%, got %+v", resp)
	}

	rec = e.do(t, http.MethodGet, "/api/progress?user_id=u", nil, "")
	var list struct {
		Progress []json.RawMessage `json:"progress"`
	}
	decode(t, rec, &list)
	if len(list.Progress) != 1 {
		t.Errorf("expected 1 record, got %d", len(list.Progress))
	}

	if rec := e.do(t, http.MethodGet, "/api/progress?user_id=u&lesson_id=zzz", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if rec := e.do(t, http.MethodGet, "/api/progress", nil, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without user_id, got %d", rec.Code)
	}
}

func TestServer_ReceiveProgressValidation(t *testing.T) {
	e := newTestEnv(t)
	rec := e.doJSON(t, http.MethodPost, "/api/progress", map[string]any{
		"lesson_id": "l", "furthest_page_index": 5, "total_pages": 3,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var resp struct {
		Fields map[string]string `json:"fields"`
	}
	decode(t, rec, &resp)
	if resp.Fields["user_id"] == "" || resp.Fields["furthest_page_index"] == "" {
		t.Errorf("expected field errors for user_id and furthest_page_index, got %v", resp.Fields)
	}
}

func TestServer_ReceiveProgressRejectsKeyUnsafeIDs(t *testing.T) {
	e := newTestEnv(t)
	for _, body := range []map[string]any{
		{"user_id": "a:b", "lesson_id": "c", "furthest_page_index": 0},
		{"user_id": "a", "lesson_id": "b:c", "furthest_page_index": 0},
	} {
		rec := e.doJSON(t, http.MethodPost, "/api/progress", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%v: expected 400, got %d", body, rec.Code)
		}
	}
}

func multipartBody(t *testing.T, field string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, body := range files {
		fw, err := mw.CreateFormFile(field, name)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte(body))
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestServer_Import(t *testing.T) {
	e := newTestEnv(t)
	body, ct := multipartBody(t, "file", map[string]string{"notes.md": "# Notes\n\n**Key** idea\n\n---\n\nMore"})
	rec := e.do(t, http.MethodPost, "/api/lessons/import", body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res importResult
	decode(t, rec, &res)
	if res.Markup != "# Notes\n**Key** idea\n---\nMore" || res.TotalPages != 2 || res.Title != "Notes" {
		t.Errorf("unexpected import %+v", res)
	}
	if res.LessonID != "notes" {
		t.Errorf("expected lesson id notes, got %q", res.LessonID)
	}

	body, ct = multipartBody(t, "file", map[string]string{"virus.exe": "MZ"})
	if rec := e.do(t, http.MethodPost, "/api/lessons/import", body, ct); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unsupported type, got %d", rec.Code)
	}
}

func TestServer_ImportLessonIDFallback(t *testing.T) {
	e := newTestEnv(t)
	body, ct := multipartBody(t, "file", map[string]string{"日本語.md": "本文"})
	rec := e.do(t, http.MethodPost, "/api/lessons/import", body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res importResult
	decode(t, rec, &res)
	if !strings.HasPrefix(res.LessonID, "lesson-") {
		t.Errorf("expected generated lesson id, got %q", res.LessonID)
	}
	if err := content.ValidateID(res.LessonID); err != nil {
		t.Errorf("generated lesson id %q is not loadable: %v", res.LessonID, err)
	}
}

func TestServer_BatchImport(t *testing.T) {
	e := newTestEnv(t)
	body, ct := multipartBody(t, "files", map[string]string{
		"a.txt":  "one\n---\ntwo",
		"b.html": "<h1>B</h1><p>x</p>",
		"c.bin":  "??",
	})
	rec := e.do(t, http.MethodPost, "/api/lessons/import/batch", body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Lessons []importResult `json:"lessons"`
	}
	decode(t, rec, &resp)
	if len(resp.Lessons) != 3 {
		t.Fatalf("expected 3 results, got %d", len(resp.Lessons))
	}
	byName := map[string]importResult{}
	for _, l := range resp.Lessons {
		byName[l.Filename] = l
	}
	if byName["a.txt"].TotalPages != 2 {
		t.Errorf("expected a.txt to have 2 pages, got %+v", byName["a.txt"])
	}
	if byName["b.html"].Markup != "# B\nx" {
		t.Errorf("unexpected b.html markup %q", byName["b.html"].Markup)
	}
	if byName["b.html"].LessonID != "b" {
		t.Errorf("expected lesson id b, got %q", byName["b.html"].LessonID)
	}
	if byName["c.bin"].Error == "" {
		t.Error("expected error for c.bin")
	}
}

func TestServer_DeliveryStats(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, "/api/stats/delivery", nil, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"sent"`) {
		t.Errorf("unexpected stats response %d %s", rec.Code, rec.Body.String())
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"../../etc/passwd": "passwd",
		"a/b/c.md":         "c.md",
		"":                 "unnamed",
		"ok.txt":           "ok.txt",
	}
	for in, want := range tests {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestServer_ViewWithoutReporter(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Config{LessonpageAPIKey: testKey, PageMarker: "line", MaxUploadBytes: 1 << 20, MaxBatchFiles: 5}
	deps := Deps{
		Loader: content.Static{"intro": {Text: "a\n---\nb"}},
		Views:  viewer.NewStore(time.Hour),
		Store:  progressstore.NewMemoryStore(),
	}
	e := &testEnv{srv: NewServer(deps, log, cfg)}

	rec := e.doJSON(t, http.MethodPost, "/api/views", map[string]string{"user_id": "u1", "lesson_id": "intro"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var snap viewer.Snapshot
	decode(t, rec, &snap)

	rec = e.do(t, http.MethodPost, "/api/views/"+snap.ID+"/advance", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 advancing without a reporter, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"furthest_page_index":1`) {
		t.Errorf("expected furthest 1, got %s", rec.Body.String())
	}

	if rec := e.do(t, http.MethodGet, "/api/stats/delivery", nil, ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 for stats without a reporter, got %d", rec.Code)
	}
}
