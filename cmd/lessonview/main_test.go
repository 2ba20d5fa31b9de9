package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/dgallion1/lessonpage/internal/progress"
)

const sampleLesson = "---\ntitle: Sample\n---\n# Intro\nHello **there**\n---\n## Part 2\nBye\n---\nEnd"

func writeLesson(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_All(t *testing.T) {
	path := writeLesson(t, "sample.lesson", sampleLesson)
	var stdout, stderr bytes.Buffer
	if code := run([]string{"--all", "-w", "40", path}, nil, &stdout, &stderr); code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	out := stdout.String()
	for _, want := range []string{"INTRO", "Hello there", "Part 2", "End", "page 1 / 3", "page 3 / 3"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("expected plain output when stdout is not a terminal")
	}
	if strings.Contains(out, "title: Sample") {
		t.Error("expected front matter stripped")
	}
}

func TestRun_SinglePage(t *testing.T) {
	path := writeLesson(t, "sample.lesson", sampleLesson)
	var stdout, stderr bytes.Buffer
	if code := run([]string{"--page", "1", path}, nil, &stdout, &stderr); code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	out := stdout.String()
	if !strings.Contains(out, "Part 2") || strings.Contains(out, "INTRO") {
		t.Errorf("expected only page 1:\n%s", out)
	}
	if !strings.Contains(out, "page 2 / 3") {
		t.Errorf("expected footer page 2 / 3:\n%s", out)
	}

	stdout.Reset()
	if code := run([]string{"--page", "9", path}, nil, &stdout, &stderr); code != 1 {
		t.Errorf("expected exit 1 for out of range page, got %d", code)
	}
}

func TestRun_ImportMarkdown(t *testing.T) {
	path := writeLesson(t, "notes.md", "# Notes\n\nFirst\n\n---\n\nSecond\n")
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-a", path}, nil, &stdout, &stderr); code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "page 2 / 2") {
		t.Errorf("expected 2 pages from markdown import:\n%s", stdout.String())
	}
}

func TestRun_Stdin(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-"}, strings.NewReader("a\n---\nb"), &stdout, &stderr); code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "page 2 / 2") {
		t.Errorf("expected both pages printed:\n%s", stdout.String())
	}
}

func TestRun_Usage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(nil, nil, &stdout, &stderr); code != 2 {
		t.Errorf("expected exit 2 without a file, got %d", code)
	}
	if code := run([]string{"--marker", "nope", "x.lesson"}, nil, &stdout, &stderr); code != 2 {
		t.Errorf("expected exit 2 for bad marker, got %d", code)
	}
}

func TestRun_InteractiveReportsProgress(t *testing.T) {
	var mu sync.Mutex
	var got []progress.Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/progress" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var ev progress.Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			t.Errorf("decode: %v", err)
		}
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	}))
	defer srv.Close()

	path := writeLesson(t, "week1.lesson", sampleLesson)
	stdin := strings.NewReader("n\nn\np\nn\n2\nq\n")
	var stdout, stderr bytes.Buffer
	code := run([]string{"--report-url", srv.URL, "--report-key", "k", "--user", "u1", path}, stdin, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}

	mu.Lock()
	defer mu.Unlock()
	idx := make([]int, len(got))
	for i, ev := range got {
		idx[i] = ev.FurthestPageIndex
		if ev.UserID != "u1" || ev.LessonID != "week1" || ev.TotalPages != 3 {
			t.Errorf("unexpected event %+v", ev)
		}
	}
	sort.Ints(idx)
	if len(idx) != 2 || idx[0] != 1 || idx[1] != 2 {
		t.Errorf("expected one report each for pages 1 and 2, got %v", idx)
	}
	if !strings.Contains(stdout.String(), "[q]uit> ") {
		t.Error("expected prompt in output")
	}
}

func TestRun_ReportRequiresUser(t *testing.T) {
	path := writeLesson(t, "w.lesson", "x")
	var stdout, stderr bytes.Buffer
	code := run([]string{"--report-url", "http://127.0.0.1:1", "--user", "", path}, strings.NewReader("q\n"), &stdout, &stderr)
	if code != 2 {
		t.Errorf("expected exit 2 without user, got %d", code)
	}
}

func TestPrompt(t *testing.T) {
	if got := prompt(false, true); got != "[n]ext [q]uit> " {
		t.Errorf("unexpected prompt %q", got)
	}
	if got := prompt(true, false); got != "[p]rev [q]uit> " {
		t.Errorf("unexpected prompt %q", got)
	}
}
