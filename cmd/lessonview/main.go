// Command lessonview renders a lesson in the terminal and lets a learner
// page through it, optionally reporting progress to a lessonpage server.
package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/dgallion1/lessonpage/internal/content"
	"github.com/dgallion1/lessonpage/internal/importer"
	"github.com/dgallion1/lessonpage/internal/paginate"
	"github.com/dgallion1/lessonpage/internal/progress"
	"github.com/dgallion1/lessonpage/internal/render"
	"github.com/dgallion1/lessonpage/internal/viewer"
)

const (
	defaultWidth       = 80
	reportDrainTimeout = 5 * time.Second
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type options struct {
	page          int
	all           bool
	width         int
	plain         bool
	marker        string
	forceImport   bool
	reportURL     string
	reportKey     string
	reportTimeout time.Duration
	user          string
	lesson        string
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var opts options
	flags := pflag.NewFlagSet("lessonview", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.IntVarP(&opts.page, "page", "p", -1, "Print a single page (0-based) and exit")
	flags.BoolVarP(&opts.all, "all", "a", false, "Print every page and exit")
	flags.IntVarP(&opts.width, "width", "w", 0, "Output width override (0 uses terminal width if available)")
	flags.BoolVarP(&opts.plain, "plain", "b", false, "Plain output without ANSI styling")
	flags.StringVarP(&opts.marker, "marker", "m", string(paginate.MarkerLine), "Page marker: line|dashes|dashes-newline")
	flags.BoolVar(&opts.forceImport, "import", false, "Convert the input with the document importer first")
	flags.StringVar(&opts.reportURL, "report-url", "", "lessonpage base URL to report progress to")
	flags.StringVar(&opts.reportKey, "report-key", os.Getenv("LESSONPAGE_API_KEY"), "API key for --report-url")
	flags.DurationVar(&opts.reportTimeout, "report-timeout", 0, "Per-report HTTP timeout (0 for none)")
	flags.StringVarP(&opts.user, "user", "u", os.Getenv("USER"), "User id attached to progress reports")
	flags.StringVarP(&opts.lesson, "lesson", "l", "", "Lesson id (defaults to the file name)")
	flags.SetInterspersed(true)
	flags.Usage = func() {
		fmt.Fprintf(stderr, "Usage: lessonview [flags] FILE\n")
		fmt.Fprintln(stderr, "\nWith FILE of \"-\" the lesson is read from stdin.")
		fmt.Fprintln(stderr, "\nFlags:")
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if flags.NArg() != 1 {
		flags.Usage()
		return 2
	}

	marker, err := paginate.ParseMarker(opts.marker)
	if err != nil {
		fmt.Fprintf(stderr, "lessonview: %v\n", err)
		return 2
	}

	path := flags.Arg(0)
	if path == "-" && opts.page < 0 {
		// stdin carries the lesson, so there is nothing left to read commands from.
		opts.all = true
	}
	l, err := loadLesson(path, stdin, opts.forceImport)
	if err != nil {
		fmt.Fprintf(stderr, "lessonview: %v\n", err)
		return 1
	}
	if opts.lesson != "" {
		l.ID = opts.lesson
	}

	t := render.Terminal{Width: resolveWidth(opts.width, stdout), Plain: opts.plain || !isTerminal(stdout)}
	renderOpts := render.Options{Marker: marker}

	if opts.all || opts.page >= 0 {
		return printPages(stdout, stderr, t, render.RenderWith(l.Text, renderOpts), opts)
	}

	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	var reporter *progress.Reporter
	var rep viewer.Reporter
	if opts.reportURL != "" {
		if err := content.ValidateID(l.ID); err != nil {
			fmt.Fprintf(stderr, "lessonview: --lesson: %v\n", err)
			return 2
		}
		if err := progress.ValidateUserID(opts.user); err != nil {
			fmt.Fprintf(stderr, "lessonview: --user (required with --report-url): %v\n", err)
			return 2
		}
		sink := progress.NewHTTPSink(opts.reportURL, opts.reportKey, opts.reportTimeout)
		defer sink.Close()
		reporter = progress.NewReporter(sink, log, 2)
		rep = reporter
	}

	v := viewer.New(l, rep, renderOpts, log, opts.user)
	interactive(stdin, stdout, t, v)
	v.Close()

	if reporter != nil {
		ctx, cancel := context.WithTimeout(context.Background(), reportDrainTimeout)
		defer cancel()
		if err := reporter.Close(ctx); err != nil {
			fmt.Fprintf(stderr, "lessonview: progress reports still pending: %v\n", err)
		}
		snap := reporter.Stats().Snapshot()
		if snap.Failed > 0 {
			fmt.Fprintf(stderr, "lessonview: %d of %d progress reports failed\n", snap.Failed, snap.Sent+snap.Failed)
		}
	}
	return 0
}

// loadLesson reads lesson markup from path, converting other document
// formats through the importer.
func loadLesson(path string, stdin io.Reader, forceImport bool) (content.Lesson, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
		path = "stdin.lesson"
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return content.Lesson{}, fmt.Errorf("read %s: %w", path, err)
	}

	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	ext := strings.ToLower(filepath.Ext(path))
	if !forceImport && (ext == ".lesson" || ext == ".txt") {
		return content.ParseFile(id, data)
	}

	imp, err := importer.ForFile(path, importer.Options{FallbackPdftotext: true})
	if err != nil {
		return content.Lesson{}, err
	}
	doc, err := imp.Import(bytes.NewReader(data), path)
	if err != nil {
		return content.Lesson{}, fmt.Errorf("import %s: %w", path, err)
	}
	return content.Lesson{ID: id, Title: doc.Title, Text: doc.Markup}, nil
}

func printPages(stdout, stderr io.Writer, t render.Terminal, pages []render.Page, opts options) int {
	total := len(pages)
	if opts.page >= 0 && !opts.all {
		if opts.page >= total {
			fmt.Fprintf(stderr, "lessonview: page %d out of range (lesson has %d pages)\n", opts.page, total)
			return 1
		}
		pages = pages[opts.page : opts.page+1]
	}
	for i, p := range pages {
		if i > 0 {
			fmt.Fprintln(stdout)
		}
		if err := t.WritePage(stdout, p); err != nil {
			fmt.Fprintf(stderr, "lessonview: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, t.Footer(p.Index, total))
	}
	return 0
}

// interactive pages through a view with n/p/q commands read line by line.
func interactive(stdin io.Reader, stdout io.Writer, t render.Terminal, v *viewer.View) {
	show := func() {
		snap := v.Snapshot()
		fmt.Fprintln(stdout)
		t.WritePage(stdout, snap.Page)
		fmt.Fprintln(stdout, t.Footer(snap.State.Current, snap.State.PageCount))
		fmt.Fprint(stdout, prompt(snap.CanRetreat, snap.CanAdvance))
	}

	show()
	sc := bufio.NewScanner(stdin)
	for sc.Scan() {
		cmd := strings.ToLower(strings.TrimSpace(sc.Text()))
		switch cmd {
		case "q", "quit", "exit":
			return
		case "", "n", "next":
			v.Advance()
		case "p", "prev", "b", "back":
			v.Retreat()
		default:
			if n, err := strconv.Atoi(cmd); err == nil {
				goTo(v, n)
			}
		}
		show()
	}
}

// goTo steps the view to page n one move at a time so every furthest-page
// change is reported in order.
func goTo(v *viewer.View, n int) {
	for {
		cur := v.Snapshot().State.Current
		var moved bool
		switch {
		case n > cur:
			moved, _ = v.Advance()
		case n < cur:
			moved, _ = v.Retreat()
		}
		if !moved {
			return
		}
	}
}

func prompt(canRetreat, canAdvance bool) string {
	var parts []string
	if canRetreat {
		parts = append(parts, "[p]rev")
	}
	if canAdvance {
		parts = append(parts, "[n]ext")
	}
	parts = append(parts, "[q]uit")
	return strings.Join(parts, " ") + "> "
}

func resolveWidth(width int, w io.Writer) int {
	if width > 0 {
		return width
	}
	if f, ok := w.(*os.File); ok {
		fd := int(f.Fd())
		if term.IsTerminal(fd) {
			if tw, _, err := term.GetSize(fd); err == nil && tw > 0 {
				return tw
			}
		}
	}
	if value := os.Getenv("COLUMNS"); value != "" {
		if tw, err := strconv.Atoi(value); err == nil && tw > 0 {
			return tw
		}
	}
	return defaultWidth
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
