package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/jrsteele09/learnlink-client/alerts"
	"github.com/jrsteele09/learnlink-client/pagination"
)

// alertPrinter writes each alert once, when it first appears
type alertPrinter struct {
	mu   sync.Mutex
	out  io.Writer
	seen map[string]bool
}

func newAlertPrinter(out io.Writer) *alertPrinter {
	return &alertPrinter{out: out, seen: make(map[string]bool)}
}

func (p *alertPrinter) print(active []alerts.Alert) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, a := range active {
		if p.seen[a.ID] {
			continue
		}
		p.seen[a.ID] = true
		fmt.Fprintf(p.out, "%s %s\n", levelText(a.Level, fmt.Sprintf("[%-7s]", a.Level)), a.Message)
	}
}

type table struct {
	w *tabwriter.Writer
}

func newTable(out io.Writer, headers ...string) *table {
	t := &table{w: tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)}
	for i, h := range headers {
		headers[i] = colorize(Gray, strings.ToUpper(h))
	}
	t.row(headers...)
	return t
}

func (t *table) row(cols ...string) {
	fmt.Fprintln(t.w, strings.Join(cols, "\t"))
}

func (t *table) flush() {
	_ = t.w.Flush()
}

func pageFooter[T any](out io.Writer, r *pagination.Result[T]) {
	if r.Total == 0 {
		fmt.Fprintln(out, colorize(Gray, "nothing to show"))
		return
	}
	fmt.Fprintln(out, colorize(Gray, fmt.Sprintf("page %d of %d (%d total)", r.Page, r.TotalPages(), r.Total)))
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
