package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"
)

const timeLayout = "2006-01-02 15:04"

// printer writes a result either as an aligned table or as JSON, optionally filtered
// through a JMESPath query.
type printer struct {
	out   io.Writer
	json  bool
	query string
}

func validateQuery(expr string) error {
	if _, err := jmespath.Compile(expr); err != nil {
		return fmt.Errorf("invalid --query: %w", err)
	}
	return nil
}

// emit prints v. table is used for human output and receives a tabwriter.
func (p *printer) emit(v any, table func(w io.Writer)) error {
	if !p.json && p.query == "" {
		tw := tabwriter.NewWriter(p.out, 0, 4, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	}

	data := any(v)
	if p.query != "" {
		generic, err := toGeneric(v)
		if err != nil {
			return err
		}
		if data, err = jmespath.Search(p.query, generic); err != nil {
			return fmt.Errorf("evaluate --query: %w", err)
		}
	}

	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// message prints a line of human output; it is suppressed in JSON mode.
func (p *printer) message(format string, args ...any) {
	if p.json || p.query != "" {
		return
	}
	fmt.Fprintf(p.out, format+"\n", args...)
}

// toGeneric round-trips v through JSON so queries see wire field names.
func toGeneric(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return out, nil
}

func row(w io.Writer, cols ...string) {
	fmt.Fprintln(w, strings.Join(cols, "\t"))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(strings.ReplaceAll(s, "\n", " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}
