package main

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// textWriter aligns rows into tab-separated columns.
type textWriter struct {
	tw *tabwriter.Writer
}

func (w *textWriter) row(cols ...string) {
	fmt.Fprintln(w.tw, strings.Join(cols, "\t"))
}

func (w *textWriter) header(cols ...string) { w.row(cols...) }

func (w *textWriter) blank() { fmt.Fprintln(w.tw) }

// render writes v as indented JSON or hands a text writer to text.
func render(cmd *cobra.Command, opts *RootOptions, v any, text func(w *textWriter)) error {
	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	w := &textWriter{tw: tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)}
	text(w)
	return w.tw.Flush()
}

func sortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
