package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"thumbcache/internal/store"

	"github.com/dustin/go-humanize"
)

func formatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

type dumpRow struct {
	key     string
	size    int
	created time.Time
	aliases int
	source  string
}

// summaryRows lists entries newest first, ties broken by key.
func summaryRows(rec store.Record) []dumpRow {
	aliasCount := make(map[string]int, len(rec.Entries))
	for _, target := range rec.Aliases {
		aliasCount[target]++
	}

	rows := make([]dumpRow, 0, len(rec.Entries))
	for key, e := range rec.Entries {
		rows = append(rows, dumpRow{
			key:     key,
			size:    len(e.ThumbnailData),
			created: time.UnixMilli(e.CreatedAt),
			aliases: aliasCount[key],
			source:  e.SourceURL,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].created.Equal(rows[j].created) {
			return rows[i].created.After(rows[j].created)
		}
		return rows[i].key < rows[j].key
	})
	return rows
}

func writeSummary(w io.Writer, namespace string, rec store.Record, now time.Time) {
	rows := summaryRows(rec)

	var total int64
	for _, r := range rows {
		total += int64(r.size)
	}

	fmt.Fprintf(w, "namespace %s: %d entries, %d aliases, %s\n",
		namespace, len(rec.Entries), len(rec.Aliases), formatBytes(total))
	if len(rows) == 0 {
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tSIZE\tAGE\tALIASES\tSOURCE")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			r.key, formatBytes(int64(r.size)), humanize.RelTime(r.created, now, "ago", "from now"), r.aliases, r.source)
	}
	_ = tw.Flush()
}
