package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"thumbcache/internal/store"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{-5, "0 B"},
		{0, "0 B"},
		{999, "999 B"},
		{1500, "1.5 kB"},
		{2_000_000, "2.0 MB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSummaryRowsOrder(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := store.Record{
		Version: 2,
		Entries: map[string]store.Entry{
			"old":   {ThumbnailData: "aaaa", CreatedAt: now.Add(-48 * time.Hour).UnixMilli()},
			"new":   {ThumbnailData: "bb", CreatedAt: now.Add(-time.Minute).UnixMilli()},
			"new-b": {ThumbnailData: "c", CreatedAt: now.Add(-time.Minute).UnixMilli()},
		},
		Aliases: map[string]string{"a1": "old", "a2": "old", "a3": "new"},
	}

	rows := summaryRows(rec)
	var keys []string
	for _, r := range rows {
		keys = append(keys, r.key)
	}
	if got := strings.Join(keys, ","); got != "new,new-b,old" {
		t.Fatalf("order = %s", got)
	}
	if rows[2].aliases != 2 || rows[0].aliases != 1 || rows[1].aliases != 0 {
		t.Errorf("alias counts = %d %d %d", rows[0].aliases, rows[1].aliases, rows[2].aliases)
	}
	if rows[2].size != 4 {
		t.Errorf("size = %d, want 4", rows[2].size)
	}
}

func TestWriteSummary(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := store.Record{
		Version: 2,
		Entries: map[string]store.Entry{
			"clip": {ThumbnailData: strings.Repeat("x", 2048), CreatedAt: now.Add(-2 * time.Hour).UnixMilli(), SourceURL: "https://x/clip.mp4"},
		},
		Aliases: map[string]string{"clip.mp4": "clip"},
	}

	var buf bytes.Buffer
	writeSummary(&buf, "ns", rec, now)
	out := buf.String()

	for _, want := range []string{"namespace ns: 1 entries, 1 aliases, 2.0 kB", "KEY", "clip", "2 hours ago", "https://x/clip.mp4"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	writeSummary(&buf, "empty", store.Record{}, now)
	if got := strings.TrimSpace(buf.String()); got != "namespace empty: 0 entries, 0 aliases, 0 B" {
		t.Errorf("empty summary = %q", got)
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := confirm(strings.NewReader(tt.in)); got != tt.want {
			t.Errorf("confirm(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsURL(t *testing.T) {
	if !isURL("https://x/a.mp4") || isURL("./a.mp4") || isURL("/videos/a.mp4") {
		t.Error("isURL misclassified input")
	}
}
