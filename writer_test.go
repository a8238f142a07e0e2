package main

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func newTestWriter(t *testing.T) *DocumentWriter {
	t.Helper()
	settings := DefaultSettings()
	settings.ContentDir = t.TempDir()
	return NewDocumentWriter(settings)
}

func TestWriteFullDocument(t *testing.T) {
	w := newTestWriter(t)

	item := ExportItem{
		Title:       `Using "context" in Go`,
		PublishDate: "2021-03-14 09:26:53",
		Excerpt:     "A short\nsummary.",
		Categories:  []string{"Go", "Backend"},
	}
	doc := ConvertedDocument{Body: "Hello **world**"}

	path, err := w.Write(item, doc, "using-context-in-go", "/images/posts/using-context-in-go/cover.png")
	if err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if filepath.Base(path) != "using-context-in-go.mdx" {
		t.Errorf("Write() path = %q, want slug-named .mdx file", path)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	want := `---
title: "Using \"context\" in Go"
date: 2021-03-14
excerpt: "A short summary."
categories:
  - Go
  - Backend
featuredImage: /images/posts/using-context-in-go/cover.png
---

Hello **world**
`
	if string(got) != want {
		t.Errorf("Write() document =\n%s\nwant\n%s", got, want)
	}
}

func TestWriteOmitsEmptyFields(t *testing.T) {
	w := newTestWriter(t)

	item := ExportItem{
		Title:       "No extras",
		PublishDate: "2020-01-02 00:00:00",
		Categories:  []string{"Go"},
	}

	path, err := w.Write(item, ConvertedDocument{Body: "body"}, "no-extras", "")
	if err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if strings.Contains(string(got), "excerpt:") {
		t.Errorf("document has excerpt key despite empty excerpt:\n%s", got)
	}
	if strings.Contains(string(got), "featuredImage:") {
		t.Errorf("document has featuredImage key despite none:\n%s", got)
	}
}

func TestWriteDefaultCategory(t *testing.T) {
	w := newTestWriter(t)

	item := ExportItem{Title: "Uncategorized post", PublishDate: "2020-01-02 00:00:00"}
	path, err := w.Write(item, ConvertedDocument{Body: "body"}, "uncategorized-post", "")
	if err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(string(got), "categories:\n  - WordPress\n") {
		t.Errorf("document missing default category:\n%s", got)
	}
}

func TestWriteDateFallback(t *testing.T) {
	w := newTestWriter(t)

	item := ExportItem{Title: "Undated", PublishDate: "not a date"}
	path, err := w.Write(item, ConvertedDocument{Body: "body"}, "undated", "")
	if err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if !regexp.MustCompile(`(?m)^date: \d{4}-\d{2}-\d{2}$`).Match(got) {
		t.Errorf("document missing a normalized date line:\n%s", got)
	}
}

func TestWriteIdempotent(t *testing.T) {
	w := newTestWriter(t)

	item := ExportItem{
		Title:       "Stable",
		PublishDate: "2022-07-01 12:00:00",
		Categories:  []string{"Go"},
	}
	doc := ConvertedDocument{Body: "same body"}

	path, err := w.Write(item, doc, "stable", "")
	if err != nil {
		t.Fatal(err)
	}
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := w.Write(item, doc, "stable", ""); err != nil {
		t.Fatal(err)
	}
	second, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if string(first) != string(second) {
		t.Errorf("second write differs from first:\n%s\nvs\n%s", first, second)
	}
}

func TestFormatDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2021-03-14 09:26:53", "2021-03-14"},
		{"2021-03-14T09:26:53Z", "2021-03-14"},
		{"2021-03-14", "2021-03-14"},
	}

	for _, tt := range tests {
		if got := formatDate(tt.in); got != tt.want {
			t.Errorf("formatDate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Hello World", "hello-world"},
		{"  Spaces  everywhere  ", "spaces-everywhere"},
		{"Go 1.22 is out!", "go-1-22-is-out"},
		{"Ümläuts & symbols", "ml-uts-symbols"},
		{"---", "post"},
		{"", "post"},
	}

	for _, tt := range tests {
		if got := slugify(tt.title); got != tt.want {
			t.Errorf("slugify(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}

func TestPostSlug(t *testing.T) {
	withSlug := ExportItem{Title: "Ignored Title", Slug: "explicit-slug"}
	if got := postSlug(withSlug); got != "explicit-slug" {
		t.Errorf("postSlug() = %q, want export slug", got)
	}

	withoutSlug := ExportItem{Title: "Derived From Title"}
	if got := postSlug(withoutSlug); got != "derived-from-title" {
		t.Errorf("postSlug() = %q, want title-derived slug", got)
	}
}
