package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"
	"time"
)

// postTemplate fixes the frontmatter key order: title, date, excerpt,
// categories, featuredImage. Excerpt and featuredImage are omitted
// entirely when empty.
const postTemplate = `---
title: "{{.Title}}"
date: {{.Date}}
{{- if .Excerpt}}
excerpt: "{{.Excerpt}}"
{{- end}}
categories:
{{- range .Categories}}
  - {{.}}
{{- end}}
{{- if .FeaturedImage}}
featuredImage: {{.FeaturedImage}}
{{- end}}
---

{{.Body}}
`

// DocumentWriter assembles front matter plus converted body and writes the
// final document. Output is deterministic for identical input, so
// re-running the pipeline overwrites files byte for byte.
type DocumentWriter struct {
	contentDir      string
	defaultCategory string
	tmpl            *template.Template
}

func NewDocumentWriter(settings *Settings) *DocumentWriter {
	return &DocumentWriter{
		contentDir:      settings.ContentDir,
		defaultCategory: settings.DefaultCategory,
		tmpl:            template.Must(template.New("post").Parse(postTemplate)),
	}
}

type outputDocument struct {
	Title         string
	Date          string
	Excerpt       string
	Categories    []string
	FeaturedImage string
	Body          string
}

// Write renders one item's document and writes it to
// <contentDir>/<slug>.mdx. An empty converted body is still valid output.
func (w *DocumentWriter) Write(item ExportItem, doc ConvertedDocument, slug, featuredImage string) (string, error) {
	out := outputDocument{
		Title:         escapeQuotes(item.Title),
		Date:          formatDate(item.PublishDate),
		Excerpt:       flattenExcerpt(item.Excerpt),
		Categories:    item.Categories,
		FeaturedImage: featuredImage,
		Body:          doc.Body,
	}
	if len(out.Categories) == 0 {
		out.Categories = []string{w.defaultCategory}
	}

	var buf bytes.Buffer
	if err := w.tmpl.Execute(&buf, out); err != nil {
		return "", fmt.Errorf("rendering document: %w", err)
	}

	if err := os.MkdirAll(w.contentDir, 0755); err != nil {
		return "", fmt.Errorf("creating content directory: %w", err)
	}

	destPath := filepath.Join(w.contentDir, slug+".mdx")
	if err := os.WriteFile(destPath, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("writing document: %w", err)
	}
	return destPath, nil
}

func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

// flattenExcerpt quote-escapes the excerpt and flattens internal newlines
// to spaces so it stays a single-line scalar.
func flattenExcerpt(s string) string {
	s = escapeQuotes(s)
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}

// formatDate normalizes the published date to YYYY-MM-DD, falling back to
// the current date when absent or unparseable.
func formatDate(dateStr string) string {
	dateStr = strings.TrimSpace(dateStr)
	if dateStr != "" {
		for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, dateStr); err == nil {
				return t.Format("2006-01-02")
			}
		}
	}
	return time.Now().Format("2006-01-02")
}

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)

// slugify normalizes a title into a slug: lowercase, non-alphanumeric runs
// collapsed to a single hyphen, leading and trailing hyphens trimmed.
func slugify(title string) string {
	slug := strings.ToLower(title)
	slug = nonAlnumRe.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "post"
	}
	return slug
}

// postSlug returns the item's slug, derived from the title when the export
// provides none.
func postSlug(item ExportItem) string {
	if item.Slug != "" {
		return item.Slug
	}
	return slugify(item.Title)
}
