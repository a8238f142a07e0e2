package main

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"

	"github.com/adrg/frontmatter"
)

// ErrPostNotFound reports that no document exists for the requested slug.
var ErrPostNotFound = errors.New("post not found")

// postMatter is the canonical frontmatter read back from a document.
type postMatter struct {
	Title         string   `yaml:"title"`
	Date          string   `yaml:"date"`
	Excerpt       string   `yaml:"excerpt"`
	Categories    []string `yaml:"categories"`
	FeaturedImage string   `yaml:"featuredImage"`
}

// exportTemplate is the external Markdown dialect: every scalar quoted,
// author and canonical url added, categories exported as tags.
const exportTemplate = `---
title: "{{.Title}}"
{{- if .Description}}
description: "{{.Description}}"
{{- end}}
author: "{{.Author}}"
date: "{{.Date}}"
tags:
{{- range .Tags}}
  - "{{.}}"
{{- end}}
url: "{{.URL}}"
---

{{.Body}}
`

// Exporter renders canonical documents as plain Markdown for external
// consumption. It shares the ordered-rewrite design of the forward
// converter but is read-only: one file read, no network.
type Exporter struct {
	contentDir string
	siteURL    string
	author     string
	postPath   string
	tmpl       *template.Template
}

func NewExporter(settings *Settings) *Exporter {
	return &Exporter{
		contentDir: settings.ContentDir,
		siteURL:    strings.TrimSuffix(settings.SiteURL, "/"),
		author:     settings.Author,
		postPath:   settings.PostPath,
		tmpl:       template.Must(template.New("export").Parse(exportTemplate)),
	}
}

type exportDocument struct {
	Title       string
	Description string
	Author      string
	Date        string
	Tags        []string
	URL         string
	Body        string
}

// ExportMarkdown returns the plain-Markdown rendering of the document for
// slug, or ErrPostNotFound.
func (e *Exporter) ExportMarkdown(slug string) (string, error) {
	raw, err := os.ReadFile(filepath.Join(e.contentDir, slug+".mdx"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrPostNotFound
		}
		return "", fmt.Errorf("reading document for %s: %w", slug, err)
	}

	var meta postMatter
	body, err := frontmatter.Parse(bytes.NewReader(raw), &meta)
	if err != nil {
		return "", fmt.Errorf("parsing front matter for %s: %w", slug, err)
	}

	md := string(body)
	for _, pass := range e.passes() {
		md = pass.fn(md)
	}

	out := exportDocument{
		Title:       escapeQuotes(meta.Title),
		Description: flattenExcerpt(meta.Excerpt),
		Author:      e.author,
		Date:        meta.Date,
		Tags:        meta.Categories,
		URL:         e.siteURL + e.postPath + "/" + slug,
		Body:        strings.TrimSpace(md),
	}

	var buf bytes.Buffer
	if err := e.tmpl.Execute(&buf, out); err != nil {
		return "", fmt.Errorf("rendering export: %w", err)
	}
	return buf.String(), nil
}

func (e *Exporter) passes() []rewritePass {
	return []rewritePass{
		{"youtube-references", youtubeReferencesToLinks},
		{"image-references", imageReferencesToMarkdown},
		{"absolute-asset-urls", e.absoluteAssetURLs},
	}
}

var (
	youtubeRefRe = regexp.MustCompile(`<YouTube\s+id="([^"]+)"[^>]*/>`)
	// Attribute order is fixed by the forward converter: src, alt, then
	// an optional caption fragment.
	imageRefRe     = regexp.MustCompile(`(?s)<Image\s+src="([^"]*)"\s+alt="([^"]*)"(?:\s+caption=\{<>(.*?)</>\})?\s*/>`)
	relativeLinkRe = regexp.MustCompile(`\]\((/[^)]*)\)`)
)

// youtubeReferencesToLinks substitutes each embed reference with its
// plain-link equivalent.
func youtubeReferencesToLinks(s string) string {
	return replaceSubmatch(youtubeRefRe, s, func(groups []string) string {
		return fmt.Sprintf("[Watch on YouTube](https://www.youtube.com/watch?v=%s)", groups[1])
	})
}

// imageReferencesToMarkdown rewrites Image references to markdown images,
// keeping a caption as an italic line below.
func imageReferencesToMarkdown(s string) string {
	return replaceSubmatch(imageRefRe, s, func(groups []string) string {
		out := fmt.Sprintf("![%s](%s)", groups[2], groups[1])
		if caption := strings.TrimSpace(groups[3]); caption != "" {
			out += "\n*" + caption + "*"
		}
		return out
	})
}

// absoluteAssetURLs rewrites relative link targets to the public site URL.
// Absolute URLs pass through untouched.
func (e *Exporter) absoluteAssetURLs(s string) string {
	return replaceSubmatch(relativeLinkRe, s, func(groups []string) string {
		return "](" + e.siteURL + groups[1] + ")"
	})
}

// Handler serves rendered Markdown over HTTP for live consumption.
func (e *Exporter) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /markdown/{slug}", func(w http.ResponseWriter, r *http.Request) {
		slug := strings.TrimSuffix(r.PathValue("slug"), ".md")

		doc, err := e.ExportMarkdown(slug)
		if errors.Is(err, ErrPostNotFound) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			log.Printf("Exporting %s failed: %v", slug, err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		fmt.Fprint(w, doc)
	})
	return mux
}
