// processor.go
package main

import (
	"context"
	"log"
	"path/filepath"
)

// Processor wires the pipeline stages together: read export, extract
// items, convert, fetch media, write documents. Items are processed
// sequentially; within one item, asset downloads run concurrently.
type Processor struct {
	settings  *Settings
	converter *Converter
	fetcher   *MediaFetcher
	writer    *DocumentWriter
}

// NewProcessor creates a processor from settings.
func NewProcessor(settings *Settings) *Processor {
	return &Processor{
		settings:  settings,
		converter: NewConverter(settings),
		fetcher:   NewMediaFetcher(settings),
		writer:    NewDocumentWriter(settings),
	}
}

// Run executes the full migration. Only a failure to read the export is
// fatal; per-item and per-asset failures are logged and skipped.
func (p *Processor) Run(ctx context.Context) (*RunSummary, error) {
	items, err := ReadExport(p.settings.ExportFile)
	if err != nil {
		return nil, err
	}

	summary := &RunSummary{TotalItems: len(items)}
	log.Printf("Found %d total items in export", len(items))

	attachments := BuildAttachmentIndex(items)

	var posts []ExportItem
	for _, it := range items {
		if it.IsPublishedPost() {
			posts = append(posts, it)
		}
	}
	summary.PublishedPosts = len(posts)
	log.Printf("Found %d published posts", len(posts))

	for i, item := range posts {
		slug := postSlug(item)
		log.Printf("[%d/%d] Processing: %s (%s)", i+1, len(posts), item.Title, slug)

		doc := p.converter.Convert(item.RawBody, slug)

		urls := doc.AssetURLs
		featuredImage := ""
		if item.FeaturedAssetID != "" {
			if srcURL, ok := attachments[item.FeaturedAssetID]; ok {
				featuredImage = p.converter.localAssetPath(srcURL, slug)
				urls = appendUnique(urls, stripQuery(srcURL))
			}
		}

		for _, outcome := range p.fetcher.FetchAll(ctx, slug, urls) {
			switch outcome.Status {
			case StatusFetched:
				summary.AssetsFetched++
				log.Printf("  → Downloaded: %s", filepath.Base(outcome.LocalPath))
			case StatusAlreadyPresent:
				summary.AssetsSkipped++
				log.Printf("  → Skipping (exists): %s", filepath.Base(outcome.LocalPath))
			case StatusFailed:
				summary.AssetsFailed++
				log.Printf("  ✗ Failed to download %s: %v", outcome.SourceURL, outcome.Error)
			}
		}

		destPath, err := p.writer.Write(item, doc, slug, featuredImage)
		if err != nil {
			log.Printf("  ✗ Failed to write %s: %v", slug, err)
			continue
		}
		summary.Written++
		log.Printf("  ✓ Created: %s", destPath)
	}

	log.Printf("Migration complete: created %d documents", summary.Written)
	return summary, nil
}

func appendUnique(urls []string, u string) []string {
	for _, existing := range urls {
		if existing == u {
			return urls
		}
	}
	return append(urls, u)
}
