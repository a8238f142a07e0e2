package main

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// WXR exports carry no guaranteed schema and the wp: namespace URI changes
// with the export version, so items are decoded token by token, matching
// elements by local name only. Missing fields stay at their zero value.

const excludedCategory = "Uncategorized"

// ReadExport loads and parses the export document at path.
func ReadExport(path string) ([]ExportItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading export file: %w", err)
	}
	defer f.Close()

	items, err := ParseExport(f)
	if err != nil {
		return nil, fmt.Errorf("parsing export file %s: %w", path, err)
	}
	return items, nil
}

// ParseExport decodes all <item> records from a WXR document.
func ParseExport(r io.Reader) ([]ExportItem, error) {
	d := xml.NewDecoder(r)
	d.Strict = false
	d.Entity = xml.HTMLEntity

	var items []ExportItem
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading XML token: %w", err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "item" {
			continue
		}

		item, err := parseItem(d, se)
		if err != nil {
			return nil, fmt.Errorf("decoding item %d: %w", len(items)+1, err)
		}
		items = append(items, item)
	}

	return items, nil
}

// parseItem consumes one <item> element and its children.
func parseItem(d *xml.Decoder, start xml.StartElement) (ExportItem, error) {
	var it ExportItem

	for {
		tok, err := d.Token()
		if err != nil {
			return it, err
		}

		switch se := tok.(type) {
		case xml.EndElement:
			if se.Name.Local == start.Name.Local {
				return it, nil
			}

		case xml.StartElement:
			switch se.Name.Local {
			case "title":
				it.Title = decodeText(d, &se)
			case "encoded":
				// content:encoded and excerpt:encoded share a local
				// name and differ only by namespace.
				if strings.Contains(se.Name.Space, "excerpt") {
					it.Excerpt = decodeText(d, &se)
				} else {
					it.RawBody = decodeText(d, &se)
				}
			case "post_date":
				it.PublishDate = decodeText(d, &se)
			case "post_name":
				it.Slug = decodeText(d, &se)
			case "status":
				it.Status = decodeText(d, &se)
			case "post_type":
				it.Kind = decodeText(d, &se)
			case "post_id":
				it.ExternalID = decodeText(d, &se)
			case "guid":
				it.Guid = decodeText(d, &se)
			case "category":
				domain := attrValue(se, "domain")
				name := decodeText(d, &se)
				if domain == "category" && name != "" && name != excludedCategory {
					it.Categories = append(it.Categories, name)
				}
			case "postmeta":
				key, value := decodeMeta(d, &se)
				if key == "_thumbnail_id" {
					it.FeaturedAssetID = value
				}
			default:
				if err := d.Skip(); err != nil {
					return it, err
				}
			}
		}
	}
}

// decodeText reads an element's character data, CDATA included. A decode
// failure yields an empty string, never an error: absent or malformed
// fields degrade gracefully.
func decodeText(d *xml.Decoder, se *xml.StartElement) string {
	var s string
	if err := d.DecodeElement(&s, se); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// decodeMeta reads a wp:postmeta element's key/value pair.
func decodeMeta(d *xml.Decoder, se *xml.StartElement) (key, value string) {
	var meta struct {
		Key   string `xml:"meta_key"`
		Value string `xml:"meta_value"`
	}
	if err := d.DecodeElement(&meta, se); err != nil {
		return "", ""
	}
	return strings.TrimSpace(meta.Key), strings.TrimSpace(meta.Value)
}

func attrValue(se xml.StartElement, name string) string {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

var attachmentURLRe = regexp.MustCompile(`(?i)https?://[^\s"<]+\.(?:jpg|jpeg|png|gif|webp)`)

// BuildAttachmentIndex maps attachment ids to source URLs. The first image
// URL in the attachment's body wins, with the canonical guid reference as
// fallback; attachments without any image URL are dropped from the index.
func BuildAttachmentIndex(items []ExportItem) AttachmentIndex {
	index := make(AttachmentIndex)
	for _, it := range items {
		if it.Kind != "attachment" || it.ExternalID == "" {
			continue
		}
		if url := attachmentURLRe.FindString(it.RawBody); url != "" {
			index[it.ExternalID] = url
			continue
		}
		if url := attachmentURLRe.FindString(it.Guid); url != "" {
			index[it.ExternalID] = url
		}
	}
	return index
}
