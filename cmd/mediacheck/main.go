// mediacheck verifies that every local asset referenced by the migrated
// documents actually exists under the media directory. Broken references
// usually mean a download failed during migration; re-running the main
// tool fetches the missing files.
package main

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/adrg/frontmatter"
)

var (
	imageSrcRe = regexp.MustCompile(`<Image\s+src="([^"]+)"`)
)

type docMatter struct {
	FeaturedImage string `yaml:"featuredImage"`
}

func main() {
	if len(os.Args) < 3 {
		log.Fatal("Usage: mediacheck <content-directory> <media-directory> [image-path-prefix]")
	}

	contentDir := os.Args[1]
	mediaDir := os.Args[2]
	prefix := "/images/posts"
	if len(os.Args) > 3 {
		prefix = os.Args[3]
	}

	missing := 0
	checked := 0

	err := filepath.WalkDir(contentDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // Continue on errors
		}
		if d.IsDir() || !strings.HasSuffix(path, ".mdx") {
			return nil
		}

		refs, err := assetRefs(path)
		if err != nil {
			log.Printf("Error reading %s: %v", path, err)
			return nil
		}

		for _, ref := range refs {
			checked++
			local := localFile(ref, prefix, mediaDir)
			if local == "" {
				continue // absolute URL, nothing to verify
			}
			if _, err := os.Stat(local); err != nil {
				missing++
				fmt.Printf("MISSING %s (referenced by %s)\n", ref, filepath.Base(path))
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Walking %s: %v", contentDir, err)
	}

	fmt.Printf("\nChecked %d references, %d missing\n", checked, missing)
	if missing > 0 {
		os.Exit(1)
	}
}

// assetRefs collects the featuredImage frontmatter value and every Image
// reference in one document.
func assetRefs(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var refs []string
	var meta docMatter
	body, err := frontmatter.Parse(bytes.NewReader(data), &meta)
	if err != nil {
		// Documents without parseable frontmatter are still scanned for
		// Image references.
		body = data
	}
	if meta.FeaturedImage != "" {
		refs = append(refs, meta.FeaturedImage)
	}

	for _, m := range imageSrcRe.FindAllStringSubmatch(string(body), -1) {
		refs = append(refs, m[1])
	}
	return refs, nil
}

// localFile maps a locally-rooted reference to its file under mediaDir.
// References outside the prefix (absolute URLs) return "".
func localFile(ref, prefix, mediaDir string) string {
	if !strings.HasPrefix(ref, prefix+"/") {
		return ""
	}
	rel := strings.TrimPrefix(ref, prefix+"/")
	return filepath.Join(mediaDir, filepath.FromSlash(rel))
}
