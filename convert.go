package main

import (
	"fmt"
	"html"
	"path"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// Converter turns a WordPress block-HTML body into MDX. The conversion is
// an ordered list of rewrite passes, each a pure string -> string function
// that either matches and transforms or leaves its input untouched. Order
// is load-bearing: embeds and code blocks must be lifted out before the
// block comments around them are stripped, and figures must be consumed
// before the standalone image pass sees their inner <img>.
type Converter struct {
	imagePrefix      string
	defaultCodeLang  string
	defaultShellLang string
	aliases          map[string]string
	inline           *md.Converter
}

// NewConverter builds a Converter from settings.
func NewConverter(settings *Settings) *Converter {
	c := &Converter{
		imagePrefix:      strings.TrimSuffix(settings.ImagePathPrefix, "/"),
		defaultCodeLang:  settings.DefaultCodeLanguage,
		defaultShellLang: settings.DefaultShellLanguage,
		aliases:          settings.LanguageAliases,
		inline:           newInlineConverter(),
	}
	return c
}

// newInlineConverter configures the html-to-markdown converter used for
// inline content (links, bold, italic, inline code, entities).
func newInlineConverter() *md.Converter {
	conv := md.NewConverter("", true, &md.Options{
		EmDelimiter:    "*",
		CodeBlockStyle: "fenced",
	})
	// Link text is reduced to plain text; nested markup inside an anchor
	// is not representable in the target dialect.
	conv.AddRules(md.Rule{
		Filter: []string{"a"},
		Replacement: func(content string, selec *goquery.Selection, opt *md.Options) *string {
			text := strings.TrimSpace(selec.Text())
			href := strings.TrimSpace(selec.AttrOr("href", ""))
			if href == "" {
				return md.String(text)
			}
			return md.String("[" + text + "](" + href + ")")
		},
	})
	return conv
}

type rewritePass struct {
	name string
	fn   func(string) string
}

// Convert applies the full pass list to one item's raw body and records
// the asset URLs the original body referenced.
func (c *Converter) Convert(rawBody, slug string) ConvertedDocument {
	doc := ConvertedDocument{AssetURLs: ExtractAssetURLs(rawBody)}

	body := rawBody
	for _, pass := range c.passes(slug) {
		body = pass.fn(body)
	}
	doc.Body = body
	return doc
}

func (c *Converter) passes(slug string) []rewritePass {
	return []rewritePass{
		{"youtube-embed-blocks", c.youtubeEmbedBlocks},
		{"legacy-youtube-embed-blocks", c.legacyYouTubeEmbedBlocks},
		{"code-blocks", c.codeBlocks},
		{"syntaxhighlighter-blocks", c.syntaxHighlighterBlocks},
		{"strip-block-comments", stripBlockComments},
		{"residual-code-blocks", c.residualCodeBlocks},
		{"residual-syntaxhighlighter-blocks", c.residualSyntaxHighlighterBlocks},
		{"captioned-images", func(s string) string { return c.captionedImages(s, slug) }},
		{"standalone-images", func(s string) string { return c.standaloneImages(s, slug) }},
		{"youtube-links", youtubeLinks},
		{"headings", c.headings},
		{"paragraphs", c.paragraphs},
		{"unordered-lists", c.unorderedLists},
		{"ordered-lists", c.orderedLists},
		{"blockquotes", blockquotes},
		{"unwrap-containers", unwrapContainers},
		{"strip-comments", stripComments},
		{"strip-icon-blocks", stripIconBlocks},
		{"strip-spans", stripSpans},
		{"line-breaks", lineBreaks},
		{"strip-styled-elements", stripStyledElements},
		{"residual-paragraphs", c.paragraphs},
		{"unclosed-paragraphs", unclosedParagraphs},
		{"decode-entities", decodeEntitiesOutsideCode},
		{"normalize-whitespace", normalizeWhitespace},
	}
}

const youtubeURLPattern = `https?://(?:www\.)?(?:youtube\.com/watch\?v=|youtu\.be/)([a-zA-Z0-9_-]+)`

var (
	embedBlockRe     = regexp.MustCompile(`(?is)<!-- wp:embed\s*\{[^}]*"providerNameSlug"\s*:\s*"youtube"[^}]*\}\s*-->\s*<figure[^>]*>.*?<div[^>]*>\s*` + youtubeURLPattern + `[^\s<]*\s*</div>.*?</figure>\s*<!-- /wp:embed -->`)
	coreEmbedBlockRe = regexp.MustCompile(`(?is)<!-- wp:core-embed/youtube[^>]*-->\s*<figure[^>]*>.*?` + youtubeURLPattern + `[^\s<]*.*?</figure>\s*<!-- /wp:core-embed/youtube -->`)
	youtubeLinkRe    = regexp.MustCompile(`(?i)\[[^\]]*\]\(https?://(?:www\.)?youtube\.com/watch\?v=([a-zA-Z0-9_-]+)[^)]*\)`)
)

func youtubeEmbed(videoID string) string {
	return fmt.Sprintf("\n<YouTube id=%q />\n", videoID)
}

// youtubeEmbedBlocks rewrites wp:embed blocks whose provider is YouTube.
func (c *Converter) youtubeEmbedBlocks(s string) string {
	return replaceSubmatch(embedBlockRe, s, func(groups []string) string {
		return youtubeEmbed(groups[1])
	})
}

// legacyYouTubeEmbedBlocks handles the older wp:core-embed/youtube shape.
func (c *Converter) legacyYouTubeEmbedBlocks(s string) string {
	return replaceSubmatch(coreEmbedBlockRe, s, func(groups []string) string {
		return youtubeEmbed(groups[1])
	})
}

// youtubeLinks converts bare markdown links to YouTube videos that
// survived as plain anchors rather than embed blocks.
func youtubeLinks(s string) string {
	return replaceSubmatch(youtubeLinkRe, s, func(groups []string) string {
		return youtubeEmbed(groups[1])
	})
}

var (
	codeBlockRe         = regexp.MustCompile(`(?is)<!-- wp:code\s*(\{[^}]*\})?\s*-->\s*<pre[^>]*><code([^>]*)>(.*?)</code></pre>\s*<!-- /wp:code -->`)
	syntaxHighlighterRe = regexp.MustCompile(`(?is)<!-- wp:syntaxhighlighter/code\s*(\{[^}]*\})?\s*-->\s*<pre[^>]*>(.*?)</pre>\s*<!-- /wp:syntaxhighlighter/code -->`)
	residualCodeRe      = regexp.MustCompile(`(?is)<pre class="wp-block-code"><code([^>]*)>(.*?)</code></pre>`)
	residualSyntaxRe    = regexp.MustCompile(`(?is)<pre class="wp-block-syntaxhighlighter-code">(.*?)</pre>`)
	langAttrRe          = regexp.MustCompile(`(?i)lang="([^"]+)"`)
	langClassRe         = regexp.MustCompile(`(?i)class="language-([^"]+)"`)
	langMetaRe          = regexp.MustCompile(`"language"\s*:\s*"([^"]+)"`)
)

// codeBlocks converts wp:code blocks to fenced code.
func (c *Converter) codeBlocks(s string) string {
	return replaceSubmatch(codeBlockRe, s, func(groups []string) string {
		lang := c.codeLanguage(groups[2], groups[1], c.defaultCodeLang)
		return fencedCode(lang, groups[3])
	})
}

// syntaxHighlighterBlocks converts the legacy SyntaxHighlighter plugin
// block shape, which carries its language in the block metadata JSON.
func (c *Converter) syntaxHighlighterBlocks(s string) string {
	return replaceSubmatch(syntaxHighlighterRe, s, func(groups []string) string {
		lang := c.defaultShellLang
		if m := langMetaRe.FindStringSubmatch(groups[1]); m != nil {
			lang = m[1]
		}
		return fencedCode(c.normalizeLanguage(lang), groups[2])
	})
}

// residualCodeBlocks catches wp-block-code markup whose surrounding block
// comments were malformed or already gone.
func (c *Converter) residualCodeBlocks(s string) string {
	return replaceSubmatch(residualCodeRe, s, func(groups []string) string {
		lang := c.codeLanguage(groups[1], "", c.defaultCodeLang)
		return fencedCode(lang, groups[2])
	})
}

func (c *Converter) residualSyntaxHighlighterBlocks(s string) string {
	return replaceSubmatch(residualSyntaxRe, s, func(groups []string) string {
		return fencedCode(c.defaultShellLang, groups[1])
	})
}

// codeLanguage resolves a fence language: a language-* class wins over an
// explicit lang attribute, which wins over the block metadata annotation,
// which wins over the fallback. Aliases are applied last.
func (c *Converter) codeLanguage(codeAttrs, blockMeta, fallback string) string {
	lang := fallback
	if m := langMetaRe.FindStringSubmatch(blockMeta); m != nil {
		lang = m[1]
	}
	if m := langAttrRe.FindStringSubmatch(codeAttrs); m != nil {
		lang = m[1]
	}
	if m := langClassRe.FindStringSubmatch(codeAttrs); m != nil {
		lang = m[1]
	}
	return c.normalizeLanguage(lang)
}

func (c *Converter) normalizeLanguage(lang string) string {
	if alias, ok := c.aliases[strings.ToLower(lang)]; ok {
		return alias
	}
	return lang
}

// fencedCode emits a fenced code block. Entities are decoded exactly once
// and outer whitespace trimmed; the code's own newlines and indentation
// are preserved verbatim.
func fencedCode(lang, code string) string {
	code = strings.TrimSpace(decodeEntities(code))
	return "\n```" + lang + "\n" + code + "\n```\n"
}

var (
	wpCommentOpenRe  = regexp.MustCompile(`<!-- wp:[^\s]+[^>]*-->`)
	wpCommentCloseRe = regexp.MustCompile(`<!-- /wp:[^\s]+ -->`)
)

// stripBlockComments removes the paired wp: block markers around every
// remaining typed block without touching the markup between them.
func stripBlockComments(s string) string {
	s = wpCommentOpenRe.ReplaceAllString(s, "")
	return wpCommentCloseRe.ReplaceAllString(s, "")
}

var (
	figureImageRe = regexp.MustCompile(`(?is)<figure class="wp-block-image[^"]*"[^>]*>.*?</figure>`)
	imgTagRe      = regexp.MustCompile(`(?is)<img[^>]*>`)
	imgSrcRe      = regexp.MustCompile(`(?i)src="([^"]+)"`)
	imgAltRe      = regexp.MustCompile(`(?i)alt="([^"]*)"`)
	figcaptionRe  = regexp.MustCompile(`(?is)<figcaption[^>]*>(.*?)</figcaption>`)
)

// captionedImages converts wp-block-image figures, caption included, into
// Image references pointing at the local asset path. Consuming the whole
// figure here keeps its inner <img> away from the standalone image pass.
func (c *Converter) captionedImages(s, slug string) string {
	return figureImageRe.ReplaceAllStringFunc(s, func(m string) string {
		img := imgTagRe.FindString(m)
		src := firstSubmatch(imgSrcRe, img)
		if src == "" {
			return m
		}
		out := fmt.Sprintf("\n<Image src=%q alt=%q", c.localAssetPath(src, slug), firstSubmatch(imgAltRe, img))
		if caption := strings.TrimSpace(firstSubmatch(figcaptionRe, m)); caption != "" {
			out += fmt.Sprintf(" caption={<>%s</>}", c.inlineMarkdown(caption))
		}
		return out + " />\n"
	})
}

// standaloneImages converts img tags not wrapped in a captioned block.
func (c *Converter) standaloneImages(s, slug string) string {
	return imgTagRe.ReplaceAllStringFunc(s, func(m string) string {
		src := firstSubmatch(imgSrcRe, m)
		if src == "" {
			return ""
		}
		return fmt.Sprintf("\n<Image src=%q alt=%q />\n", c.localAssetPath(src, slug), firstSubmatch(imgAltRe, m))
	})
}

var (
	h2Re         = regexp.MustCompile(`(?is)<h2[^>]*>(.*?)</h2>`)
	h3Re         = regexp.MustCompile(`(?is)<h3[^>]*>(.*?)</h3>`)
	h4Re         = regexp.MustCompile(`(?is)<h4[^>]*>(.*?)</h4>`)
	paragraphRe  = regexp.MustCompile(`(?is)<p[^>]*>(.*?)</p>`)
	ulRe         = regexp.MustCompile(`(?is)<ul[^>]*>(.*?)</ul>`)
	olRe         = regexp.MustCompile(`(?is)<ol[^>]*>(.*?)</ol>`)
	liRe         = regexp.MustCompile(`(?is)<li[^>]*>(.*?)</li>`)
	blockquoteRe = regexp.MustCompile(`(?is)<blockquote[^>]*>(.*?)</blockquote>`)
)

// headings converts h2-h4 to their markdown equivalents, inner markup
// stripped to plain text.
func (c *Converter) headings(s string) string {
	for _, h := range []struct {
		marker string
		re     *regexp.Regexp
	}{{"##", h2Re}, {"###", h3Re}, {"####", h4Re}} {
		marker := h.marker
		s = replaceSubmatch(h.re, s, func(groups []string) string {
			return "\n" + marker + " " + strings.TrimSpace(stripTags(groups[1])) + "\n"
		})
	}
	return s
}

// paragraphs converts p blocks, passing inner content through the inline
// converter. Empty paragraphs vanish.
func (c *Converter) paragraphs(s string) string {
	return replaceSubmatch(paragraphRe, s, func(groups []string) string {
		converted := c.inlineMarkdown(strings.TrimSpace(groups[1]))
		if converted == "" {
			return ""
		}
		return "\n" + converted + "\n"
	})
}

func (c *Converter) unorderedLists(s string) string {
	return replaceSubmatch(ulRe, s, func(groups []string) string {
		return "\n" + replaceSubmatch(liRe, groups[1], func(item []string) string {
			return "- " + c.inlineMarkdown(strings.TrimSpace(item[1])) + "\n"
		})
	})
}

func (c *Converter) orderedLists(s string) string {
	return replaceSubmatch(olRe, s, func(groups []string) string {
		index := 0
		return "\n" + replaceSubmatch(liRe, groups[1], func(item []string) string {
			index++
			return fmt.Sprintf("%d. %s\n", index, c.inlineMarkdown(strings.TrimSpace(item[1])))
		})
	})
}

func blockquotes(s string) string {
	return replaceSubmatch(blockquoteRe, s, func(groups []string) string {
		clean := strings.TrimSpace(stripTags(groups[1]))
		return "\n> " + strings.Join(strings.Split(clean, "\n"), "\n> ") + "\n"
	})
}

var (
	divUnwrapRe    = regexp.MustCompile(`(?is)<div[^>]*>(.*?)</div>`)
	figureUnwrapRe = regexp.MustCompile(`(?is)<figure[^>]*>(.*?)</figure>`)
	commentRe      = regexp.MustCompile(`(?s)<!--.*?-->`)
	iconBlockRe    = regexp.MustCompile(`(?is)<(?:a|div)[^>]*class="[^"]*icon-container[^"]*"[^>]*>.*?</(?:a|div)>`)
	spanRe         = regexp.MustCompile(`(?i)</?span[^>]*>`)
	brRe           = regexp.MustCompile(`(?i)</?br\s*/?>`)
	styledPairRe   = regexp.MustCompile(`(?is)<[a-z]+[^>]*style="[^"]*"[^>]*>.*?</[a-z]+>`)
	styledSelfRe   = regexp.MustCompile(`(?i)<[a-z]+[^>]*style="[^"]*"[^>]*/>`)
	openPRe        = regexp.MustCompile(`(?i)<p[^>]*>`)
	closePRe       = regexp.MustCompile(`(?i)</p>`)
	blankRunsRe    = regexp.MustCompile(`\n{3,}`)
)

// unwrapContainers promotes the children of generic wrappers and discards
// the wrapper itself.
func unwrapContainers(s string) string {
	s = divUnwrapRe.ReplaceAllString(s, "$1")
	return figureUnwrapRe.ReplaceAllString(s, "$1")
}

// stripComments removes every remaining comment. An unremoved comment is
// invalid MDX.
func stripComments(s string) string {
	return commentRe.ReplaceAllString(s, "")
}

// stripIconBlocks removes decorative icon containers entirely; their
// inline-styled SVG payload cannot be represented.
func stripIconBlocks(s string) string {
	return iconBlockRe.ReplaceAllString(s, "")
}

func stripSpans(s string) string {
	return spanRe.ReplaceAllString(s, "")
}

func lineBreaks(s string) string {
	return brRe.ReplaceAllString(s, "\n")
}

// stripStyledElements removes elements carrying inline style attributes
// along with their content.
func stripStyledElements(s string) string {
	s = styledPairRe.ReplaceAllString(s, "")
	return styledSelfRe.ReplaceAllString(s, "")
}

// unclosedParagraphs degrades any unmatched paragraph tags to newlines.
func unclosedParagraphs(s string) string {
	s = openPRe.ReplaceAllString(s, "\n")
	return closePRe.ReplaceAllString(s, "\n")
}

func decodeEntities(s string) string {
	return html.UnescapeString(s)
}

var codeRegionRe = regexp.MustCompile("(?s)```[^\n]*\n.*?\n```|`[^`\n]+`")

// decodeEntitiesOutsideCode decodes entities in the body while leaving
// already-emitted code regions untouched; their content was decoded when
// the fence was built, and a second decode would corrupt code whose text
// is itself an entity. Same mask-and-restore trick as inlineMarkdown.
func decodeEntitiesOutsideCode(s string) string {
	regions := codeRegionRe.FindAllString(s, -1)
	for i, region := range regions {
		s = strings.Replace(s, region, inlineToken(i), 1)
	}
	s = decodeEntities(s)
	for i, region := range regions {
		s = strings.Replace(s, inlineToken(i), region, 1)
	}
	return s
}

// normalizeWhitespace collapses runs of blank lines and trims the body.
func normalizeWhitespace(s string) string {
	return strings.TrimSpace(blankRunsRe.ReplaceAllString(s, "\n\n"))
}

// inlineMarkdown converts inline HTML (links, bold, italic, inline code,
// entities) to markdown. Already-emitted MDX references are masked first
// so the HTML parser cannot reinterpret them, and restored afterwards.
func (c *Converter) inlineMarkdown(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}

	tokens := mdxReferenceRe.FindAllString(fragment, -1)
	masked := fragment
	for i, tok := range tokens {
		masked = strings.Replace(masked, tok, inlineToken(i), 1)
	}

	out, err := c.inline.ConvertString(masked)
	if err != nil {
		// Conversion never aborts an item; fall back to stripped text.
		out = stripTags(masked)
	}
	out = strings.TrimSpace(out)

	for i, tok := range tokens {
		out = strings.Replace(out, inlineToken(i), tok, 1)
	}
	return out
}

var mdxReferenceRe = regexp.MustCompile(`(?s)<(?:YouTube|Image)\b[^>]*?/>`)

func inlineToken(i int) string {
	return fmt.Sprintf("wpmdxtoken%dend", i)
}

var tagRe = regexp.MustCompile(`<[^>]+>`)

// stripTags removes all HTML tags.
func stripTags(s string) string {
	return tagRe.ReplaceAllString(s, "")
}

var assetURLRe = regexp.MustCompile(`(?i)src="(https?://[^"]+\.(?:jpg|jpeg|png|gif|webp|svg)[^"]*)"`)

// ExtractAssetURLs scans a raw item body for externally hosted assets,
// recognized by extension, deduplicated with query strings stripped.
// Discovery runs against the original body so it agrees with the paths the
// converter embedded.
func ExtractAssetURLs(rawBody string) []string {
	seen := make(map[string]struct{})
	var urls []string
	for _, m := range assetURLRe.FindAllStringSubmatch(rawBody, -1) {
		u := stripQuery(m[1])
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	return urls
}

// localAssetPath derives the locally-rooted path embedded into documents.
// It must agree with assetFilename, which the fetcher uses for the file on
// disk.
func (c *Converter) localAssetPath(srcURL, slug string) string {
	return c.imagePrefix + "/" + slug + "/" + assetFilename(srcURL)
}

// assetFilename is the shared naming rule: basename of the source URL with
// the query string stripped.
func assetFilename(srcURL string) string {
	return path.Base(stripQuery(srcURL))
}

func stripQuery(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}

// replaceSubmatch is ReplaceAllStringFunc with capture groups available to
// the replacement.
func replaceSubmatch(re *regexp.Regexp, s string, repl func(groups []string) string) string {
	return re.ReplaceAllStringFunc(s, func(m string) string {
		return repl(re.FindStringSubmatch(m))
	})
}

func firstSubmatch(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}
