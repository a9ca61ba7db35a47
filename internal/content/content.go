package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/docsearchd/docsearchd/internal/registry"
)

var (
	frontMatterPattern = regexp.MustCompile(`(?s)^---\n(.*?)\n---\n*`)
	headingPattern     = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)
	fencedCodePattern  = regexp.MustCompile("(?s)```[a-zA-Z0-9_+-]*\n(.*?)```")
	mdLinkPattern      = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)

	blockTagPattern  = regexp.MustCompile(`(?i)</?(p|div|br|li|ul|ol|h[1-6]|table|tr|section|article|header|footer)[^>]*>`)
	scriptPattern    = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	stylePattern     = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	anyTagPattern    = regexp.MustCompile(`(?s)<[^>]+>`)
	htmlDoctypeCheck = regexp.MustCompile(`(?is)^\s*(<!doctype html|<html)`)
)

// Detect classifies raw bytes by extension first, falling back to
// sniffing the leading bytes.
func Detect(path string, head []byte) ContentType {
	ext := strings.ToLower(filepath.Ext(path))
	if ct, ok := extensionTable[ext]; ok {
		return ct
	}

	trimmed := bytes.TrimSpace(head)
	switch {
	case htmlDoctypeCheck.Match(trimmed):
		return ContentTypeHTML
	case bytes.HasPrefix(trimmed, []byte("---\n")) || bytes.HasPrefix(trimmed, []byte("---\r\n")):
		return ContentTypeMarkdown
	case len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '['):
		return ContentTypeJSON
	}
	return ContentTypeText
}

// Process cleans raw bytes of the given content type down to indexable
// prose, surfacing a title and tags when the format carries them.
func Process(ct ContentType, raw []byte) (Processed, error) {
	switch ct {
	case ContentTypeMarkdown:
		return processMarkdown(raw)
	case ContentTypeHTML:
		return Processed{ContentType: ct, Cleaned: cleanHTML(string(raw))}, nil
	case ContentTypeJSON:
		cleaned, err := flattenJSON(raw)
		if err != nil {
			return Processed{}, fmt.Errorf("flatten json: %w", err)
		}
		return Processed{ContentType: ct, Cleaned: cleaned}, nil
	case ContentTypeYAML, ContentTypeTOML:
		cleaned, err := flattenYAMLLike(raw)
		if err != nil {
			return Processed{}, fmt.Errorf("flatten %s: %w", ct, err)
		}
		return Processed{ContentType: ct, Cleaned: cleaned}, nil
	default:
		// text, rst, adoc, org: normalize line endings and pass through.
		cleaned := strings.ReplaceAll(string(raw), "\r\n", "\n")
		return Processed{ContentType: ct, Cleaned: strings.TrimSpace(cleaned)}, nil
	}
}

func processMarkdown(raw []byte) (Processed, error) {
	text := strings.ReplaceAll(string(raw), "\r\n", "\n")

	result := Processed{ContentType: ContentTypeMarkdown}

	if m := frontMatterPattern.FindStringSubmatch(text); m != nil {
		var meta map[string]any
		if err := yaml.Unmarshal([]byte(m[1]), &meta); err == nil {
			result.Title, result.Tags = extractFrontMatterMeta(meta)
		}
		text = text[len(m[0]):]
	}

	text = fencedCodePattern.ReplaceAllString(text, "$1")
	text = mdLinkPattern.ReplaceAllString(text, "$1")
	// Headings are left as "#..." lines rather than flattened to plain
	// text: the chunker relies on them for header-based section splits.

	if result.Title == "" {
		if m := headingPattern.FindStringSubmatch(strings.ReplaceAll(string(raw), "\r\n", "\n")); m != nil {
			result.Title = strings.TrimSpace(m[2])
		}
	}

	result.Cleaned = strings.TrimSpace(collapseBlankLines(text))
	return result, nil
}

func extractFrontMatterMeta(meta map[string]any) (title string, tags []string) {
	if v, ok := meta["title"].(string); ok {
		title = v
	}
	switch v := meta["tags"].(type) {
	case []any:
		for _, t := range v {
			if s, ok := t.(string); ok {
				tags = append(tags, s)
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			tags = append(tags, strings.TrimSpace(s))
		}
	}
	return title, tags
}

func cleanHTML(raw string) string {
	s := scriptPattern.ReplaceAllString(raw, "\n")
	s = stylePattern.ReplaceAllString(s, "\n")
	s = blockTagPattern.ReplaceAllString(s, "\n")
	s = anyTagPattern.ReplaceAllString(s, "")
	s = decodeBasicEntities(s)
	return strings.TrimSpace(collapseBlankLines(s))
}

func decodeBasicEntities(s string) string {
	replacer := strings.NewReplacer(
		"&amp;", "&", "&lt;", "<", "&gt;", ">",
		"&quot;", `"`, "&#39;", "'", "&apos;", "'", "&nbsp;", " ",
	)
	return replacer.Replace(s)
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		if trimmed == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, trimmed)
	}
	return strings.Join(out, "\n")
}

// maxFlattenArrayLen skips primitive arrays longer than this when
// flattening structured data.
const maxFlattenArrayLen = 32

func flattenJSON(raw []byte) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	var lines []string
	flattenValue("", v, &lines)
	return strings.Join(lines, "\n"), nil
}

func flattenYAMLLike(raw []byte) (string, error) {
	var v any
	if err := yaml.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	var lines []string
	flattenValue("", v, &lines)
	return strings.Join(lines, "\n"), nil
}

func flattenValue(prefix string, v any, lines *[]string) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			flattenValue(joinKey(prefix, k), val[k], lines)
		}
	case map[any]any:
		flat := make(map[string]any, len(val))
		keys := make([]string, 0, len(val))
		for k, vv := range val {
			ks := fmt.Sprintf("%v", k)
			flat[ks] = vv
			keys = append(keys, ks)
		}
		sort.Strings(keys)
		for _, k := range keys {
			flattenValue(joinKey(prefix, k), flat[k], lines)
		}
	case []any:
		if isPrimitiveArray(val) {
			if len(val) > maxFlattenArrayLen {
				return
			}
			parts := make([]string, len(val))
			for i, item := range val {
				parts[i] = fmt.Sprintf("%v", item)
			}
			*lines = append(*lines, fmt.Sprintf("%s: %s", prefix, strings.Join(parts, ", ")))
			return
		}
		for i, item := range val {
			flattenValue(fmt.Sprintf("%s[%d]", prefix, i), item, lines)
		}
	case nil:
		*lines = append(*lines, fmt.Sprintf("%s: ", prefix))
	default:
		*lines = append(*lines, fmt.Sprintf("%s: %v", prefix, val))
	}
}

func isPrimitiveArray(items []any) bool {
	for _, item := range items {
		switch item.(type) {
		case map[string]any, map[any]any, []any:
			return false
		}
	}
	return true
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// Classify determines a document's purpose from its path and cleaned
// text, falling back to DocTypeGeneric when no pattern matches.
func Classify(relPath string, _ string) registry.DocType {
	for _, p := range docTypePatterns {
		if matched, _ := regexp.MatchString(p.pattern, filepath.ToSlash(relPath)); matched {
			return p.docType
		}
	}
	return registry.DocTypeGeneric
}

// ShouldIndex reports whether a processed document is worth indexing:
// not oversized, not empty after cleaning, and not a format that
// sniffed as unrecognizable binary.
func ShouldIndex(ct ContentType, size int64, cleaned string) bool {
	if size > maxIndexableSize {
		return false
	}
	if ct == ContentTypeUnknown {
		return false
	}
	return strings.TrimSpace(cleaned) != ""
}
