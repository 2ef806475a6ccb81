// Package exchange converts notes to and from Markdown documents.
package exchange

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/zennote/internal/models"
)

const (
	dateLayout = "2006-01-02 15:04"
	separator  = "\n---\n"
)

var (
	tagRe     = regexp.MustCompile(`(?:^|\s)#([\p{L}\p{N}_][\p{L}\p{N}_/-]*)`)
	tagLineRe = regexp.MustCompile(`^\*\*(?:Tags|標籤)\*\*:\s*(.+)$`)
	wordTagRe = regexp.MustCompile(`#(\S+)`)

	// Lines produced by the exporter (and by the older localized exporter) that
	// carry no note content.
	metaPrefixes = []string{
		"# ZenNote Export", "# ZenNote 匯出", "# Note - ", "# 筆記 - ",
		"Exported:", "匯出時間:", "Total: ", "共 ",
		"*Created:", "*Updated:", "*建立時間:", "*最後修改:",
		"## Images", "## 圖片", "![",
	}
)

// Draft is a note parsed from Markdown, not yet added to the notebook.
type Draft struct {
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(dateLayout)
}

// NoteToMarkdown renders a single note.
func NoteToMarkdown(n models.Note) string {
	created := formatMillis(n.CreatedAt)
	var b strings.Builder
	fmt.Fprintf(&b, "# Note - %s\n\n", created)
	if len(n.Tags) > 0 {
		tags := make([]string, len(n.Tags))
		for i, t := range n.Tags {
			tags[i] = "#" + t
		}
		fmt.Fprintf(&b, "**Tags**: %s\n\n", strings.Join(tags, " "))
	}
	b.WriteString(n.Content)
	b.WriteString("\n\n")
	if len(n.Images) > 0 {
		b.WriteString("## Images\n")
		for i, img := range n.Images {
			fmt.Fprintf(&b, "![Image %d](%s)\n", i+1, img.URI)
		}
		b.WriteString("\n")
	}
	b.WriteString("---\n")
	fmt.Fprintf(&b, "*Created: %s*", created)
	if n.UpdatedAt != n.CreatedAt {
		fmt.Fprintf(&b, "\n*Updated: %s*", formatMillis(n.UpdatedAt))
	}
	return b.String()
}

// NotesToMarkdown renders notes as one document with a header stamped at now.
func NotesToMarkdown(notes []models.Note, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# ZenNote Export\n\nExported: %s\nTotal: %d notes\n\n---\n\n",
		now.UTC().Format(dateLayout), len(notes))
	for i, n := range notes {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(NoteToMarkdown(n))
	}
	return b.String()
}

// ParseMarkdown splits a document into drafts. Sections are separated by a
// line holding only "---". Exporter metadata is dropped. Tags come from the
// exporter's tags line, inline #tags, and a leading YAML frontmatter "tags"
// list, which applies to every section of the document.
func ParseMarkdown(text string) []Draft {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	docTags, body := splitFrontmatter(text)

	var drafts []Draft
	for _, section := range strings.Split(body, separator) {
		if strings.TrimSpace(section) == "" {
			continue
		}
		if d, ok := parseSection(section, docTags); ok {
			drafts = append(drafts, d)
		}
	}
	return drafts
}

func parseSection(section string, docTags []string) (Draft, bool) {
	var (
		content []string
		tags    = newTagSet(docTags)
	)
	for _, line := range strings.Split(strings.TrimSpace(section), "\n") {
		if m := tagLineRe.FindStringSubmatch(line); m != nil {
			for _, w := range wordTagRe.FindAllStringSubmatch(m[1], -1) {
				tags.add(w[1])
			}
			continue
		}
		if isMeta(line) {
			continue
		}
		content = append(content, line)
	}

	text := strings.TrimSpace(strings.Join(content, "\n"))
	if text == "" {
		return Draft{}, false
	}
	for _, m := range tagRe.FindAllStringSubmatch(text, -1) {
		tags.add(m[1])
	}
	return Draft{Content: text, Tags: tags.list}, true
}

func isMeta(line string) bool {
	for _, p := range metaPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// splitFrontmatter separates a leading YAML block delimited by "---" lines and
// returns its tags. Without a valid block the whole text is body.
func splitFrontmatter(text string) ([]string, string) {
	const delim = "---"
	trimmed := strings.TrimLeft(text, "\n")
	if !strings.HasPrefix(trimmed, delim+"\n") {
		return nil, text
	}
	rest := trimmed[len(delim):]
	idx := strings.Index(rest, "\n"+delim)
	if idx < 0 {
		return nil, text
	}
	var fm struct {
		Tags yaml.Node `yaml:"tags"`
	}
	if err := yaml.Unmarshal([]byte(rest[:idx]), &fm); err != nil {
		return nil, text
	}
	body := strings.TrimLeft(rest[idx+1+len(delim):], "\n")
	return frontmatterTags(&fm.Tags), body
}

// frontmatterTags accepts both a YAML list and a single comma or space
// separated string.
func frontmatterTags(n *yaml.Node) []string {
	var out []string
	switch n.Kind {
	case yaml.SequenceNode:
		for _, item := range n.Content {
			if item.Kind == yaml.ScalarNode {
				out = append(out, item.Value)
			}
		}
	case yaml.ScalarNode:
		out = strings.FieldsFunc(n.Value, func(r rune) bool { return r == ',' || r == ' ' })
	}
	return out
}

// Deduplicate drops drafts whose trimmed, lowercased content matches an
// existing note or an earlier draft.
func Deduplicate(existing []models.Note, drafts []Draft) []Draft {
	seen := make(map[string]struct{}, len(existing))
	for _, n := range existing {
		seen[contentKey(n.Content)] = struct{}{}
	}
	var out []Draft
	for _, d := range drafts {
		k := contentKey(d.Content)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, d)
	}
	return out
}

func contentKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

type tagSet struct {
	seen map[string]struct{}
	list []string
}

func newTagSet(initial []string) *tagSet {
	s := &tagSet{seen: make(map[string]struct{}), list: []string{}}
	for _, t := range initial {
		s.add(t)
	}
	return s
}

func (s *tagSet) add(t string) {
	t = strings.TrimSpace(strings.TrimLeft(t, "#"))
	if t == "" {
		return
	}
	if _, dup := s.seen[t]; dup {
		return
	}
	s.seen[t] = struct{}{}
	s.list = append(s.list, t)
}

// ReadDocument decodes an uploaded document, dropping a UTF-8 byte order mark.
func ReadDocument(data []byte) string {
	return string(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
}
