// Package notefmt implements the on-disk note document format: a frontmatter
// block carrying title and tags, followed by the body.
//
//	---
//	title: Shopping list
//	tags: home, errands
//	---
//	milk, eggs
//
// Parse and Serialize round-trip: parsing an already-serialized document and
// serializing it again yields the same bytes. Titles must not contain
// newlines and tags must not contain commas; both are enforced on serialize.
package notefmt

import (
	"fmt"
	"strings"
)

const fence = "---"

// Document is a decoded note: frontmatter fields plus body text.
type Document struct {
	Title string
	Tags  []string
	Body  string
}

// Parse decodes a note document. Content without a frontmatter block parses
// as an untitled, untagged document whose body is the whole content. A
// frontmatter block that is opened but never closed is an error.
func Parse(content string) (Document, error) {
	if !strings.HasPrefix(content, fence+"\n") {
		return Document{Body: content}, nil
	}

	rest := content[len(fence)+1:]
	end := strings.Index(rest, "\n"+fence)
	if end < 0 {
		return Document{}, fmt.Errorf("unterminated frontmatter block")
	}

	doc := Document{}
	for _, line := range strings.Split(rest[:end], "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "title":
			doc.Title = value
		case "tags":
			doc.Tags = splitTags(value)
		}
	}

	body := rest[end+1+len(fence):]
	// The closing fence line ends with a newline that belongs to the fence,
	// not the body.
	body = strings.TrimPrefix(body, "\n")
	doc.Body = body
	return doc, nil
}

// Serialize encodes a document into the on-disk format.
func Serialize(doc Document) (string, error) {
	if strings.ContainsAny(doc.Title, "\n\r") {
		return "", fmt.Errorf("title must not contain newlines")
	}
	for _, tag := range doc.Tags {
		if strings.ContainsAny(tag, ",\n\r") {
			return "", fmt.Errorf("tag %q must not contain commas or newlines", tag)
		}
	}

	var b strings.Builder
	b.WriteString(fence + "\n")
	b.WriteString("title: " + doc.Title + "\n")
	b.WriteString("tags: " + strings.Join(doc.Tags, ", ") + "\n")
	b.WriteString(fence + "\n")
	b.WriteString(doc.Body)
	return b.String(), nil
}

// splitTags splits a comma-separated tag list, trimming whitespace and
// dropping empty entries.
func splitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// previewLimit is the maximum preview length in runes.
const previewLimit = 160

// Preview condenses a note body into a single short line: whitespace runs
// collapse to one space and the result is cut at previewLimit runes.
func Preview(body string) string {
	condensed := strings.Join(strings.Fields(body), " ")
	runes := []rune(condensed)
	if len(runes) <= previewLimit {
		return condensed
	}
	return string(runes[:previewLimit])
}
