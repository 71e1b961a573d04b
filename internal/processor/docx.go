// Package processor parses and rewrites DOCX flat-document templates. A DOCX
// file is a zip archive whose visible text lives in word/document.xml; Word
// routinely splits a {{placeholder}} token across multiple <w:t> runs, so both
// extraction and replacement work on the text stream with XML tags skipped.
package processor

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// ErrUnsupportedFormat reports content that is not a structurally valid DOCX.
var ErrUnsupportedFormat = errors.New("unsupported document format")

const documentEntry = "word/document.xml"

var placeholderPattern = regexp.MustCompile(`\{\{([A-Za-z0-9_]+)\}\}`)

// Docx wraps one in-memory DOCX archive.
type Docx struct {
	reader  *zip.Reader
	content []byte
	docXML  string
}

// Open validates the archive structure and loads word/document.xml.
func Open(content []byte) (*Docx, error) {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	d := &Docx{reader: reader, content: content}
	for _, f := range reader.File {
		if f.Name == documentEntry {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("failed to open %s: %w", documentEntry, err)
			}
			defer rc.Close()
			raw, err := io.ReadAll(rc)
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", documentEntry, err)
			}
			d.docXML = string(raw)
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: missing %s", ErrUnsupportedFormat, documentEntry)
}

// ExtractPlaceholders returns every distinct {{identifier}} token in the
// document text, identifiers only, in first-seen order. Zero placeholders is
// a valid result (a fully static template).
func (d *Docx) ExtractPlaceholders() []string {
	clean := stripXMLTags(d.docXML)

	var placeholders []string
	seen := make(map[string]bool)
	for _, m := range placeholderPattern.FindAllStringSubmatch(clean, -1) {
		name := m[1]
		if !seen[name] {
			placeholders = append(placeholders, name)
			seen[name] = true
		}
	}
	return placeholders
}

// Replace substitutes every {{placeholder}} occurrence with its value and
// returns a new DOCX archive. All other content and formatting is untouched.
func (d *Docx) Replace(values map[string]string) ([]byte, error) {
	doc := d.docXML
	for name, value := range values {
		doc = replaceToken(doc, "{{"+name+"}}", xmlEscape(value))
	}

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, f := range d.reader.File {
		entry, err := w.Create(f.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to create archive entry %s: %w", f.Name, err)
		}
		if f.Name == documentEntry {
			if _, err := entry.Write([]byte(doc)); err != nil {
				return nil, fmt.Errorf("failed to write %s: %w", documentEntry, err)
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open archive entry %s: %w", f.Name, err)
		}
		if _, err := io.Copy(entry, rc); err != nil {
			rc.Close()
			return nil, fmt.Errorf("failed to copy archive entry %s: %w", f.Name, err)
		}
		rc.Close()
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

// DetectOrientation reports whether the first section is landscape, from the
// w:orient attribute when present, otherwise from the page width/height ratio.
func (d *Docx) DetectOrientation() bool {
	sectStart := strings.Index(d.docXML, "<w:sectPr")
	if sectStart == -1 {
		return false
	}
	sectEnd := strings.Index(d.docXML[sectStart:], "</w:sectPr>")
	if sectEnd == -1 {
		return false
	}
	sect := d.docXML[sectStart : sectStart+sectEnd]

	pgSzStart := strings.Index(sect, "<w:pgSz")
	if pgSzStart == -1 {
		return false
	}
	pgSzEnd := strings.Index(sect[pgSzStart:], "/>")
	if pgSzEnd == -1 {
		return false
	}
	pgSz := sect[pgSzStart : pgSzStart+pgSzEnd]

	if orient := attrValue(pgSz, "w:orient"); orient != "" {
		return orient == "landscape"
	}

	width := attrTwips(pgSz, "w:w")
	height := attrTwips(pgSz, "w:h")
	return width > 0 && height > 0 && width > height
}

func attrValue(tag, attr string) string {
	marker := attr + `="`
	start := strings.Index(tag, marker)
	if start == -1 {
		return ""
	}
	start += len(marker)
	end := strings.Index(tag[start:], `"`)
	if end == -1 {
		return ""
	}
	return tag[start : start+end]
}

func attrTwips(tag, attr string) int {
	raw := attrValue(tag, attr)
	n := 0
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// replaceToken substitutes token with value even when Word has split the
// token text across XML runs. The fast path handles the verbatim case;
// otherwise a rune scan matches token characters while skipping tag content.
func replaceToken(content, token, value string) string {
	if strings.Contains(content, token) {
		return strings.ReplaceAll(content, token, value)
	}

	contentRunes := []rune(content)
	tokenRunes := []rune(token)
	result := make([]rune, 0, len(contentRunes))

	i := 0
	for i < len(contentRunes) {
		if match, end := matchAcrossTags(contentRunes, i, tokenRunes); match {
			result = append(result, []rune(value)...)
			i = end
			continue
		}
		result = append(result, contentRunes[i])
		i++
	}
	return string(result)
}

// matchAcrossTags tries to match token starting at startPos, treating any
// <...> span as invisible. The scan window is capped so a stray "{{" deep in
// markup cannot drag the match across the whole document.
func matchAcrossTags(content []rune, startPos int, token []rune) (bool, int) {
	tokenIdx := 0
	pos := startPos
	inTag := false

	for pos < len(content) && tokenIdx < len(token) {
		c := content[pos]
		switch {
		case c == '<':
			inTag = true
		case c == '>':
			inTag = false
		case !inTag:
			if c != token[tokenIdx] {
				return false, startPos
			}
			tokenIdx++
		}
		pos++

		if pos-startPos > len(token)*10 {
			return false, startPos
		}
	}
	return tokenIdx == len(token), pos
}

func stripXMLTags(content string) string {
	var b strings.Builder
	b.Grow(len(content))
	inTag := false
	for _, c := range content {
		switch {
		case c == '<':
			inTag = true
		case c == '>':
			inTag = false
		case !inTag:
			b.WriteRune(c)
		}
	}
	return b.String()
}

func xmlEscape(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return r.Replace(s)
}
