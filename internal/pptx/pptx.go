// Package pptx reads and rewrites text runs inside PowerPoint (.pptx)
// archives. A .pptx file is a zip container; slide text lives in
// ppt/slides/slideN.xml as <a:t> run elements. Only those runs are
// touched on rewrite; every other archive entry is copied through
// unchanged.
package pptx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// SlideText is one extracted text block with its slide location.
type SlideText struct {
	SlideNumber int
	Position    string
	Text        string
}

// Substitution is one requested text replacement on a specific slide.
type Substitution struct {
	SlideNumber int
	Original    string
	Corrected   string
}

var slidePathRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// slideEntry pairs a slide number with its archive path.
type slideEntry struct {
	number int
	file   *zip.File
}

func slideEntries(zr *zip.Reader) []slideEntry {
	var entries []slideEntry
	for _, f := range zr.File {
		m := slidePathRe.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		entries = append(entries, slideEntry{number: n, file: f})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].number < entries[j].number })
	return entries
}

// ExtractTexts returns the text content of every shape on every slide,
// in slide order. Shape text joins its paragraphs with newlines, the
// same granularity the correction analyzer works at.
func ExtractTexts(artifact []byte) ([]SlideText, error) {
	zr, err := zip.NewReader(bytes.NewReader(artifact), int64(len(artifact)))
	if err != nil {
		return nil, fmt.Errorf("failed to open pptx archive: %w", err)
	}

	var texts []SlideText
	for _, entry := range slideEntries(zr) {
		rc, err := entry.file.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open slide %d: %w", entry.number, err)
		}
		shapes, err := extractShapeTexts(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to parse slide %d: %w", entry.number, err)
		}

		for _, text := range shapes {
			texts = append(texts, SlideText{
				SlideNumber: entry.number,
				Position:    fmt.Sprintf("Slide %d", entry.number),
				Text:        text,
			})
		}
	}

	return texts, nil
}

// extractShapeTexts walks one slide document and gathers run text per
// shape (<p:sp> subtree). Paragraph boundaries become newlines.
func extractShapeTexts(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)

	var (
		shapes     []string
		shapeDepth int
		current    strings.Builder
		inText     bool
	)

	flush := func() {
		if text := strings.TrimSpace(current.String()); text != "" {
			shapes = append(shapes, text)
		}
		current.Reset()
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "sp":
				shapeDepth++
			case "p":
				if shapeDepth > 0 && current.Len() > 0 {
					current.WriteByte('\n')
				}
			case "t":
				if shapeDepth > 0 {
					inText = true
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "sp":
				if shapeDepth > 0 {
					shapeDepth--
					if shapeDepth == 0 {
						flush()
					}
				}
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}

	return shapes, nil
}

// ReplaceInSlides applies the given substitutions and returns the
// rewritten archive. found[i] reports whether subs[i] matched any run
// text on its slide; unmatched substitutions leave the archive
// untouched and are the caller's to count as failed.
func ReplaceInSlides(artifact []byte, subs []Substitution) ([]byte, []bool, error) {
	zr, err := zip.NewReader(bytes.NewReader(artifact), int64(len(artifact)))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open pptx archive: %w", err)
	}

	// Slide XML is loaded once and mutated in place so that several
	// substitutions against the same slide compose.
	contents := make(map[string][]byte)
	paths := make(map[int]string)
	for _, entry := range slideEntries(zr) {
		rc, err := entry.file.Open()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open slide %d: %w", entry.number, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read slide %d: %w", entry.number, err)
		}
		contents[entry.file.Name] = data
		paths[entry.number] = entry.file.Name
	}

	found := make([]bool, len(subs))
	modified := make(map[string]bool)
	for i, sub := range subs {
		path, ok := paths[sub.SlideNumber]
		if !ok {
			continue
		}
		replaced, ok := replaceInRuns(string(contents[path]), sub.Original, sub.Corrected)
		if !ok {
			continue
		}
		contents[path] = []byte(replaced)
		modified[path] = true
		found[i] = true
	}

	out, err := rewriteArchive(zr, contents, modified)
	if err != nil {
		return nil, nil, err
	}
	return out, found, nil
}

// rewriteArchive writes a new zip, copying unmodified entries through
// raw (compressed bytes untouched) and re-deflating modified slides.
func rewriteArchive(zr *zip.Reader, contents map[string][]byte, modified map[string]bool) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, f := range zr.File {
		if modified[f.Name] {
			header := &zip.FileHeader{
				Name:     f.Name,
				Method:   f.Method,
				Modified: f.Modified,
			}
			w, err := zw.CreateHeader(header)
			if err != nil {
				return nil, fmt.Errorf("failed to rewrite %s: %w", f.Name, err)
			}
			if _, err := w.Write(contents[f.Name]); err != nil {
				return nil, fmt.Errorf("failed to rewrite %s: %w", f.Name, err)
			}
			continue
		}

		raw, err := f.OpenRaw()
		if err != nil {
			return nil, fmt.Errorf("failed to copy %s: %w", f.Name, err)
		}
		header := f.FileHeader
		w, err := zw.CreateRaw(&header)
		if err != nil {
			return nil, fmt.Errorf("failed to copy %s: %w", f.Name, err)
		}
		if _, err := io.Copy(w, raw); err != nil {
			return nil, fmt.Errorf("failed to copy %s: %w", f.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

// escaper matches how run text is encoded inside the slide XML.
var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// replaceInRuns substitutes old with new inside every <a:t>...</a:t>
// run of the document string. Matching is run-local: text split across
// runs is not found, the same limitation the substitution was recorded
// under at analysis time.
func replaceInRuns(doc, oldText, newText string) (string, bool) {
	oldEsc := escaper.Replace(oldText)
	newEsc := escaper.Replace(newText)

	var out strings.Builder
	replaced := false
	rest := doc

	for {
		start := strings.Index(rest, "<a:t")
		if start < 0 {
			out.WriteString(rest)
			break
		}
		tagEnd := strings.Index(rest[start:], ">")
		if tagEnd < 0 {
			out.WriteString(rest)
			break
		}
		tagEnd += start
		// Self-closing <a:t/> carries no text.
		if strings.HasSuffix(rest[start:tagEnd+1], "/>") {
			out.WriteString(rest[:tagEnd+1])
			rest = rest[tagEnd+1:]
			continue
		}
		// Guard against matching <a:tbl>, <a:tc> etc.
		if tag := rest[start : tagEnd+1]; tag != "<a:t>" && !strings.HasPrefix(tag, "<a:t ") {
			out.WriteString(rest[:tagEnd+1])
			rest = rest[tagEnd+1:]
			continue
		}
		end := strings.Index(rest[tagEnd:], "</a:t>")
		if end < 0 {
			out.WriteString(rest)
			break
		}
		end += tagEnd

		text := rest[tagEnd+1 : end]
		if strings.Contains(text, oldEsc) {
			text = strings.ReplaceAll(text, oldEsc, newEsc)
			replaced = true
		}
		out.WriteString(rest[:tagEnd+1])
		out.WriteString(text)
		out.WriteString("</a:t>")
		rest = rest[end+len("</a:t>"):]
	}

	return out.String(), replaced
}
