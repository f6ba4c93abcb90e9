package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var slidePart = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// officeText reads the text parts of an Office Open XML archive.
func officeText(data []byte, ext string) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var parts []*zip.File
	switch ext {
	case ".docx":
		parts = filesNamed(zr, "word/document.xml")
	case ".xlsx":
		parts = filesNamed(zr, "xl/sharedStrings.xml")
	case ".pptx":
		parts = slides(zr)
	default:
		return "", fmt.Errorf("unsupported office format %s", ext)
	}
	if len(parts) == 0 {
		return "", errors.New("no text parts in archive")
	}

	var texts []string
	for _, f := range parts {
		text, err := partText(f)
		if err != nil {
			return "", err
		}
		if text != "" {
			texts = append(texts, text)
		}
	}
	return strings.Join(texts, "\n\n"), nil
}

func filesNamed(zr *zip.Reader, name string) []*zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return []*zip.File{f}
		}
	}
	return nil
}

// slides returns slide parts in presentation order.
func slides(zr *zip.Reader) []*zip.File {
	type numbered struct {
		n int
		f *zip.File
	}
	var found []numbered
	for _, f := range zr.File {
		m := slidePart.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		found = append(found, numbered{n, f})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })
	out := make([]*zip.File, len(found))
	for i := range found {
		out[i] = found[i].f
	}
	return out
}

// partText collects <t> runs; paragraphs (<p>) and shared strings (<si>) end a line.
func partText(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	dec := xml.NewDecoder(rc)
	var (
		b      strings.Builder
		line   strings.Builder
		inText bool
	)
	endLine := func() {
		if s := strings.TrimSpace(line.String()); s != "" {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(s)
		}
		line.Reset()
	}
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p", "si":
				endLine()
			}
		case xml.CharData:
			if inText {
				line.Write(t)
			}
		}
	}
	endLine()
	return b.String(), nil
}
