package fieldmask

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/edsrzf/mmap-go"

	fmerrors "github.com/tamirms/fieldmask/errors"
)

// Document is a text file split into lines without their terminators.
//
// Line endings are tracked per document, not per line: if the first line ends
// in "\r\n" every line is written back with "\r\n".
type Document struct {
	Lines        []string
	CRLF         bool // Lines are terminated by "\r\n" instead of "\n"
	FinalNewline bool // The last line is followed by a terminator
}

// NewDocument builds a Document from lines, using "\n" terminators and a
// trailing newline.
func NewDocument(lines []string) *Document {
	return &Document{Lines: lines, FinalNewline: len(lines) > 0}
}

// ReadDocument memory-maps the file at path, decodes it with enc and splits it into lines.
func ReadDocument(path string, enc Encoding) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", fmerrors.ErrInputNotFound, path)
		}
		return nil, fmt.Errorf("open input file: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat input file: %w", err)
	}
	if stat.IsDir() {
		return nil, fmt.Errorf("open input file: %s is a directory", path)
	}
	size := stat.Size()
	if size == 0 {
		// mmap of a zero-length file fails on most platforms.
		return &Document{}, nil
	}

	fadviseSequential(int(f.Fd()), 0, size)

	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap input file: %w", err)
	}
	doc, err := ParseDocument([]byte(mm), enc)
	if unmapErr := mm.Unmap(); unmapErr != nil {
		return nil, errors.Join(err, fmt.Errorf("unmap input file: %w", unmapErr))
	}
	return doc, err
}

// ParseDocument decodes data with enc and splits it into lines.
// The returned lines do not alias data.
func ParseDocument(data []byte, enc Encoding) (*Document, error) {
	text, err := enc.decode(data)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return &Document{}, nil
	}

	doc := &Document{}
	if strings.HasSuffix(text, "\n") {
		doc.FinalNewline = true
		text = text[:len(text)-1]
	}
	doc.Lines = strings.Split(text, "\n")
	if first := doc.Lines[0]; strings.HasSuffix(first, "\r") && (len(doc.Lines) > 1 || doc.FinalNewline) {
		doc.CRLF = true
	}
	if doc.CRLF {
		for i, line := range doc.Lines {
			if i == len(doc.Lines)-1 && !doc.FinalNewline {
				break
			}
			doc.Lines[i] = strings.TrimSuffix(line, "\r")
		}
	}
	return doc, nil
}

// eol returns the line terminator for d.
func (d *Document) eol() string {
	if d.CRLF {
		return "\r\n"
	}
	return "\n"
}

// withLines returns a copy of d's layout carrying lines instead of d.Lines.
func (d *Document) withLines(lines []string) *Document {
	return &Document{Lines: lines, CRLF: d.CRLF, FinalNewline: d.FinalNewline}
}
