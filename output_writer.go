package fieldmask

import (
	"errors"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"github.com/edsrzf/mmap-go"

	fmerrors "github.com/tamirms/fieldmask/errors"
)

// outputWriter writes a document to disk using mmap-based zero-copy writes.
// The exact output size is computed up front, the file is pre-allocated and
// mapped, and lines are copied in order while a streaming xxHash64 of the
// written bytes is maintained.
type outputWriter struct {
	path   string
	file   *os.File
	mmap   mmap.MMap
	data   []byte
	offset int
	hasher *xxhash.Digest
	enc    Encoding
}

// WriteResult describes a completed write.
type WriteResult struct {
	Bytes    int64
	Checksum uint64 // xxHash64 of the bytes written
}

// WriteDocument writes doc to path in encoding enc, replacing any existing file.
// On failure the partially written file is removed.
func WriteDocument(path string, doc *Document, enc Encoding) (WriteResult, error) {
	size, err := encodedSize(doc, enc)
	if err != nil {
		return WriteResult{}, err
	}

	ow, err := newOutputWriter(path, size, enc)
	if err != nil {
		return WriteResult{}, err
	}

	eol := doc.eol()
	for i, line := range doc.Lines {
		if err := ow.writeString(line, enc); err != nil {
			return WriteResult{}, ow.abort(fmt.Errorf("line %d: %w", i+1, err))
		}
		if i < len(doc.Lines)-1 || doc.FinalNewline {
			if err := ow.writeString(eol, EncodingUTF8); err != nil {
				return WriteResult{}, ow.abort(err)
			}
		}
	}

	if err := ow.finalize(); err != nil {
		return WriteResult{}, err
	}
	return WriteResult{Bytes: size, Checksum: ow.hasher.Sum64()}, nil
}

// encodedSize returns the number of bytes doc occupies in encoding enc.
func encodedSize(doc *Document, enc Encoding) (int64, error) {
	var size int64
	for i, line := range doc.Lines {
		switch {
		case enc == EncodingLatin1 && !isASCII(line):
			if !utf8.ValidString(line) {
				return 0, fmt.Errorf("line %d: %w: invalid UTF-8", i+1, fmerrors.ErrUnencodable)
			}
			size += int64(utf8.RuneCountInString(line))
		default:
			size += int64(len(line))
		}
		if i < len(doc.Lines)-1 || doc.FinalNewline {
			size += int64(len(doc.eol()))
		}
	}
	return size, nil
}

// newOutputWriter creates path, pre-allocates size bytes and maps them for writing.
func newOutputWriter(path string, size int64, enc Encoding) (*outputWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	ow := &outputWriter{
		path:   path,
		file:   file,
		hasher: xxhash.New(),
		enc:    enc,
	}
	if size == 0 {
		// Nothing to map; finalize just closes the empty file.
		return ow, nil
	}

	// Pre-allocate disk blocks to prevent SIGBUS on disk full
	if err := fallocateFile(file, size); err != nil {
		primaryErr := fmt.Errorf("failed to allocate disk space: %w", err)
		return nil, errors.Join(primaryErr, file.Close(), os.Remove(path))
	}

	mm, err := mmap.MapRegion(file, int(size), mmap.RDWR, 0, 0)
	if err != nil {
		primaryErr := fmt.Errorf("failed to mmap output file: %w", err)
		return nil, errors.Join(primaryErr, file.Close(), os.Remove(path))
	}
	ow.mmap = mm
	ow.data = []byte(mm)

	prefaultRegion(ow.data)
	return ow, nil
}

// writeString encodes s and copies it at the current offset.
func (ow *outputWriter) writeString(s string, enc Encoding) error {
	if enc == EncodingLatin1 && !isASCII(s) {
		encoded, err := enc.appendEncoded(nil, s)
		if err != nil {
			return err
		}
		return ow.write(encoded)
	}
	if ow.offset+len(s) > len(ow.data) {
		return fmt.Errorf("writeString: write exceeds mapped region (%d+%d > %d)", ow.offset, len(s), len(ow.data))
	}
	n := copy(ow.data[ow.offset:], s)
	ow.hashRegion(ow.offset, n)
	ow.offset += n
	return nil
}

func (ow *outputWriter) write(b []byte) error {
	if ow.offset+len(b) > len(ow.data) {
		return fmt.Errorf("write: write exceeds mapped region (%d+%d > %d)", ow.offset, len(b), len(ow.data))
	}
	n := copy(ow.data[ow.offset:], b)
	ow.hashRegion(ow.offset, n)
	ow.offset += n
	return nil
}

// hashRegion folds freshly written bytes into the streaming checksum while
// they are still hot in cache.
func (ow *outputWriter) hashRegion(off, n int) {
	if _, err := ow.hasher.Write(ow.data[off : off+n]); err != nil {
		panic("hash.Hash.Write returned unexpected error: " + err.Error())
	}
}

// finalize flushes and unmaps the region and closes the file.
// On error, delegates to abort for cleanup.
func (ow *outputWriter) finalize() error {
	if ow.offset != len(ow.data) {
		return ow.abort(fmt.Errorf("output size mismatch: wrote %d of %d bytes", ow.offset, len(ow.data)))
	}
	if ow.mmap != nil {
		if err := ow.mmap.Flush(); err != nil {
			return ow.abort(fmt.Errorf("failed to flush output: %w", err))
		}
		unmapErr := ow.mmap.Unmap()
		ow.mmap = nil
		ow.data = nil
		if unmapErr != nil {
			return ow.abort(fmt.Errorf("failed to unmap output: %w", unmapErr))
		}
	}
	if err := ow.file.Close(); err != nil {
		ow.file = nil
		return errors.Join(fmt.Errorf("failed to close output: %w", err), os.Remove(ow.path))
	}
	ow.file = nil
	return nil
}

// abort releases the mapping and file and removes the partial output.
// It returns primary joined with any cleanup errors.
func (ow *outputWriter) abort(primary error) error {
	var unmapErr, closeErr error
	if ow.mmap != nil {
		unmapErr = ow.mmap.Unmap()
		ow.mmap = nil
		ow.data = nil
	}
	if ow.file != nil {
		closeErr = ow.file.Close()
		ow.file = nil
	}
	return errors.Join(primary, unmapErr, closeErr, os.Remove(ow.path))
}
