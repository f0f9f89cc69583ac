// Package parser streams the flat files consumed by the importers: tab
// separated tables, CSV, plain text, FASTA and InterPro XML. Gzip input is
// recognised by its magic bytes and decompressed on the fly. Only one record is held in memory at a
// time, so the size of the input is bounded by the disk, not by RAM.
package parser

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"strings"

	"github.com/klauspost/pgzip"

	"github.com/nishad/ptmdb/internal/errors"
)

const (
	// maxLineSize bounds a single line; FASTA bodies are wrapped so only
	// ClinVar metadata columns come close.
	maxLineSize = 16 * 1024 * 1024

	// checkEvery is how many lines pass between context checks and
	// progress callbacks.
	checkEvery = 10000
)

// ProgressFunc receives the number of lines consumed so far.
type ProgressFunc func(lines int64)

var gzipMagic = []byte{0x1f, 0x8b}

type gzipFile struct {
	*pgzip.Reader
	file *os.File
}

func (g *gzipFile) Close() error {
	err := g.Reader.Close()
	if cerr := g.file.Close(); err == nil {
		err = cerr
	}
	return err
}

type plainFile struct {
	*bufio.Reader
	file *os.File
}

func (p *plainFile) Close() error {
	return p.file.Close()
}

// Open opens path for reading, decompressing it when it starts with the
// gzip magic bytes. The name of the file plays no part.
func Open(path string) (io.ReadCloser, error) {
	const op errors.Op = "parser.Open"

	file, err := os.Open(path)
	if err != nil {
		return nil, errors.E(op, errors.KindIO, err)
	}
	br := bufio.NewReaderSize(file, 64*1024)
	magic, err := br.Peek(len(gzipMagic))
	if err != nil && err != io.EOF {
		file.Close()
		return nil, errors.E(op, errors.KindIO, err, "read "+path)
	}
	if !bytes.Equal(magic, gzipMagic) {
		return &plainFile{Reader: br, file: file}, nil
	}

	gz, err := pgzip.NewReader(br)
	if err != nil {
		file.Close()
		return nil, errors.E(op, errors.KindIO, err, "open gzip stream "+path)
	}
	return &gzipFile{Reader: gz, file: file}, nil
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return scanner
}

// CountLines returns the number of lines in path without keeping them.
func CountLines(path string) (int64, error) {
	r, err := Open(path)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	br := bufio.NewReaderSize(r, 256*1024)
	var (
		count int64
		last  byte = '\n'
	)
	buf := make([]byte, 256*1024)
	for {
		n, err := br.Read(buf)
		for _, b := range buf[:n] {
			if b == '\n' {
				count++
			}
		}
		if n > 0 {
			last = buf[n-1]
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, errors.E(errors.Op("parser.CountLines"), errors.KindIO, err)
		}
	}
	if last != '\n' {
		count++
	}
	return count, nil
}

// lineReader walks the lines of a file keeping track of the position.
type lineReader struct {
	ctx      context.Context
	scanner  *bufio.Scanner
	progress ProgressFunc
	line     int64
}

func (l *lineReader) next() (string, bool, error) {
	if !l.scanner.Scan() {
		if err := l.scanner.Err(); err != nil {
			return "", false, errors.E(errors.Op("parser.read"), errors.KindIO, err)
		}
		l.report()
		return "", false, nil
	}
	l.line++
	if l.line%checkEvery == 0 {
		if err := l.ctx.Err(); err != nil {
			return "", false, err
		}
		l.report()
	}
	return strings.TrimRight(l.scanner.Text(), "\r"), true, nil
}

func (l *lineReader) report() {
	if l.progress != nil {
		l.progress(l.line)
	}
}

// ParseText invokes fn with every non-blank line of path and its 1-based
// line number.
func ParseText(ctx context.Context, path string, progress ProgressFunc, fn func(line int64, text string) error) error {
	r, err := Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	lr := &lineReader{ctx: ctx, scanner: newScanner(r), progress: progress}
	for {
		text, ok, err := lr.next()
		if err != nil || !ok {
			return err
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		if err := fn(lr.line, text); err != nil {
			return err
		}
	}
}
