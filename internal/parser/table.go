package parser

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/nishad/ptmdb/internal/errors"
)

// Record is one data row of a delimited file.
type Record struct {
	Line   int64
	Fields []string
}

// String renders the record the way it appeared in the file, for log lines.
func (r Record) String() string {
	return fmt.Sprintf("line %d: %s", r.Line, strings.Join(r.Fields, "\t"))
}

// TableOptions controls how delimited files are read.
type TableOptions struct {
	// Delimiter separates the fields; a tab when empty.
	Delimiter string
	// Header, when set, must match the first non-comment line exactly.
	// That line is consumed and not passed to the callback.
	Header []string
	// Comment is the prefix of ignored lines; "#" when empty.
	Comment string
	// Progress is called periodically with the number of lines read.
	Progress ProgressFunc
}

func (o TableOptions) delimiter() string {
	if o.Delimiter == "" {
		return "\t"
	}
	return o.Delimiter
}

func (o TableOptions) comment() string {
	if o.Comment == "" {
		return "#"
	}
	return o.Comment
}

// HeaderMismatch reports schema drift of a source file.
func HeaderMismatch(path string, want, got []string) error {
	return errors.E(errors.Op("parser.header"), errors.KindSchema,
		fmt.Sprintf("%s: header mismatch: expected %q, found %q", path, want, got))
}

func sameHeader(want, got []string) bool {
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if want[i] != got[i] {
			return false
		}
	}
	return true
}

// ParseTSV streams the delimited file at path, calling fn for each
// non-blank, non-comment row. A declared header that does not match is a
// KindSchema error raised before fn sees any row.
func ParseTSV(ctx context.Context, path string, opts TableOptions, fn func(Record) error) error {
	r, err := Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	delim, comment := opts.delimiter(), opts.comment()
	lr := &lineReader{ctx: ctx, scanner: newScanner(r), progress: opts.Progress}
	headerPending := len(opts.Header) > 0

	for {
		text, ok, err := lr.next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if strings.TrimSpace(text) == "" || strings.HasPrefix(text, comment) {
			continue
		}

		fields := strings.Split(text, delim)
		if headerPending {
			if !sameHeader(opts.Header, fields) {
				return HeaderMismatch(path, opts.Header, fields)
			}
			headerPending = false
			continue
		}
		if err := fn(Record{Line: lr.line, Fields: fields}); err != nil {
			return err
		}
	}

	if headerPending {
		return HeaderMismatch(path, opts.Header, nil)
	}
	return nil
}

// ParseCSV streams a comma separated file with quoting rules of RFC 4180.
// Header and Progress options apply as for ParseTSV.
func ParseCSV(ctx context.Context, path string, opts TableOptions, fn func(Record) error) error {
	const op errors.Op = "parser.ParseCSV"

	r, err := Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var rows int64
	headerPending := len(opts.Header) > 0
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.E(op, errors.KindParse, err, path)
		}
		rows++
		line, _ := reader.FieldPos(0)

		if rows%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			if opts.Progress != nil {
				opts.Progress(int64(line))
			}
		}

		if headerPending {
			if !sameHeader(opts.Header, fields) {
				return HeaderMismatch(path, opts.Header, fields)
			}
			headerPending = false
			continue
		}
		if err := fn(Record{Line: int64(line), Fields: fields}); err != nil {
			return err
		}
	}
	if headerPending {
		return HeaderMismatch(path, opts.Header, nil)
	}
	if opts.Progress != nil {
		opts.Progress(rows)
	}
	return nil
}
