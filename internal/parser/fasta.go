package parser

import (
	"context"
	"strings"
)

// FASTARecord is one sequence with the header line that introduced it.
type FASTARecord struct {
	Line     int64
	ID       string
	Header   string
	Sequence string
}

// FASTAID returns the first word of a header line, without the '>'.
func FASTAID(header string) string {
	header = strings.TrimPrefix(header, ">")
	if i := strings.IndexAny(header, " \t|"); i >= 0 {
		header = header[:i]
	}
	return strings.TrimSpace(header)
}

// ParseFASTA streams the records of a FASTA file. Lines following a '>'
// header are concatenated until the next header or the end of the file.
// Lines before the first header are ignored.
func ParseFASTA(ctx context.Context, path string, progress ProgressFunc, fn func(FASTARecord) error) error {
	r, err := Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	lr := &lineReader{ctx: ctx, scanner: newScanner(r), progress: progress}

	var (
		current FASTARecord
		seq     strings.Builder
		open    bool
	)
	flush := func() error {
		if !open {
			return nil
		}
		current.Sequence = seq.String()
		seq.Reset()
		return fn(current)
	}

	for {
		text, ok, err := lr.next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if strings.HasPrefix(text, ">") {
			if err := flush(); err != nil {
				return err
			}
			header := strings.TrimSpace(text[1:])
			current = FASTARecord{Line: lr.line, ID: FASTAID(header), Header: header}
			open = true
			continue
		}
		if open {
			seq.WriteString(strings.TrimSpace(text))
		}
	}
	return flush()
}
