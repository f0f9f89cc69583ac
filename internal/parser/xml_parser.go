package parser

import (
	"context"
	"encoding/xml"
	"io"
	"strings"
)

// InterproEntry is the part of an <interpro> element the importers use.
type InterproEntry struct {
	ID        string
	Type      string
	ShortName string
	Name      string
}

// XMLParser handles streaming parsing of the InterPro XML release.
type XMLParser struct {
	decoder *xml.Decoder
}

// NewXMLParser creates a new XML parser
func NewXMLParser(reader io.Reader) *XMLParser {
	decoder := xml.NewDecoder(reader)
	decoder.Strict = false // Handle malformed XML
	decoder.AutoClose = xml.HTMLAutoClose

	return &XMLParser{decoder: decoder}
}

// Entries streams <interpro> elements. Nested content other than <name>
// is skipped without being materialised.
func (p *XMLParser) Entries(ctx context.Context) (<-chan InterproEntry, <-chan error) {
	results := make(chan InterproEntry, 100)
	errs := make(chan error, 1)

	go func() {
		defer close(results)
		defer close(errs)

		for {
			token, err := p.decoder.Token()
			if err == io.EOF {
				return
			}
			if err != nil {
				errs <- err
				return
			}

			start, ok := token.(xml.StartElement)
			if !ok || start.Name.Local != "interpro" {
				continue
			}
			entry, err := p.parseInterpro(start)
			if err != nil {
				errs <- err
				return
			}
			select {
			case results <- entry:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()

	return results, errs
}

func (p *XMLParser) parseInterpro(start xml.StartElement) (InterproEntry, error) {
	var entry InterproEntry
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "id":
			entry.ID = attr.Value
		case "type":
			entry.Type = attr.Value
		case "short_name":
			entry.ShortName = attr.Value
		}
	}

	for {
		token, err := p.decoder.Token()
		if err != nil {
			return entry, err
		}

		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == "name" {
				if text, err := p.parseText(); err == nil {
					entry.Name = text
				}
				continue
			}
			if err := p.decoder.Skip(); err != nil {
				return entry, err
			}
		case xml.EndElement:
			if t.Name.Local == "interpro" {
				return entry, nil
			}
		}
	}
}

func (p *XMLParser) parseText() (string, error) {
	token, err := p.decoder.Token()
	if err != nil {
		return "", err
	}

	if charData, ok := token.(xml.CharData); ok {
		return strings.TrimSpace(string(charData)), nil
	}
	return "", nil
}

// ParseInterproXML streams the entries of a (possibly gzipped) InterPro
// XML file into fn.
func ParseInterproXML(ctx context.Context, path string, fn func(InterproEntry) error) error {
	r, err := Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	entries, errs := NewXMLParser(r).Entries(ctx)
	for entry := range entries {
		if err := fn(entry); err != nil {
			cancel()
			for range entries {
			}
			return err
		}
	}
	return <-errs
}
