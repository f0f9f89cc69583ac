// Package models defines the entities produced by the import pipeline:
// genes and their protein isoforms, domains, kinases, sites, pathways and
// clinical annotations, together with the values derived from them.
package models

import (
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

var folder = cases.Fold()

// FoldName returns the case-insensitive key of a gene symbol.
func FoldName(name string) string {
	return folder.String(name)
}

// Strand of the gene on its chromosome.
type Strand int8

const (
	StrandUnknown Strand = -1
	StrandReverse Strand = 0
	StrandForward Strand = 1
)

// ParseStrand maps the refGene strand column to a Strand.
func ParseStrand(s string) (Strand, bool) {
	switch strings.TrimSpace(s) {
	case "+":
		return StrandForward, true
	case "-":
		return StrandReverse, true
	}
	return StrandUnknown, false
}

// Gene is identified by its symbol, compared case-insensitively.
type Gene struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Chrom  string `json:"chrom,omitempty"`
	Strand Strand `json:"strand"`

	Isoforms  []*Protein `json:"-"`
	Preferred *Protein   `json:"-"`
}

// NewGene creates a gene without genomic placement.
func NewGene(name string) *Gene {
	return &Gene{Name: name, Strand: StrandUnknown}
}

// Key returns the natural key of the gene.
func (g *Gene) Key() string {
	return FoldName(g.Name)
}

// AddIsoform attaches p to the gene, keeping both sides of the relation.
func (g *Gene) AddIsoform(p *Protein) {
	p.Gene = g
	g.Isoforms = append(g.Isoforms, p)
}

// RemoveIsoform detaches p from the gene. The preferred isoform is cleared
// when it is the removed one.
func (g *Gene) RemoveIsoform(p *Protein) {
	for i, iso := range g.Isoforms {
		if iso == p {
			g.Isoforms = append(g.Isoforms[:i], g.Isoforms[i+1:]...)
			break
		}
	}
	if g.Preferred == p {
		g.Preferred = nil
	}
}

// SelectPreferredIsoform returns the longest isoform of the gene. Among
// isoforms of equal length the one with the numerically lower refseq
// identifier wins. Returns nil for a gene without isoforms.
func (g *Gene) SelectPreferredIsoform() *Protein {
	var longest []*Protein
	maxLength := -1
	for _, iso := range g.Isoforms {
		switch l := iso.Length(); {
		case l > maxLength:
			longest = []*Protein{iso}
			maxLength = l
		case l == maxLength:
			longest = append(longest, iso)
		}
	}
	if len(longest) == 0 {
		return nil
	}
	sort.SliceStable(longest, func(i, j int) bool {
		return refseqLess(longest[i].Refseq, longest[j].Refseq)
	})
	return longest[0]
}

func refseqLess(a, b string) bool {
	na, okA := RefseqNumber(a)
	nb, okB := RefseqNumber(b)
	if okA && okB && na != nb {
		return na < nb
	}
	return a < b
}

// RefseqNumber extracts the numeric part of a refseq accession,
// e.g. 546 for "NM_000546" or "NM_000546.5".
func RefseqNumber(refseq string) (int, bool) {
	i := strings.IndexByte(refseq, '_')
	if i < 0 {
		return 0, false
	}
	digits := refseq[i+1:]
	if dot := strings.IndexByte(digits, '.'); dot >= 0 {
		digits = digits[:dot]
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// StopMarker terminates every complete protein sequence.
const StopMarker = '*'

// SequenceDefect describes how a sequence violates the stop codon rule.
type SequenceDefect uint8

const (
	StopInside SequenceDefect = 1 << iota
	NoStopAtEnd
	NoStop
)

// Protein is one isoform of a gene, identified by its refseq accession.
type Protein struct {
	ID       int64  `json:"id"`
	Refseq   string `json:"refseq"`
	Gene     *Gene  `json:"-"`
	TxStart  int    `json:"tx_start"`
	TxEnd    int    `json:"tx_end"`
	CdsStart int    `json:"cds_start"`
	CdsEnd   int    `json:"cds_end"`

	Sequence         string `json:"sequence,omitempty"`
	DisorderMap      string `json:"disorder_map,omitempty"`
	InteractorsCount int    `json:"interactors_count"`

	Domains    []*Domain          `json:"-"`
	References *ProteinReferences `json:"-"`
}

// Length is the number of residues in the sequence, stop marker included.
func (p *Protein) Length() int {
	return len(p.Sequence)
}

// SequenceDefects reports every way the sequence breaks the rule that it
// ends with the only stop marker it contains.
func (p *Protein) SequenceDefects() SequenceDefect {
	var d SequenceDefect
	seq := p.Sequence
	if len(seq) > 1 && strings.IndexByte(seq[:len(seq)-1], StopMarker) >= 0 {
		d |= StopInside
	}
	if len(seq) == 0 || seq[len(seq)-1] != StopMarker {
		d |= NoStopAtEnd
	}
	if strings.IndexByte(seq, StopMarker) < 0 {
		d |= NoStop
	}
	return d
}

// ResidueAt returns the residue at a 1-based position.
func (p *Protein) ResidueAt(pos int) (byte, bool) {
	if pos < 1 || pos > len(p.Sequence) {
		return 0, false
	}
	return p.Sequence[pos-1], true
}
