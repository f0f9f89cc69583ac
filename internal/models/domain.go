package models

// MergeThreshold is the minimal relative overlap at which two occurrences
// of the same InterPro domain on one protein are considered the same one.
const MergeThreshold = 0.75

// InterproDomain is a domain family, arranged in a tree by Parent.
type InterproDomain struct {
	ID               int64           `json:"id"`
	Accession        string          `json:"accession"`
	ShortDescription string          `json:"short_description,omitempty"`
	Description      string          `json:"description,omitempty"`
	Type             string          `json:"type,omitempty"`
	Level            int             `json:"level"`
	Parent           *InterproDomain `json:"-"`
}

// Domain is an occurrence of an InterPro domain on a protein sequence.
type Domain struct {
	ID       int64           `json:"id"`
	Protein  *Protein        `json:"-"`
	Interpro *InterproDomain `json:"-"`
	Start    int             `json:"start"`
	End      int             `json:"end"`
}

// Len is the span of the occurrence.
func (d *Domain) Len() int {
	return d.End - d.Start
}

// Overlap returns the common part of d and [start, end] relative to the
// longer of the two intervals. Disjoint intervals give a value <= 0.
func (d *Domain) Overlap(start, end int) float64 {
	common := min(d.End, end) - max(d.Start, start)
	longest := max(d.Len(), end-start)
	if longest <= 0 {
		return 0
	}
	return float64(common) / float64(longest)
}

// Expand grows the occurrence to the union of itself and [start, end].
func (d *Domain) Expand(start, end int) {
	d.Start = min(d.Start, start)
	d.End = max(d.End, end)
}

// SimilarDomains lists the occurrences on p of the given InterPro domain
// which overlap [start, end] at least by MergeThreshold.
func (p *Protein) SimilarDomains(interpro *InterproDomain, start, end int) []*Domain {
	var similar []*Domain
	for _, d := range p.Domains {
		if d.Interpro == interpro && d.Overlap(start, end) >= MergeThreshold {
			similar = append(similar, d)
		}
	}
	return similar
}
