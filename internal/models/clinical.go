package models

import "fmt"

// Cancer type, identified by name.
type Cancer struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Disease is identified by name across the whole clinical variant file.
type Disease struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Mutation is an amino acid substitution at a 1-based protein position.
type Mutation struct {
	ID       int64    `json:"id"`
	Protein  *Protein `json:"-"`
	Position int      `json:"position"`
	Alt      string   `json:"alt"`
}

// MutationKey is the natural key of a Mutation.
type MutationKey struct {
	Refseq   string
	Position int
	Alt      string
}

// Key returns the natural key of the mutation.
func (m *Mutation) Key() MutationKey {
	return MutationKey{Refseq: m.Protein.Refseq, Position: m.Position, Alt: m.Alt}
}

func (k MutationKey) String() string {
	return fmt.Sprintf("%s:%d%s", k.Refseq, k.Position, k.Alt)
}

// InheritedMutation carries the ClinVar level annotation of a mutation.
type InheritedMutation struct {
	ID                 int64  `json:"id"`
	MutationID         int64  `json:"mutation_id"`
	DBSNPID            *int64 `json:"db_snp_id,omitempty"`
	IsLowFreqVariation bool   `json:"is_low_freq_variation"`
	IsValidated        bool   `json:"is_validated"`
	IsInPubmedCentral  bool   `json:"is_in_pubmed_central"`
}

// ClinicalData links an inherited mutation to a disease.
type ClinicalData struct {
	InheritedID int64   `json:"inherited_id"`
	SigCode     *int    `json:"sig_code,omitempty"`
	DiseaseID   int64   `json:"disease_id"`
	RevStatus   *string `json:"rev_status,omitempty"`
}
