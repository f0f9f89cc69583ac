package models

// Pathway is a gene set from Gene Ontology or Reactome.
type Pathway struct {
	ID           int64   `json:"id"`
	Description  string  `json:"description"`
	GeneOntology *int    `json:"gene_ontology,omitempty"`
	Reactome     *int    `json:"reactome,omitempty"`
	Genes        []*Gene `json:"-"`
}

// GeneList is a named list of genes with per-gene statistics.
type GeneList struct {
	ID      int64            `json:"id"`
	Name    string           `json:"name"`
	Entries []*GeneListEntry `json:"entries"`
}

// GeneListEntry is one gene of a GeneList.
type GeneListEntry struct {
	Gene         *Gene   `json:"-"`
	P            float64 `json:"p"`
	FDR          float64 `json:"fdr"`
	IsCancerGene bool    `json:"is_cancer_gene"`
}

// ProteinReferences holds cross references of a protein to other databases.
type ProteinReferences struct {
	ID               int64    `json:"id"`
	Protein          *Protein `json:"-"`
	UniprotAccession string   `json:"uniprot_accession"`
	RefseqNP         string   `json:"refseq_np"`
	EnsemblPeptides  []string `json:"ensembl_peptides"`
}
