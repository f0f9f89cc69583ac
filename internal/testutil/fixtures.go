package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nishad/ptmdb/internal/config"
)

// Source fixtures form one small dataset: TP53 with two isoforms, AKT1,
// MAPK1 and BAD whose only isoform has a stop marker inside its sequence.
// Every file mixes usable rows with rows the importers must skip.

// RefGeneFixture is protein_data.tsv. NM_005163 is listed twice and the
// last row has an unknown strand.
var RefGeneFixture = TSV(
	[]string{"bin", "name", "chrom", "strand", "txStart", "txEnd", "cdsStart", "cdsEnd", "exonCount", "exonStarts", "exonEnds", "score", "name2", "cdsStartStat", "cdsEndStat", "exonFrames"},
	[]string{"0", "NM_000546", "chr17", "-", "7571719", "7590868", "7572926", "7579912", "11", "7571719,", "7573008,", "0", "TP53", "cmpl", "cmpl", "1,"},
	[]string{"0", "NM_001126112", "chr17", "-", "7571719", "7590868", "7572926", "7579912", "11", "7571719,", "7573008,", "0", "TP53", "cmpl", "cmpl", "1,"},
	[]string{"0", "NM_005163", "chr14", "-", "105235685", "105262088", "105236679", "105258970", "14", "105235685,", "105236842,", "0", "AKT1", "cmpl", "cmpl", "0,"},
	[]string{"0", "NM_002745", "chr22", "-", "22113946", "22221970", "22123485", "22221730", "9", "22113946,", "22123609,", "0", "MAPK1", "cmpl", "cmpl", "0,"},
	[]string{"0", "NM_004322", "chr11", "-", "64037300", "64052176", "64037555", "64051735", "3", "64037300,", "64038007,", "0", "BAD", "cmpl", "cmpl", "0,"},
	[]string{"0", "NM_005163", "chr14", "-", "105235685", "105262088", "105236679", "105258970", "14", "105235685,", "105236842,", "0", "AKT1", "cmpl", "cmpl", "0,"},
	[]string{"0", "NM_000999", "chr1", "?", "1", "2", "1", "2", "1", "1,", "2,", "0", "FOO", "cmpl", "cmpl", "0,"},
)

// SequencesFixture is the protein FASTA. NM_999999 is not in refGene.
var SequencesFixture = Lines(
	">NM_000546 TP53 isoform a",
	"MEEPQSDPSV*",
	">NM_001126112",
	"MEEPQSDPS*",
	">NM_005163",
	"MSDVAIVK",
	"EGWLHKRG*",
	">NM_002745",
	"MAAAAAAGAGPEMVRG*",
	">NM_004322",
	"MFQIPEF*EPSEQEDS*",
	">NM_999999",
	"MAAA*",
)

// DisorderFixture has a map shorter than its sequence for NM_005163.
var DisorderFixture = Lines(
	">NM_000546",
	"00000111110",
	">NM_005163",
	"0000",
)

// DomainsFixture merges two occurrences of IPR000001 on NM_000546.
var DomainsFixture = TSV(
	[]string{"Ensembl Gene ID", "Ensembl Transcript ID", "Ensembl Protein ID", "Chromosome Name", "Gene Start (bp)", "Gene End (bp)", "RefSeq mRNA [e.g. NM_001195597]", "Interpro ID", "Interpro Short Description", "Interpro Description", "Interpro end", "Interpro start"},
	[]string{"ENSG00000141510", "ENST00000269305", "ENSP00000269305", "17", "7565097", "7590856", "NM_000546", "IPR000001", "P53_tetramer", "p53 tetramerisation", "8", "1"},
	[]string{"ENSG00000141510", "ENST00000269305", "ENSP00000269305", "17", "7565097", "7590856", "NM_000546", "IPR000001", "P53_tetramer", "p53 tetramerisation", "8", "2"},
	[]string{"ENSG00000142208", "ENST00000270202", "ENSP00000270202", "14", "105235686", "105262088", "NM_005163", "IPR000002", "PH_domain", "Pleckstrin homology domain", "12", "2"},
	[]string{"ENSG00000100030", "ENST00000215832", "ENSP00000215832", "22", "22108789", "22221970", "NM_002745", "IPR000003", "Prot_kinase_dom", "Protein kinase domain", "40", "5"},
	[]string{"ENSG00000100030", "ENST00000215832", "ENSP00000215832", "X", "22108789", "22221970", "NM_002745", "IPR000003", "Prot_kinase_dom", "Protein kinase domain", "10", "1"},
	[]string{"ENSG00000002330", "ENST00000309032", "ENSP00000309032", "11", "64037300", "64052176", "NM_004322"},
	[]string{"ENSG00000000001", "ENST00000000001", "ENSP00000000001", "1", "1", "2", "NM_123456", "IPR000001", "P53_tetramer", "p53 tetramerisation", "8", "1"},
	[]string{"ENSG00000141510", "ENST00000269305", "ENSP00000269305", "17", "7565097", "7590856", "NM_000546", "IPR000004", "Other", "Other domain", "3", "5"},
)

// HierarchyFixture adds IPR000005 below IPR000002.
var HierarchyFixture = Lines(
	"IPR000001::p53 tetramerisation::",
	"--IPR000002::Pleckstrin homology domain::",
	"----IPR000005::PH subfamily::",
	"IPR000003::Protein kinase domain::",
)

// InterproXMLFixture types two known domains and one unknown entry.
var InterproXMLFixture = Lines(
	`<?xml version="1.0" encoding="UTF-8"?>`,
	`<interprodb>`,
	`  <interpro id="IPR000001" short_name="P53_tetramer" type="Domain">`,
	`    <name>p53 tetramerisation</name>`,
	`    <abstract><p>Tetramerisation domain.</p></abstract>`,
	`  </interpro>`,
	`  <interpro id="IPR000003" short_name="Prot_kinase_dom" type="Domain">`,
	`    <name>Protein kinase domain</name>`,
	`  </interpro>`,
	`  <interpro id="IPR999999" short_name="Unused" type="Family">`,
	`    <name>Unused family</name>`,
	`  </interpro>`,
	`</interprodb>`,
)

// CancersFixture has one row without a color.
var CancersFixture = TSV(
	[]string{"BRCA", "Breast invasive carcinoma", "#ED2891"},
	[]string{"LUAD", "Lung adenocarcinoma", "#D49DC7"},
	[]string{"OV", "Ovarian serous cystadenocarcinoma"},
)

// KinaseMappingsFixture maps GHOST to a gene that does not exist.
var KinaseMappingsFixture = TSV(
	[]string{"AKT1", "AKT1"},
	[]string{"ERK2", "MAPK1"},
	[]string{"GHOST", "NOPE"},
)

// SitesFixture lists AKT1 twice on the first site and a kinase group on
// the second.
var SitesFixture = TSV(
	[]string{"gene", "position", "residue", "enzymes", "pmid", "type"},
	[]string{"NM_000546", "9", "S", "AKT1,ERK2,AKT1", "12345", "phosphorylation"},
	[]string{"NM_005163", "2", "S", "CMGC_GROUP,PKA", "23456", "phosphorylation"},
	[]string{"NM_000111", "1", "S", "AKT1", "34567", "phosphorylation"},
	[]string{"NM_002745", "x", "S", "AKT1", "45678", "phosphorylation"},
)

// KinaseClassificationFixture has a row whose group.clean disagrees with
// its family.
var KinaseClassificationFixture = TSV(
	[]string{"No.", "Kinase", "Group", "Family", "Subfamily", "Gene.Symbol", "gene.clean", "Description", "group.clean"},
	[]string{"1", "AKT1", "AGC", "AKT", "", "AKT1", "AKT1", "v-akt homolog 1", "AKT"},
	[]string{"2", "ERK2", "CMGC", "MAPK", "ERK", "MAPK1", "ERK2", "mitogen-activated protein kinase 1", "MAPK_ERK"},
	[]string{"3", "PKA", "AGC", "PKA", "", "PRKACA", "PKA", "protein kinase A", "PKA_C"},
	[]string{"4", "AKT2", "AGC", "AKT", "", "AKT2", "AKT2", "v-akt homolog 2", "AKT"},
)

// GeneListFixture keeps three pan-cancer rows, one of them for a gene not
// in refGene, and one with an unreadable p value.
var GeneListFixture = Lines(
	`,gene,p,fdr,n_pSNVs,cancer_type,is_cancer_gene`,
	`1,TP53,1e-10,1e-8,40,PAN,TRUE`,
	`2,AKT1,0.001,0.01,5,PAN,FALSE`,
	`3,TP53,1e-5,1e-3,10,BRCA,TRUE`,
	`4,NEWGENE,0.01,0.05,2,PAN,TRUE`,
	`5,BAD,x,0.1,1,PAN,TRUE`,
)

// ExternalReferencesFixture repeats NM_000546 and lists an XM isoform.
var ExternalReferencesFixture = TSV(
	[]string{"NM_000546", "P04637", "NP_000537", "ENSP00000269305 ENSP00000352610"},
	[]string{"NM_000546", "P04637", "NP_000537", "ENSP00000269305"},
	[]string{"NM_005163", "P31749", "NP_005154", "ENSP00000270202"},
	[]string{"XM_000001", "Q00000", "XP_000001", "ENSP00000000001"},
	[]string{"NM_404040", "Q11111", "NP_404040", "ENSP00000000002"},
)

// PathwaysFixture has a KEGG set, which is neither GO nor Reactome.
var PathwaysFixture = TSV(
	[]string{"GO:0006915", "apoptotic process ", "TP53", "AKT1", "BAD"},
	[]string{"REAC:109581", "Apoptosis", "TP53", "MAPK1", "CASP3"},
	[]string{"KEGG:04110", "Cell cycle", "TP53"},
)

// ClinvarFixture yields three inherited mutations: p.E2K on both TP53
// isoforms and p.S2F on AKT1.
var ClinvarFixture = TSV(
	[]string{"Chr", "Start", "End", "Ref", "Alt", "Func.refGene", "Gene.refGene", "GeneDetail.refGene", "ExonicFunc.refGene", "AAChange.refGene", "V11", "V12", "V13", "V14", "V15", "V16", "V17", "V18", "V19", "V20", "V21"},
	clinvarRow("17", "7579472", "G", "A", "TP53:NM_000546:exon4:c.G4A:p.E2K,TP53:NM_001126112:exon4:c.G4A:p.E2K",
		"RS=1042522;VLD;CLNSIG=5|2;CLNDBN=Li-Fraumeni_syndrome|not_specified;CLNREVSTAT=single|single"),
	clinvarRow("17", "7579500", "C", "T", "TP53:NM_000546:exon4:c.C7T:p.P3S",
		"CLNSIG=1;CLNDBN=not_specified;CLNREVSTAT=no_criteria"),
	clinvarRow("17", "7579472", "G", "A", "TP53:NM_000546:exon4:c.G4A:p.E2K",
		"RS=1042522;CLNSIG=5;CLNDBN=Li-Fraumeni_syndrome;CLNREVSTAT=single"),
	clinvarRow("14", "105246551", "A", "G", "AKT1:NM_005163:exon2:c.A4G:p.K2E",
		"CLNSIG=5;CLNDBN=Cowden_syndrome;CLNREVSTAT=single"),
	clinvarRow("14", "105246552", "A", "G", "AKT1:NM_005163:exon2:c.A5G:p.S2P",
		"CLNSIG=5;CLNDBN=Cowden_syndrome|Proteus_syndrome;CLNREVSTAT=single"),
	clinvarRow("14", "105246553", "C", "T", "AKT1:NM_005163:exon2:c.C5T:p.S2F",
		`RS=121434592;MUT;PMC;CLNSIG=4;CLNDBN=Proteus_syndrome\x2c_somatic;CLNREVSTAT=no_criteria`),
)

func clinvarRow(chrom, pos, ref, alt, change, meta string) []string {
	row := []string{chrom, pos, pos, ref, alt, "exonic", "", ".", "nonsynonymous SNV", change}
	for len(row) < 20 {
		row = append(row, ".")
	}
	return append(row, meta)
}

// SourceFixtures maps importer names to their fixture.
func SourceFixtures() map[string]string {
	return map[string]string{
		"proteins":              RefGeneFixture,
		"sequences":             SequencesFixture,
		"disorder":              DisorderFixture,
		"domains":               DomainsFixture,
		"domains_hierarchy":     HierarchyFixture,
		"domains_types":         InterproXMLFixture,
		"cancers":               CancersFixture,
		"kinase_mappings":       KinaseMappingsFixture,
		"sites":                 SitesFixture,
		"kinase_classification": KinaseClassificationFixture,
		"external_references":   ExternalReferencesFixture,
		"pathways":              PathwaysFixture,
		"clinvar":               ClinvarFixture,
		"gene_lists":            GeneListFixture,
	}
}

// SourceConfig returns the default configuration with its source
// directory in a fresh temporary directory.
func SourceConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Import.SourceDirectory = t.TempDir()
	return cfg
}

// WriteSources writes the fixture of every importer where cfg expects its
// source. Entries of overrides replace the fixture of the same name.
func WriteSources(t *testing.T, cfg *config.Config, overrides map[string]string) {
	t.Helper()
	fixtures := SourceFixtures()
	for name, content := range overrides {
		fixtures[name] = content
	}
	for name, content := range fixtures {
		path := cfg.SourcePath(name)
		if name == "gene_lists" {
			path = cfg.GeneListPaths()[0].Path
		}
		WriteSource(t, path, content)
	}
}

// WriteSource writes content at path, creating parent directories and
// compressing it when the name ends with .gz.
func WriteSource(t *testing.T, path, content string) {
	t.Helper()
	dir, name := filepath.Split(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create %s: %v", dir, err)
	}
	if strings.HasSuffix(name, ".gz") {
		WriteGzipFile(t, dir, name, content)
		return
	}
	WriteFile(t, dir, name, content)
}
