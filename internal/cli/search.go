package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/nishad/ptmdb/internal/search"
	"github.com/spf13/cobra"
)

var (
	searchLimit    int
	searchFeatures []string
	searchFormat   string
)

// NewSearchCmd creates the search command.
func NewSearchCmd(g *Globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <phrase>",
		Short: "Find genes by symbol or identifier prefix",
		Long: `Search the gene index. The phrase matches, case insensitively, the start
of gene symbols, transcript refseqs, UniProt accessions and protein refseqs.`,
		Example: `  ptmdb search tp53
  ptmdb search P046 --feature uniprot
  ptmdb search NM_00 --limit 50 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(g, args[0])
		},
	}

	cmd.Flags().IntVarP(&searchLimit, "limit", "l", 0, "Maximum number of genes (default from search.default_limit)")
	cmd.Flags().StringSliceVarP(&searchFeatures, "feature", "f", nil,
		"Restrict to features: symbol, refseq, uniprot, protein_np")
	cmd.Flags().StringVar(&searchFormat, "format", "table", "Output format: table or json")

	return cmd
}

func runSearch(g *Globals, phrase string) error {
	var features []search.Feature
	for _, name := range searchFeatures {
		f, err := search.ParseFeature(strings.TrimSpace(name))
		if err != nil {
			return err
		}
		features = append(features, f)
	}
	if searchFormat != "table" && searchFormat != "json" {
		return fmt.Errorf("unknown format %q", searchFormat)
	}

	index, err := g.openIndex()
	if err != nil {
		return err
	}
	defer index.Close()

	limit := searchLimit
	if limit <= 0 {
		limit = g.Config().Search.DefaultLimit
	}
	matches, err := index.Search(phrase, limit, features...)
	if err != nil {
		return err
	}

	if searchFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(matches)
	}

	if len(matches) == 0 {
		newPrinter(g).Info("No genes match %q", phrase)
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "GENE\tCHROM\tSCORE\tMATCHED")
	for _, m := range matches {
		var matched []string
		for _, f := range search.Features {
			if _, ok := m.Matches[f]; ok {
				matched = append(matched, string(f))
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%.3f\t%s\n", boldColor.Sprint(m.Gene.Name), m.Gene.Chrom,
			m.Score(), strings.Join(matched, ","))
	}
	return w.Flush()
}
