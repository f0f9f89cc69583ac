// Package cli implements the ptmdb command line.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd builds the ptmdb command tree.
func NewRootCmd(version string) *cobra.Command {
	g := &Globals{}

	root := &cobra.Command{
		Use:   "ptmdb",
		Short: "Post-translational modification database builder",
		Long: `ptmdb imports genes, protein isoforms, PTM sites, kinases, domains,
mutations and annotations from their source files into a SQLite database,
indexes the genes for search and serves the result over a read-only API.`,
		Version: version,
		Example: `  # Write a default configuration
  ptmdb config init

  # Import every source file, then index the genes
  ptmdb import
  ptmdb index

  # Find a gene and serve the API
  ptmdb search tp53
  ptmdb serve --port 8080`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.Setup()
		},
	}
	g.AddFlags(root.PersistentFlags())

	root.AddCommand(
		NewImportCmd(g),
		NewDBCmd(g),
		NewIndexCmd(g),
		NewSearchCmd(g),
		NewServeCmd(g),
		NewConfigCmd(g),
	)
	for _, cmd := range root.Commands() {
		SetupGroupedHelp(cmd)
	}
	return root
}
