package cmd

import (
	"fmt"

	"github.com/agentic-research/dbref/internal/ingest"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <collection> <path>",
		Short: "Import a JSON file or a directory of JSON files into a collection",
		Long: `Import stores every document found at path in the collection. A file
holding a top-level array contributes one document per element. Documents
without an "_id" get a generated UUID. The ids are printed one per line.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			collection, path := args[0], args[1]

			st, err := a.openStore(true)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			ids, err := ingest.Import(cmd.Context(), st, collection, path)
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			if err != nil {
				return err
			}
			a.log.WithFields(logrus.Fields{
				"collection": collection,
				"count":      len(ids),
			}).Info("import finished")
			return nil
		},
	}
}
