package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/agentic-research/dbref/internal/config"
	"github.com/agentic-research/dbref/internal/ingest"
	"github.com/agentic-research/dbref/internal/resolve"
	"github.com/agentic-research/dbref/internal/store"
	"github.com/agentic-research/dbref/internal/tree"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// outputOptions shape what resolve commands print.
type outputOptions struct {
	selector string
	stripIDs bool
}

func addResolveFlags(fs *pflag.FlagSet, out *outputOptions) {
	fs.StringSlice(config.KeyCollections, nil, "only resolve references into these collections (empty: none)")
	fs.Int(config.KeyMaxDepth, resolve.Unbounded, "maximum resolution hops per path, -1 for unbounded")
	fs.Int(config.KeyHopLimit, 0, "abort after this many substitutions, 0 for no limit")
	fs.StringVar(&out.selector, "select", "", "JSONPath applied to the resolved document")
	fs.BoolVar(&out.stripIDs, "strip-ids", false, `remove "_id" fields from the output`)
}

func newResolveCmd(a *app) *cobra.Command {
	var (
		out outputOptions
		all bool
	)
	cmd := &cobra.Command{
		Use:   "resolve <collection> [id]",
		Short: "Resolve the references of a stored document",
		Long: `Resolve loads a document from collection and replaces its references with
the documents they point to. Without an id the first document of the
collection is used; with --all every document is resolved as one array.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all && len(args) == 2 {
				return errors.New("--all cannot be combined with an id")
			}
			ctx := cmd.Context()
			st, err := a.openStore(false)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			doc, err := loadStored(ctx, st, args, all)
			if err != nil {
				return err
			}
			return a.resolveAndPrint(ctx, st, doc, out, cmd.OutOrStdout())
		},
	}
	addResolveFlags(cmd.Flags(), &out)
	cmd.Flags().BoolVar(&all, "all", false, "resolve every document of the collection")
	return cmd
}

func newResolveFileCmd(a *app) *cobra.Command {
	var (
		out      outputOptions
		fixtures string
	)
	cmd := &cobra.Command{
		Use:   "resolve-file <file>",
		Short: "Resolve the references of a JSON document on disk against the database",
		Long: `Resolve-file loads a JSON document and replaces its references with the
documents they point to. With --fixtures the database is not opened;
references are resolved against an in-memory store loaded from a directory
where each <name>.json file or <name> directory is collection <name>.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			doc, err := ingest.LoadJSONFile(args[0])
			if err != nil {
				return err
			}
			if fixtures != "" {
				mem, err := a.loadFixtures(ctx, fixtures)
				if err != nil {
					return err
				}
				return a.resolveAndPrint(ctx, mem, doc, out, cmd.OutOrStdout())
			}

			st, err := a.openStore(false)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			return a.resolveAndPrint(ctx, st, doc, out, cmd.OutOrStdout())
		},
	}
	addResolveFlags(cmd.Flags(), &out)
	cmd.Flags().StringVar(&fixtures, "fixtures", "", "resolve against the collections in this directory instead of the database")
	return cmd
}

// loadFixtures imports the fixture directory into a fresh memory store.
func (a *app) loadFixtures(ctx context.Context, dir string) (*store.MemoryStore, error) {
	mem := store.NewMemoryStore()
	loaded, err := ingest.ImportFixtures(ctx, mem, dir)
	if err != nil {
		return nil, err
	}
	for collection := range loaded {
		a.log.WithFields(logrus.Fields{
			"collection": collection,
			"documents":  mem.Count(collection),
		}).Info("loaded fixtures")
	}
	return mem, nil
}

func loadStored(ctx context.Context, st *store.SQLiteStore, args []string, all bool) (any, error) {
	collection := args[0]
	switch {
	case len(args) == 2:
		return st.Fetch(ctx, collection, args[1])
	case all:
		docs, err := st.Find(ctx, collection)
		if err != nil {
			return nil, err
		}
		if docs == nil {
			docs = []any{}
		}
		return docs, nil
	default:
		return st.FindOne(ctx, collection)
	}
}

func (a *app) resolveAndPrint(ctx context.Context, f resolve.Fetcher, doc any, out outputOptions, w io.Writer) error {
	opts := append(a.settings.ResolveOptions(),
		resolve.WithLogger(logrus.NewEntry(a.log).WithField("component", "resolve")))
	r, err := resolve.New(f, opts...)
	if err != nil {
		return err
	}
	result, stats, err := r.ResolveWithStats(ctx, doc)
	if err != nil {
		return err
	}
	a.log.WithFields(logrus.Fields{
		"fetches":       stats.Fetches,
		"memo_hits":     stats.MemoHits,
		"substitutions": stats.Substitutions,
		"refused":       stats.RefusedCollection + stats.RefusedCycle,
		"pruned":        stats.Pruned,
	}).Debug("resolved document")

	if out.stripIDs {
		result = tree.StripIDs(result)
	}
	if out.selector != "" {
		if result, err = ingest.Select(result, out.selector); err != nil {
			return err
		}
	}
	return writeJSON(w, result)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
