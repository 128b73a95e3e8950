package main

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/nainya/itemstore/pkg/generate"
	"github.com/nainya/itemstore/pkg/hashing"
	"github.com/nainya/itemstore/pkg/item"
	"github.com/nainya/itemstore/pkg/naming"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Generate items from files or URLs and store them",
	Long: `Generate items from each file, choosing the generator by extension
(.csv is read as a titled CSV, anything else as text), then qualify, stamp
and store every item. URLs given with --url are read by the text generator.

Examples:
  itemstore ingest people.csv
  itemstore ingest notes.txt --url https://example.com/page
  itemstore ingest data.psv --generator titled-csv --separator '\|'`,
	RunE: runIngest,
}

var (
	ingestURLs      []string
	ingestGenerator string
	ingestSeparator string
)

func init() {
	ingestCmd.Flags().StringSliceVar(&ingestURLs, "url", nil, "URL to read (repeatable)")
	ingestCmd.Flags().StringVar(&ingestGenerator, "generator", "", "Force a generator for every file")
	ingestCmd.Flags().StringVar(&ingestSeparator, "separator", "", "CSV separator (overrides generate.separator)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && len(ingestURLs) == 0 {
		return cmd.Usage()
	}
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	factory, err := a.newFactory()
	if err != nil {
		return err
	}
	if ingestGenerator != "" {
		if err := factory.SetFallback(ingestGenerator); err != nil {
			return err
		}
		for _, ext := range []string{"csv", "txt"} {
			if err := factory.Associate(ext, ingestGenerator); err != nil {
				return err
			}
		}
	}

	bags, err := generate.GenerateFiles(ctx, factory, args, a.cfg.Generate.Workers)
	if err != nil {
		return err
	}

	if len(ingestURLs) > 0 {
		name := generate.TextName
		if ingestGenerator != "" {
			name = ingestGenerator
		}
		gen, err := factory.New(name)
		if err != nil {
			return err
		}
		for _, u := range ingestURLs {
			out, err := gen.GenerateURL(ctx, u, u)
			if err != nil {
				return err
			}
			bags = append(bags, out...)
		}
	}

	stored, err := a.store(cmd, bags)
	if err != nil {
		return err
	}
	pterm.Success.Printf("Stored %d of %d items in %s\n", stored, len(bags), a.cfg.Store.Location)
	return nil
}

// newFactory builds a generator factory from configuration
func (a *app) newFactory() (*generate.Factory, error) {
	fetcher := generate.NewFetcher(nil, a.cfg.Generate.FetchRate, 1)
	factory := generate.NewFactory(
		generate.WithLogger(a.log.Component("generate")),
		generate.WithFetcher(fetcher),
	)

	sep := a.cfg.Generate.Separator
	if ingestSeparator != "" {
		sep = ingestSeparator
	}
	if err := factory.Configure(generate.TitledCSVName, generate.ParamSeparator, sep); err != nil {
		return nil, err
	}
	return factory, nil
}

// store qualifies, stamps, persists and indexes bags, returning how many
// were written
func (a *app) store(cmd *cobra.Command, bags []*item.Bag) (int, error) {
	ctx := cmd.Context()

	strategy, err := a.strategy()
	if err != nil {
		return 0, err
	}
	p, err := a.openStore()
	if err != nil {
		return 0, err
	}
	idx, err := a.openIndex(ctx)
	if err != nil {
		return 0, err
	}
	if idx != nil {
		defer idx.Close()
	}

	stored := 0
	for _, b := range bags {
		id := naming.GenerateIdentifier(true)
		q := naming.QualifyBag(b, a.cfg.Store.CacheName, id)
		if err := hashing.Stamp(q, strategy); err != nil {
			a.log.Warn("Item not stored").Str("identifier", id).Err(err).Send()
			continue
		}
		if err := p.Persist(id, q, a.cfg.Store.Overwrite); err != nil {
			return stored, err
		}
		stored++

		if idx != nil {
			if err := idx.Submit(ctx, q, true); err != nil {
				a.log.Warn("Item stored but not indexed").Str("identifier", id).Err(err).Send()
			}
		}
	}
	return stored, nil
}
