package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/nainya/itemstore/pkg/corpus"
	"github.com/nainya/itemstore/pkg/hashing"
)

var dictionaryCmd = &cobra.Command{
	Use:   "dictionary",
	Short: "List every field path in the corpus",
	Long: `Scan every record in the corpus and list the distinct field paths in
first-seen order. Records that fail to decode are reported and skipped.`,
	RunE: runDictionary,
}

var showCmd = &cobra.Command{
	Use:   "show <identifier>",
	Short: "Print a stored item",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Search the index",
	Long:  "Search indexed items. With --field only that field path is matched.",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarise the corpus and index",
	RunE:  runReport,
}

var (
	searchField string
	searchLimit int
)

func init() {
	searchCmd.Flags().StringVar(&searchField, "field", "", "Field path to match")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 100, "Maximum hits")
}

func runDictionary(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	scanner := corpus.NewScanner(corpus.WithLogger(a.log.Component("corpus")))
	res, err := scanner.BuildDataDictionary(cmd.Context(), a.cfg.Store.Location)
	if err != nil {
		return err
	}

	data := pterm.TableData{{"#", "Field"}}
	for i, p := range res.Dictionary.Paths() {
		data = append(data, []string{strconv.Itoa(i + 1), p})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}

	pterm.Info.Printf("%d fields from %d records\n", res.Dictionary.Len(), res.Records)
	for _, f := range res.Failures {
		pterm.Warning.Printf("Skipped %s: %v\n", f.Path, f.Err)
	}
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	p, err := a.openStore()
	if err != nil {
		return err
	}

	b, err := p.Load(args[0])
	if err != nil {
		return err
	}

	pterm.DefaultSection.Println(args[0])
	pterm.Info.Printf("Created %s\n", time.UnixMilli(b.CreatedAt()).UTC().Format(time.RFC3339))
	pterm.Info.Printf("Comparators %v\n", b.Comparators())

	data := pterm.TableData{{"Attribute", "Type", "Value"}}
	for _, name := range b.Names() {
		v, _ := b.Get(name)
		data = append(data, []string{name, v.TypeName(), v.String()})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}

	ok, err := hashing.Verify(b)
	switch {
	case err != nil:
		pterm.Warning.Printf("Comparator hash not checked: %v\n", err)
	case ok:
		pterm.Success.Println("Comparator hash verified")
	default:
		pterm.Error.Println("Comparator hash does not match the comparator values")
	}
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	idx, err := a.openIndex(ctx)
	if err != nil {
		return err
	}
	if idx == nil {
		return fmt.Errorf("no index configured (set index.path)")
	}
	defer idx.Close()

	hits, err := idx.Search(ctx, searchField, args[0], searchLimit)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		pterm.Warning.Println("No matches")
		return nil
	}

	data := pterm.TableData{{"Identifier", "Cache", "Comparator key", "Created"}}
	for _, h := range hits {
		data = append(data, []string{
			h.Identifier,
			h.CacheName,
			h.ComparatorKey,
			time.UnixMilli(h.CreatedAt).UTC().Format(time.RFC3339),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func runReport(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	p, err := a.openStore()
	if err != nil {
		return err
	}
	r, err := p.Report()
	if err != nil {
		return err
	}

	data := pterm.TableData{
		{"Location", r.Location},
		{"Records", strconv.Itoa(r.FileCount)},
		{"Last modified", r.LastModified.UTC().Format(time.RFC3339)},
	}

	idx, err := a.openIndex(ctx)
	if err != nil {
		return err
	}
	if idx != nil {
		defer idx.Close()
		ir, err := idx.Report(ctx)
		if err != nil {
			return err
		}
		data = append(data,
			[]string{"Indexed items", strconv.Itoa(ir.Items)},
			[]string{"Indexed fields", strconv.Itoa(ir.Fields)},
		)
	}
	return pterm.DefaultTable.WithData(data).Render()
}
