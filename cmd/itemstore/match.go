package main

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/nainya/itemstore/pkg/corpus"
	"github.com/nainya/itemstore/pkg/equality"
	"github.com/nainya/itemstore/pkg/generate"
)

var matchCmd = &cobra.Command{
	Use:   "match <file>",
	Short: "Find stored items equal to the items in a file",
	Long: `Generate probe items from a file and list the stored items that
describe the same entity. Items are equal when they share the same
comparator set and every comparator aspect agrees.

With --type-only, comparator aspects need only share a runtime type.`,
	Args: cobra.ExactArgs(1),
	RunE: runMatch,
}

var matchTypeOnly bool

func init() {
	matchCmd.Flags().BoolVar(&matchTypeOnly, "type-only", false, "Match comparator types only, ignoring values")
}

func runMatch(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	factory, err := a.newFactory()
	if err != nil {
		return err
	}
	probes, err := generate.GenerateFiles(ctx, factory, args, 1)
	if err != nil {
		return err
	}

	scanner := corpus.NewScanner(corpus.WithLogger(a.log.Component("corpus")))
	records, failures, err := scanner.Load(ctx, a.cfg.Store.Location)
	if err != nil {
		return err
	}
	for _, f := range failures {
		pterm.Warning.Printf("Skipped %s: %v\n", f.Path, f.Err)
	}

	mode := equality.MatchTypeAndValue
	if matchTypeOnly {
		mode = equality.MatchTypeOnly
	}
	engine := equality.NewEngine(equality.WithMode(mode))

	data := pterm.TableData{{"Probe", "Matching identifiers"}}
	matched := 0
	for i, probe := range probes {
		var ids []string
		for _, r := range records {
			if engine.IsEqual(r.Bag, probe) {
				ids = append(ids, corpus.IdentifierOf(r.Path))
			}
		}
		if len(ids) > 0 {
			matched++
		}
		for j, id := range ids {
			label := ""
			if j == 0 {
				label = pterm.Sprintf("#%d", i+1)
			}
			data = append(data, []string{label, id})
		}
	}

	if matched == 0 {
		pterm.Warning.Printf("None of %d probes matched %d stored items\n", len(probes), len(records))
		return nil
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}
	pterm.Info.Printf("%d of %d probes matched (%s)\n", matched, len(probes), mode)
	return nil
}
