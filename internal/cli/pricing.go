package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var pricingCmd = &cobra.Command{
	Use:   "pricing",
	Short: "Inspect the pricing tables used for budget estimates",
}

var pricingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List providers and per-model prices",
	RunE:  runPricingList,
}

func init() {
	rootCmd.AddCommand(pricingCmd)
	pricingCmd.AddCommand(pricingListCmd)
}

func runPricingList(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	registry, err := initRegistry(cfg)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "PROVIDER\tMODEL\tINPUT/1M\tOUTPUT/1M\n")

	for _, name := range registry.List() {
		p, err := registry.Get(name)
		if err != nil {
			continue
		}
		for _, m := range p.Models() {
			fmt.Fprintf(w, "%s\t%s\t%.2f\t%.2f\n",
				name, m.Model, m.InputPerMillion, m.OutputPerMillion,
			)
		}
	}
	w.Flush()

	return nil
}
