package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var modelsJSON bool

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models offered by the provider",
	Long: `List the provider's models as the host sees them, after the
settings.allowed_models filter has been applied.

Examples:
  chatbridge models
  chatbridge models --json`,
	Args: cobra.NoArgs,
	RunE: runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.Flags().BoolVar(&modelsJSON, "json", false, "Print descriptors as JSON")
}

func runModels(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)
	comps, err := buildComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer comps.close()

	descs, err := comps.service.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("listing models: %w", err)
	}

	out := cmd.OutOrStdout()
	if modelsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(descs)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tINPUT\tOUTPUT\tTOOLS\tIMAGES")
	for _, d := range descs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
			d.ID, d.Name, d.MaxInputTokens, d.MaxOutputTokens,
			yesNo(d.Capabilities.ToolCalling), yesNo(d.Capabilities.ImageInput))
	}
	return tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
