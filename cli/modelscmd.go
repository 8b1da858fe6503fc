package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/promptctl/promptctl/llm"
)

func modelsCmd(app *App) *cobra.Command {
	var provider string
	var capability string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List known providers and models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			models, err := collectModels(provider, capability)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(app, models)
			}

			tw := tabwriter.NewWriter(app.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PROVIDER\tMODEL\tCONTEXT\tIN $/1M\tOUT $/1M\tCAPABILITIES")
			for _, m := range models {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\t%.2f\t%s\n",
					m.Provider, m.ID, m.ContextWindow, m.CostPer1MIn, m.CostPer1MOut,
					strings.Join(m.Capabilities, ","))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", "", "Limit to one provider")
	cmd.Flags().StringVar(&capability, "capability", "", "Limit to models with a capability (text, streaming, structured, reasoning, vision)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func collectModels(provider, capability string) ([]llm.ModelMetadata, error) {
	var models []llm.ModelMetadata
	switch {
	case provider != "":
		var err error
		models, err = llm.ModelsForProvider(provider)
		if err != nil {
			return nil, err
		}
	case capability != "":
		return llm.ModelsByCapability(capability), nil
	default:
		for _, p := range llm.Providers() {
			models = append(models, p.Models...)
		}
	}

	if capability == "" {
		return models, nil
	}
	var filtered []llm.ModelMetadata
	for _, m := range models {
		for _, c := range m.Capabilities {
			if c == capability {
				filtered = append(filtered, m)
				break
			}
		}
	}
	return filtered, nil
}
