package main

import (
	"fmt"

	"github.com/aretw0/canopy/pkg/schema"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Check tree data files for consistency",
	Long: `Decodes each data file and reports duplicate identities, cycles, empty values and
node data that does not match the declared field types.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		failed := 0
		for _, path := range args {
			doc, err := schema.Load(path)
			if err != nil {
				failed++
				fmt.Fprintf(out, "✗ %s\n", path)
				if problems := schema.ValidationErrors(err); len(problems) > 0 {
					for _, p := range problems {
						fmt.Fprintf(out, "    - %v\n", p)
					}
				} else {
					fmt.Fprintf(out, "    - %v\n", err)
				}
				continue
			}
			fmt.Fprintf(out, "✓ %s (%d roots)\n", path, len(doc.Nodes))
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed validation", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
