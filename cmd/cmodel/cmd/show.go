package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abramin/cmodel/internal/store"
)

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one indexed entity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(outputDir())
		if err != nil {
			return err
		}
		defer st.Close()

		e, err := st.GetEntity(args[0])
		if err != nil {
			return fmt.Errorf("entity %s: %w", args[0], err)
		}

		fmt.Printf("%s (%s)\n", e.ID, e.Kind)
		fmt.Printf("  Name:      %s\n", e.Name)
		if e.File != "" {
			fmt.Printf("  Location:  %s:%d\n", e.File, e.Line)
		}
		if e.Owner != nil {
			fmt.Printf("  Owner:     %s.%s\n", e.Owner.ParentID, strings.Join(e.Owner.FieldPath, "."))
		}
		if e.Aliased != nil {
			fmt.Printf("  Aliases:   %s\n", e.Aliased.String())
		}
		if len(e.AliasChain) > 0 {
			fmt.Printf("  Chain:     %s\n", strings.Join(e.AliasChain, " -> "))
		}
		if e.CanonicalTarget != "" {
			fmt.Printf("  Canonical: %s\n", e.CanonicalTarget)
		}

		fields, err := st.GetFields(e.ID)
		if err != nil {
			return err
		}
		if len(fields) > 0 {
			fmt.Println("  Fields:")
			for _, f := range fields {
				if f.BitWidth != "" {
					fmt.Printf("    %-20s %s : %s\n", f.Name, f.Type, f.BitWidth)
					continue
				}
				fmt.Printf("    %-20s %s\n", f.Name, f.Type)
			}
		}
		for _, v := range e.Values {
			switch {
			case v.Value != nil:
				fmt.Printf("    %s = %d\n", v.Name, *v.Value)
			case v.Raw != "":
				fmt.Printf("    %s = %s\n", v.Name, v.Raw)
			default:
				fmt.Printf("    %s\n", v.Name)
			}
		}

		in, err := st.Incoming(e.ID)
		if err != nil {
			return err
		}
		if len(in) > 0 {
			fmt.Println("  Referenced by:")
			for _, rel := range in {
				fmt.Printf("    %-8s %s\n", rel.Kind, rel.Source)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
