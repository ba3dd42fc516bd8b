package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"catalogexplorer/internal/adapters/catalogs"
	"catalogexplorer/internal/transfer"
)

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <catalog> <file|->",
		Short: "Replace a catalog's dataset with a JSON document",
		Long: `import validates the document against the catalog's shape and, when it
is accepted, replaces the dataset and stores it in the preference store so the
next run starts from it. Use - to read standard input.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.catalog(args[0])
			if err != nil {
				return err
			}
			data, err := readInput(cmd, args[1])
			if err != nil {
				return err
			}
			if err := c.Import(cmd.Context(), data); err != nil {
				return err
			}
			info := c.Info()
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d entries into %s\n", info.Size, info.Name)
			return nil
		},
	}
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(io.LimitReader(cmd.InOrStdin(), catalogs.MaxImportBytes))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

func (a *app) exportCmd() *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export <catalog>",
		Short: "Write a catalog's dataset as JSON, YAML or CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.catalog(args[0])
			if err != nil {
				return err
			}
			f, err := transfer.ParseFormat(format)
			if err != nil {
				return err
			}
			data, err := c.Encode(f)
			if err != nil {
				return err
			}
			switch output {
			case "-":
				_, err = cmd.OutOrStdout().Write(data)
				return err
			case "":
				output = c.Filename(f)
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", output, len(data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "json, yaml or csv")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, - for stdout (default <catalog>.<ext>)")
	return cmd
}
