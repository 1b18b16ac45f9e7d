package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/stitchfit/tagscan/internal/extract"
)

// extractCmd represents the extract command.
var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Extract garment fields from recognized text lines",
	Long: `Extract structured garment fields (product code, name, size, color,
price, materials, measurements) from text lines, one line per printed
tag row. Reads from a file, or from stdin when no file is given.

Examples:
  tagscan extract lines.txt
  cat lines.txt | tagscan extract
  tagscan extract lines.txt --format json`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		var reader io.Reader = cmd.InOrStdin()
		if len(args) == 1 {
			f, err := os.Open(args[0]) //nolint:gosec // G304: Reading user-provided text file is expected
			if err != nil {
				return fmt.Errorf("failed to open input file: %w", err)
			}
			defer func() { _ = f.Close() }()
			reader = f
		}

		lines, err := readLines(reader)
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		info, err := extract.Extract(lines)
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		w := cmd.OutOrStdout()
		if format == outputFormatJSON {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		}

		if info.IsEmpty() {
			fmt.Fprintln(w, "No garment fields recognized")
			return nil
		}
		writeGarmentInfo(w, &info)
		return nil
	},
}

func readLines(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if lines == nil {
		lines = []string{}
	}
	return lines, nil
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringP("format", "f", "text", "output format (text, json)")
}
