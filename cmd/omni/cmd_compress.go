package main

import (
	"fmt"

	"omnichat/internal/media"

	"github.com/spf13/cobra"
)

var compressQuality int

// compressCmd batch-compresses images in a directory
var compressCmd = &cobra.Command{
	Use:   "compress [dir]",
	Short: "Re-encode images in a directory as small JPEGs",
	Long: `Re-encodes every JPEG and PNG in the directory as a low-quality JPEG
under <dir>/compressed, printing the size saved per file. Useful for
shrinking screenshots before attaching them.

Example:
  omni compress ~/Pictures/screenshots --quality 40`,
	Args: cobra.ExactArgs(1),
	RunE: runCompress,
}

func init() {
	compressCmd.Flags().IntVarP(&compressQuality, "quality", "q", 20, "JPEG quality (1-95)")
}

func runCompress(cmd *cobra.Command, args []string) error {
	report, err := media.CompressDir(args[0], compressQuality)
	if err != nil {
		return err
	}

	if len(report.Results) == 0 && len(report.Failed) == 0 {
		fmt.Println("No images found.")
		return nil
	}

	var before, after int64
	for _, r := range report.Results {
		before += r.SizeBefore
		after += r.SizeAfter
		fmt.Printf("  %-40s %8s -> %8s  (%.0f%% saved)\n",
			r.Name, formatBytes(r.SizeBefore), formatBytes(r.SizeAfter), r.Savings())
	}
	for _, name := range report.Failed {
		fmt.Printf("  %-40s failed to convert\n", name)
	}

	fmt.Printf("\n%d images -> %s (total %s -> %s)\n",
		len(report.Results), report.OutDir, formatBytes(before), formatBytes(after))
	return nil
}

// formatBytes renders a byte count in the nearest sensible unit.
func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
