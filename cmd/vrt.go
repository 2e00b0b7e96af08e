// cmd/vrt.go - Mosaic index command
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/valpere/dem_to_vrt/internal/config"
	"github.com/valpere/dem_to_vrt/internal/vrt"
)

// vrtCmd represents the vrt command
var vrtCmd = &cobra.Command{
	Use:   "vrt [files...]",
	Short: "Build a VRT index over existing tile files",
	Long: `Build a virtual raster (VRT) index referencing previously acquired
tile files as one logical mosaic. All input files must exist.

Examples:
  dem-to-vrt vrt --out dem.vrt ./dem/dem_ab12.tiff ./dem/dem_cd34.tiff
  dem-to-vrt vrt --out dem.vrt --relative ./dem/*.tiff`,
	Args: cobra.MinimumNArgs(1),
	RunE: runVrt,
}

func init() {
	rootCmd.AddCommand(vrtCmd)

	vrtCmd.Flags().String("out", "", "output VRT path")
	vrtCmd.Flags().Bool("relative", false, "reference tiles by relative path")

	vrtCmd.MarkFlagRequired("out")
}

func runVrt(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	out, _ := cmd.Flags().GetString("out")
	relative, _ := cmd.Flags().GetBool("relative")

	if err := vrt.Build(out, args, relative); err != nil {
		return err
	}
	if cfg.Logging.Verbose {
		fmt.Fprintf(os.Stderr, "Wrote VRT index %s referencing %d tile(s)\n", out, len(args))
	}
	return nil
}
