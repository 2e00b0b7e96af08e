// cmd/root.go - Root command implementation
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dem-to-vrt",
	Short: "Fetch seamless elevation rasters and index them as a VRT",
	Long: `DemToVrt fetches elevation raster data for an arbitrary geographic
bounding box from large remotely-hosted virtual rasters, splitting oversized
requests into smaller tiles, fetching and clipping each tile concurrently,
and caching results on disk by content fingerprint.

Features:
- Pixel-budget bounding box decomposition with optional overlap buffering
- Concurrent tile acquisition over a bounded worker pool
- Content-addressed on-disk tile cache (re-runs skip completed tiles)
- Pooled HTTP transport with automatic retry on transient server errors
- VRT index generation over the acquired tiles

Examples:
  # Fetch a bounding box at 30 m resolution into ./dem
  dem-to-vrt fetch --bbox "-122.0,37.0,-121.0,38.0" --resolution 30 --dest ./dem

  # Fetch and build a mosaic index in one step
  dem-to-vrt fetch --bbox "-122.0,37.0,-121.0,38.0" --resolution 30 --dest ./dem --vrt ./dem/dem.vrt

  # Stream static tile URLs straight to disk
  dem-to-vrt download --dest ./tiles https://example.com/n37w122.tif https://example.com/n38w122.tif

  # Index previously fetched tiles
  dem-to-vrt vrt --out dem.vrt --relative ./dem/*.tiff`,
	Version: "1.0.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.dem-to-vrt.yaml)")

	// Source flags
	rootCmd.PersistentFlags().IntP("resolution", "r", 10, "resolution tier in meters (10, 30, 60)")
	rootCmd.PersistentFlags().Int("pixel-max", 10_000_000, "maximum pixels per tile (0 disables decomposition)")
	rootCmd.PersistentFlags().Float64("buffer-pixels", 0, "overlap buffer between sub-tiles, in pixels")

	// Cache flags
	rootCmd.PersistentFlags().String("cache-dir", "./dem", "directory for cached tile files")

	// Network flags
	rootCmd.PersistentFlags().Duration("timeout", 10*time.Minute, "global per-request network timeout")
	rootCmd.PersistentFlags().Int("retries", 5, "number of retry attempts for transient errors")

	// Logging flags
	rootCmd.PersistentFlags().Bool("verbose", false, "verbose output")

	// Bind flags to viper
	viper.BindPFlag("source.resolution", rootCmd.PersistentFlags().Lookup("resolution"))
	viper.BindPFlag("source.pixel_max", rootCmd.PersistentFlags().Lookup("pixel-max"))
	viper.BindPFlag("source.buffer_pixels", rootCmd.PersistentFlags().Lookup("buffer-pixels"))
	viper.BindPFlag("cache.directory", rootCmd.PersistentFlags().Lookup("cache-dir"))
	viper.BindPFlag("network.timeout", rootCmd.PersistentFlags().Lookup("timeout"))
	viper.BindPFlag("network.retry_attempts", rootCmd.PersistentFlags().Lookup("retries"))
	viper.BindPFlag("logging.verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".dem-to-vrt")
	}

	viper.SetEnvPrefix("DEM_TO_VRT")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("logging.verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}
