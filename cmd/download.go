// cmd/download.go - Static tile streaming command
package cmd

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/cobra"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"

	"github.com/valpere/dem_to_vrt/internal/config"
	"github.com/valpere/dem_to_vrt/internal/fetch"
)

// downloadCmd represents the download command
var downloadCmd = &cobra.Command{
	Use:   "download [urls...]",
	Short: "Stream static raster tiles to disk",
	Long: `Download one or more static raster tile URLs concurrently, streaming
each response body to disk. Downloads share the pooled HTTP transport with
its per-host connection cap and retry policy; a tile that already exists on
disk with the advertised size is skipped.

Examples:
  dem-to-vrt download --dest ./tiles https://example.com/n37w122.tif
  dem-to-vrt download --dest ./tiles https://example.com/n37w122.tif https://example.com/n38w122.tif`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().String("dest", ".", "destination directory for downloaded tiles")
}

func runDownload(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	destDir, _ := cmd.Flags().GetString("dest")
	destDir, err = filepath.Abs(destDir)
	if err != nil {
		return fmt.Errorf("resolve destination directory: %w", err)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	keys := make([]string, len(args))
	for i, raw := range args {
		u, err := url.Parse(raw)
		if err != nil || u.Path == "" || path.Base(u.Path) == "/" {
			return fmt.Errorf("cannot derive a file name from URL %q", raw)
		}
		keys[i] = path.Base(u.Path)
	}

	bucket, err := blob.OpenBucket(cmd.Context(), "file://"+destDir)
	if err != nil {
		return fmt.Errorf("open destination bucket: %w", err)
	}
	defer bucket.Close()

	client := fetch.NewClient(fetch.Options{
		MaxConnsPerHost: cfg.Network.MaxConnsPerHost,
		Timeout:         cfg.Network.Timeout,
		RetryAttempts:   cfg.Network.RetryAttempts,
		RetryBackoff:    cfg.Network.RetryBackoff,
	})
	defer client.Close()

	if err := client.StreamWrite(cmd.Context(), args, bucket, keys); err != nil {
		return err
	}

	if cfg.Logging.Verbose {
		fmt.Fprintf(os.Stderr, "Downloaded %d tile(s) to %s\n", len(args), destDir)
	}
	return nil
}
