// internal/cache/cache.go - Content-addressed tile cache
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/valpere/dem_to_vrt/internal/geo"
)

// TilePath returns the deterministic cache path for a tile covering the
// bounding box: dir/dem_<sha256 of the canonical bbox string>.tiff. The
// same box always maps to the same path.
func TilePath(dir string, bbox geo.BBox) string {
	sum := sha256.Sum256([]byte(bbox.CanonicalString()))
	return filepath.Join(dir, "dem_"+hex.EncodeToString(sum[:])+".tiff")
}

// Exists reports whether a usable tile file is present at path. A
// non-empty regular file is treated as proof of validity; no content
// verification is performed.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// AllExist reports whether every path has a usable tile file.
func AllExist(paths []string) bool {
	for _, path := range paths {
		if !Exists(path) {
			return false
		}
	}
	return true
}
