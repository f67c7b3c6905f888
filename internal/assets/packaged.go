package assets

import (
	"embed"
	"io/fs"
)

//go:embed all:quality
var packaged embed.FS

// Packaged returns the quality tree embedded in the binary, rooted so that
// check.sh is at the top level.
func Packaged() fs.FS {
	sub, err := fs.Sub(packaged, qualityDirName)
	if err != nil {
		return nil
	}
	return sub
}
