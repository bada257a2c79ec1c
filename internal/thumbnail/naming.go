package thumbnail

import (
	"path"
	"strings"
)

// Location returns where the sizeKey variant of p lives: the key is inserted before the
// extension with a dash ("2024/img.png", "thumb" -> "2024/img-thumb.png"). It works the
// same for relative object paths and fully-qualified remote paths.
func Location(p, sizeKey string) string {
	dir, base := path.Split(p)
	ext := path.Ext(base)
	if ext == base {
		ext = ""
	}
	stem := strings.TrimSuffix(base, ext)
	return dir + stem + "-" + sizeKey + ext
}
