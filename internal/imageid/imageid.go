// Package imageid derives remote image ids from downloaded file names.
//
// Booru downloads are saved as "<id>.<ext>" or "<id>__<tags>.<ext>". Only the
// final path component is inspected; directories never contribute digits.
package imageid

import (
	"path/filepath"
	"strconv"
	"strings"
)

const tagSeparator = "__"

// FromPath extracts the image id from the file name at path. It reports false
// when the name does not start with a base-10 unsigned 64-bit number. A single
// leading plus sign is accepted.
func FromPath(path string) (uint64, bool) {
	name := filepath.Base(path)
	if name == "." || name == string(filepath.Separator) {
		return 0, false
	}

	var candidate string
	if head, _, found := strings.Cut(name, tagSeparator); found {
		candidate = head
	} else {
		candidate, _, _ = strings.Cut(name, ".")
	}

	id, err := strconv.ParseUint(strings.TrimPrefix(candidate, "+"), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
