//go:build !unix

package steps

import "os"

// Ownership is not observable here; checks compare content and mode only.
func fileOwner(os.FileInfo) (uid, gid int, ok bool) {
	return 0, 0, false
}
