//go:build !linux && !windows

package classify

import (
	"os"
	"time"
)

func creationTime(string, os.FileInfo) (time.Time, bool) {
	return time.Time{}, false
}
