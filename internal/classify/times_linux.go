//go:build linux

package classify

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// creationTime uses statx, which reports the birth time on filesystems that
// record it (ext4, xfs, btrfs).
func creationTime(path string, _ os.FileInfo) (time.Time, bool) {
	var stx unix.Statx_t
	if err := unix.Statx(unix.AT_FDCWD, path, 0, unix.STATX_BTIME, &stx); err != nil {
		return time.Time{}, false
	}
	if stx.Mask&unix.STATX_BTIME == 0 {
		return time.Time{}, false
	}
	return time.Unix(stx.Btime.Sec, int64(stx.Btime.Nsec)), true
}
