//go:build !windows

package archive

import "time"

// Unix filesystems do not let user space set a birth time.
func setCreationTime(string, time.Time) error { return nil }
