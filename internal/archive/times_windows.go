//go:build windows

package archive

import (
	"time"

	"golang.org/x/sys/windows"
)

func setCreationTime(path string, created time.Time) error {
	if created.IsZero() {
		return nil
	}
	name, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return err
	}
	h, err := windows.CreateFile(name, windows.FILE_WRITE_ATTRIBUTES,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE, nil,
		windows.OPEN_EXISTING, windows.FILE_FLAG_BACKUP_SEMANTICS, 0)
	if err != nil {
		return err
	}
	defer func() { _ = windows.CloseHandle(h) }()
	ft := windows.NsecToFiletime(created.UnixNano())
	return windows.SetFileTime(h, &ft, nil, nil)
}
