package classify

import (
	"os"
	"time"
)

// Times are the filesystem timestamps of a file.
type Times struct {
	Created  time.Time
	Modified time.Time
}

// TimesFunc reads the timestamps of the file at path.
type TimesFunc func(path string) (Times, error)

// ReadTimes stats path. Created is the file's birth time where the platform
// records one and falls back to the modification time otherwise.
func ReadTimes(path string) (Times, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Times{}, err
	}
	t := Times{Modified: info.ModTime()}
	if created, ok := creationTime(path, info); ok {
		t.Created = created
	} else {
		t.Created = t.Modified
	}
	return t, nil
}
