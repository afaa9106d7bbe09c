package store

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/karrick/godirwalk"

	"github.com/aisnotify/notifyd/cmn/nlog"
)

var segmentNameRe = regexp.MustCompile(`^[0-9a-f]{4}\.seg$`)

// Scan walks dir and returns the segment ids it finds, removing any file
// that doesn't look like a segment file along the way. It's the startup
// cleanup step of lifecycle Init. Files with a valid segment name are
// kept in place, whatever their content; only their ids are returned.
func Scan(dir string) ([]int64, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	var ids []int64
	err := godirwalk.Walk(dir, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			name := filepath.Base(path)
			if !segmentNameRe.MatchString(name) {
				nlog.Warningf("store: removing stale non-segment file %s", path)
				return os.Remove(path)
			}
			id, err := strconv.ParseInt(name[:4], 16, 64)
			if err != nil {
				return nil
			}
			ids = append(ids, id)
			return nil
		},
	})
	return ids, err
}
