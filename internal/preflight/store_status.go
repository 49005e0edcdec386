package preflight

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"revtrack/internal/config"
)

// minFreeBytes is the free space below which the store check fails.
const minFreeBytes = 64 << 20

// CheckStoreFile reports whether the store file exists and whether its
// filesystem has room to grow. A missing file passes: the first open
// creates it.
func CheckStoreFile(cfg *config.Config) Result {
	const name = "Review store"

	path := cfg.DBPath()
	detail := path + " (not created yet)"
	if info, err := os.Stat(path); err == nil {
		detail = fmt.Sprintf("%s (%s)", path, humanize.Bytes(uint64(info.Size())))
	} else if !os.IsNotExist(err) {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}

	var fs unix.Statfs_t
	if err := unix.Statfs(cfg.Paths.DataDir, &fs); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s; free space unknown: %v", detail, err)}
	}
	free := fs.Bavail * uint64(fs.Bsize)
	if free < minFreeBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%s; only %s free", detail, humanize.Bytes(free))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s; %s free", detail, humanize.Bytes(free))}
}
