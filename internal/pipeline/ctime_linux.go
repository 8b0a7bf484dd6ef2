//go:build linux

package pipeline

import (
	"os"
	"syscall"
	"time"
)

// createdAt returns the inode change time, the closest Linux has to a
// creation time in os.FileInfo
func createdAt(info os.FileInfo) time.Time {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return time.Unix(st.Ctim.Unix())
	}
	return info.ModTime()
}
