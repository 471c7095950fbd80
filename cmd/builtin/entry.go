package builtin

import (
	"github.com/mwantia/feather/cmd"
	"github.com/mwantia/feather/data"
)

// entry formats a stat for listings.
type entry struct {
	stat *data.Stat
}

// DisplayName returns the name with appropriate indicator
func (e entry) DisplayName() string {
	switch {
	case e.stat.IsSymlink():
		return e.stat.Name + " -> " + e.stat.Link
	case e.stat.Dir:
		return e.stat.Name + "/"
	default:
		return e.stat.Name
	}
}

// DisplaySize returns human-readable size
func (e entry) DisplaySize() string {
	if e.stat.Dir {
		return "<DIR>"
	}
	return cmd.FormatSize(e.stat.Size)
}

// DisplayMode returns file permissions as string
func (e entry) DisplayMode() string {
	return e.stat.Mode.String()
}

// DisplayModTime returns formatted modification time
func (e entry) DisplayModTime() string {
	if e.stat.ModifyTime.IsZero() {
		return "-"
	}
	return e.stat.ModifyTime.Format("2006-01-02 15:04:05")
}
