package data

import (
	"encoding/json"
	"path"
	"time"
)

// FileStat describes a single object inside a storage backend. Backends
// speak in FileStats; sessions turn them into Stats.
type FileStat struct {
	// Key relative to the backend root, without a leading slash.
	Key string `json:"key"`

	Mode FileMode `json:"mode"`
	// Size in bytes (0 for directories)
	Size int64 `json:"size"`

	ModifyTime time.Time `json:"modify_time"`
	CreateTime time.Time `json:"create_time"`

	ContentType ContentType `json:"content_type,omitempty"`
	ETag        string      `json:"etag,omitempty"`
	// LinkTarget is set for symbolic links.
	LinkTarget string `json:"link_target,omitempty"`
}

// Name returns the last element of the key.
func (fs *FileStat) Name() string {
	if fs.Key == "" {
		return ""
	}
	return path.Base(fs.Key)
}

// ToStat converts the backend record into a Stat without children.
func (fs *FileStat) ToStat() *Stat {
	stat := NewStat(fs.Name())
	stat.Mode = fs.Mode
	stat.ModifyTime = fs.ModifyTime
	stat.Link = fs.LinkTarget
	stat.Dir = fs.Mode.IsDir()
	stat.File = fs.Mode.IsRegular()
	if !stat.Dir {
		stat.Size = fs.Size
	}
	return stat
}

// Marshal provides JSON serialization for FileStat.
func (fs *FileStat) Marshal() ([]byte, error) {
	return json.Marshal(fs)
}

// Unmarshal provides JSON deserialization for FileStat.
func (fs *FileStat) Unmarshal(data []byte) error {
	return json.Unmarshal(data, fs)
}
