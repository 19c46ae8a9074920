package models

import "time"

// FileMeta describes a corpus file without its content.
type FileMeta struct {
	RelPath   string // slash separated, relative to the corpus root
	Checksum  string // sha256 of the content, empty when the file could not be read
	Size      int64
	UpdatedAt time.Time
}
