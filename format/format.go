// Package format defines the wire formats a sparse file layout can be
// streamed in. A stream is a size header, zero or more data sections and an
// end tag; holes are simply never transmitted.
package format

import (
	"io"
	"sort"
)

// Section is one contiguous run of data bytes at an absolute file offset.
type Section struct {
	Offset, Length int64
}

// Format encodes and decodes sparse streams. Readers and writers are kept
// separate so sections can be streamed without buffering their payload.
type Format interface {
	ReadFileSize(reader io.Reader) (int64, error)
	// ReadSectionHeader returns io.EOF when the end tag is reached.
	ReadSectionHeader(reader io.Reader) (Section, error)

	GetFileSizeReader(size uint64) (reader io.Reader, length int64)
	GetSectionReader(source io.Reader, section Section) (reader io.Reader, length int64)
	GetEndTagReader() (reader io.Reader, length int64)
}

var formats = map[string]Format{
	"rbd-diff-v1": RbdDiffv1,
	"rbd-diff-v2": RbdDiffv2,
}

// GetByName returns the format registered under name.
func GetByName(name string) (format Format, exists bool) {
	format, exists = formats[name]
	return
}

// Names lists the registered format names, sorted.
func Names() []string {
	names := make([]string, 0, len(formats))
	for name := range formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
