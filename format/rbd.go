package format

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	sizeIndicator byte = 's'
	dataIndicator byte = 'w'
	endIndicator  byte = 'e'
)

// RbdDiffv1 implements the rbd diff v1 wire format as described by
// https://github.com/ceph/ceph/blob/master/doc/dev/rbd-diff.rst#header.
// Only the Size, UpdatedData and End records are used. Zero data is simply
// not transmitted.
var RbdDiffv1 rbdDiffv1

type rbdDiffv1 struct{}

func (r rbdDiffv1) ReadFileSize(reader io.Reader) (int64, error) {
	// 1 byte record tag, 8 bytes little endian size.
	var header [1 + 8]byte
	_, err := io.ReadFull(reader, header[:])
	if err != nil {
		return 0, err
	}

	if header[0] != sizeIndicator {
		return 0, fmt.Errorf("invalid header. Expected size record but got %q", header[0])
	}

	return int64(binary.LittleEndian.Uint64(header[1:])), nil
}

func (r rbdDiffv1) ReadSectionHeader(reader io.Reader) (Section, error) {
	var header [8 + 8]byte

	// The first byte carries the record tag.
	_, err := io.ReadFull(reader, header[0:1])
	if err != nil {
		return Section{}, fmt.Errorf("error reading record tag: %w", err)
	}

	switch header[0] {
	case endIndicator:
		return Section{}, io.EOF
	case dataIndicator:
		_, err = io.ReadFull(reader, header[:])
		if err != nil {
			return Section{}, fmt.Errorf("error reading data record header: %w", err)
		}

		return Section{
			Offset: int64(binary.LittleEndian.Uint64(header[:8])),
			Length: int64(binary.LittleEndian.Uint64(header[8:])),
		}, nil
	}

	return Section{}, fmt.Errorf("invalid record tag: %x", header[0])
}

func (r rbdDiffv1) GetFileSizeReader(size uint64) (reader io.Reader, length int64) {
	buf := make([]byte, 1+8)
	buf[0] = sizeIndicator
	binary.LittleEndian.PutUint64(buf[1:], size)
	return bytes.NewReader(buf), 1 + 8
}

func (r rbdDiffv1) GetSectionReader(source io.Reader, section Section) (reader io.Reader, length int64) {
	// tag + offset + length
	const headerSize = 1 + 8 + 8

	buf := make([]byte, headerSize)
	buf[0] = dataIndicator
	binary.LittleEndian.PutUint64(buf[1:], uint64(section.Offset))
	binary.LittleEndian.PutUint64(buf[1+8:], uint64(section.Length))

	headerReader := bytes.NewReader(buf)
	payloadReader := io.LimitReader(source, section.Length)

	return io.MultiReader(headerReader, payloadReader), headerSize + section.Length
}

func (r rbdDiffv1) GetEndTagReader() (reader io.Reader, length int64) {
	return bytes.NewReader([]byte{endIndicator}), 1
}

// RbdDiffv2 implements the rbd diff v2 wire format as described by
// https://github.com/ceph/ceph/blob/master/doc/dev/rbd-diff.rst#header-1.
// Records additionally carry their own byte length.
var RbdDiffv2 rbdDiffv2

type rbdDiffv2 struct{}

func (r rbdDiffv2) ReadFileSize(reader io.Reader) (int64, error) {
	// 1 byte record tag, 8 bytes record length, 8 bytes size.
	var header [1 + 8 + 8]byte
	_, err := io.ReadFull(reader, header[:])
	if err != nil {
		return 0, err
	}

	if header[0] != sizeIndicator {
		return 0, fmt.Errorf("invalid header. Expected size record but got %q", header[0])
	}

	return int64(binary.LittleEndian.Uint64(header[9:])), nil
}

func (r rbdDiffv2) ReadSectionHeader(reader io.Reader) (Section, error) {
	var header [8 + 8 + 8]byte

	// The first byte carries the record tag.
	_, err := io.ReadFull(reader, header[0:1])
	if err != nil {
		return Section{}, fmt.Errorf("error reading record tag: %w", err)
	}

	switch header[0] {
	case endIndicator:
		return Section{}, io.EOF
	case dataIndicator:
		_, err = io.ReadFull(reader, header[:])
		if err != nil {
			return Section{}, fmt.Errorf("error reading data record header: %w", err)
		}

		// The first int64 is the record length, which offset and length
		// already determine.
		return Section{
			Offset: int64(binary.LittleEndian.Uint64(header[8:16])),
			Length: int64(binary.LittleEndian.Uint64(header[16:])),
		}, nil
	}

	return Section{}, fmt.Errorf("invalid record tag: %x", header[0])
}

func (r rbdDiffv2) GetFileSizeReader(size uint64) (reader io.Reader, length int64) {
	buf := make([]byte, 1+8+8)
	buf[0] = sizeIndicator
	binary.LittleEndian.PutUint64(buf[1:], 8)
	binary.LittleEndian.PutUint64(buf[1+8:], size)
	return bytes.NewReader(buf), 1 + 8 + 8
}

func (r rbdDiffv2) GetSectionReader(source io.Reader, section Section) (reader io.Reader, length int64) {
	// tag + record length + offset + length
	const headerSize = 1 + 8 + 8 + 8

	buf := make([]byte, headerSize)
	buf[0] = dataIndicator
	binary.LittleEndian.PutUint64(buf[1:], 16+uint64(section.Length))
	binary.LittleEndian.PutUint64(buf[1+8:], uint64(section.Offset))
	binary.LittleEndian.PutUint64(buf[1+8+8:], uint64(section.Length))

	headerReader := bytes.NewReader(buf)
	payloadReader := io.LimitReader(source, section.Length)

	return io.MultiReader(headerReader, payloadReader), headerSize + section.Length
}

func (r rbdDiffv2) GetEndTagReader() (reader io.Reader, length int64) {
	return bytes.NewReader([]byte{endIndicator}), 1
}
