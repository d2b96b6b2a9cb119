package sparsemap

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/svenwiltink/sparsemap/format"
)

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for index := range p {
		p[index] = 0
	}

	return len(p), nil
}

// SendSparseFile scans input and streams its layout to output in the given
// wire format. Only data segments are transmitted, so the stream stays
// small for sparse files. The input file's offset is unspecified afterwards
// (the scan queries move it) but its content is never touched.
func SendSparseFile(input *os.File, f format.Format, output io.Writer) error {
	layout, err := ScanFile(input)
	if err != nil {
		return fmt.Errorf("error scanning file: %w", err)
	}

	return Send(output, input, layout, f)
}

// Send streams the data segments of a previously scanned layout from src to
// output. Reads are positional so concurrent readers of src are unaffected.
func Send(output io.Writer, src io.ReaderAt, layout *Layout, f format.Format) error {
	sizeReader, _ := f.GetFileSizeReader(uint64(layout.Size()))
	if _, err := io.Copy(output, sizeReader); err != nil {
		return fmt.Errorf("error writing size record: %w", err)
	}

	for _, seg := range layout.Data() {
		section := format.Section{Offset: seg.Start, Length: seg.Length()}
		reader, _ := f.GetSectionReader(io.NewSectionReader(src, seg.Start, seg.Length()), section)

		if _, err := io.Copy(output, reader); err != nil {
			return fmt.Errorf("error writing data record at offset %d: %w", seg.Start, err)
		}
	}

	endReader, _ := f.GetEndTagReader()
	if _, err := io.Copy(output, endReader); err != nil {
		return fmt.Errorf("error writing end record: %w", err)
	}

	return nil
}

// ReceiveSparseFile parses a sparse stream and writes the data records to
// the target file. The target is first truncated to the transmitted size,
// so it ends up sparse on filesystems that support it. The target should be
// empty beforehand: existing bytes outside the received data records are
// not cleared.
func ReceiveSparseFile(output *os.File, f format.Format, input io.Reader) error {
	size, err := f.ReadFileSize(input)
	if err != nil {
		return fmt.Errorf("error determining target file size: %w", err)
	}

	err = output.Truncate(size)
	if err != nil {
		return fmt.Errorf("error resizing target file: %w", err)
	}

	for {
		section, err := f.ReadSectionHeader(input)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("error reading section header: %w", err)
		}

		writer := io.NewOffsetWriter(output, section.Offset)
		if _, err := io.Copy(writer, io.LimitReader(input, section.Length)); err != nil {
			return fmt.Errorf("error copying data at offset %d: %w", section.Offset, err)
		}
	}
}

// ToNormalReader expands a sparse stream into a dense byte stream,
// zero-filling the holes. This is useful when combining a sparse stream
// with readers that have no notion of sparseness, such as hashers or HTTP
// response bodies.
//
// Returns an io.ReadCloser for early cancellation in case of an error on
// the reader side.
func ToNormalReader(f format.Format, input io.Reader) io.ReadCloser {
	reader, writer := io.Pipe()

	go func() {
		size, err := f.ReadFileSize(input)
		if err != nil {
			writer.CloseWithError(fmt.Errorf("error determining target file size: %w", err))
			return
		}

		var currentOffset int64

		for {
			section, err := f.ReadSectionHeader(input)
			if errors.Is(err, io.EOF) {
				_, err = io.Copy(writer, io.LimitReader(zeroReader{}, size-currentOffset))
				if err != nil {
					writer.CloseWithError(fmt.Errorf("error filling trailing hole: %w", err))
					return
				}

				writer.Close()
				return
			}
			if err != nil {
				writer.CloseWithError(fmt.Errorf("error reading section header: %w", err))
				return
			}

			// Instead of seeking we fill the stream with enough zero bytes.
			_, err = io.Copy(writer, io.LimitReader(zeroReader{}, section.Offset-currentOffset))
			if err != nil {
				writer.CloseWithError(fmt.Errorf("error filling hole: %w", err))
				return
			}

			_, err = io.Copy(writer, io.LimitReader(input, section.Length))
			if err != nil {
				writer.CloseWithError(fmt.Errorf("error copying data: %w", err))
				return
			}

			currentOffset = section.Offset + section.Length
		}
	}()

	return reader
}
