package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Sheet1"

// Writer receives table rows. Flush makes the rows written so far visible to the reader
// where the format allows it; Close finishes the file. Abort releases the writer without
// finishing the file.
type Writer interface {
	Write(row []string) error
	Flush() error
	Close() error
	Abort() error
	Format() Format
}

// flusher is implemented by HTTP response writers that can push buffered bytes to the client.
type flusher interface {
	Flush()
}

// New returns a writer for format over w.
func New(format Format, w io.Writer) (Writer, error) {
	switch format {
	case FormatCSV:
		return NewCSV(w), nil
	case FormatXLSX:
		return NewXLSX(w)
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}

type csvWriter struct {
	w   *csv.Writer
	out flusher
}

// NewCSV writes comma-separated rows to w. When w is an http.Flusher, Flush also
// sends the rows to the client.
func NewCSV(w io.Writer) Writer {
	out, _ := w.(flusher)
	return &csvWriter{w: csv.NewWriter(w), out: out}
}

func (c *csvWriter) Write(row []string) error {
	return c.w.Write(row)
}

func (c *csvWriter) Flush() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return err
	}
	if c.out != nil {
		c.out.Flush()
	}
	return nil
}

func (c *csvWriter) Close() error {
	return c.Flush()
}

func (c *csvWriter) Abort() error { return nil }

func (c *csvWriter) Format() Format { return FormatCSV }

// xlsxWriter streams rows into a worksheet. The workbook is only complete, and only
// written to out, on Close.
type xlsxWriter struct {
	out    io.Writer
	file   *excelize.File
	stream *excelize.StreamWriter
	row    int
}

// NewXLSX writes a single-sheet workbook to w on Close.
func NewXLSX(w io.Writer) (Writer, error) {
	f := excelize.NewFile()
	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("create xlsx stream: %w", err)
	}
	return &xlsxWriter{out: w, file: f, stream: sw}, nil
}

func (x *xlsxWriter) Write(row []string) error {
	x.row++
	cell, err := excelize.CoordinatesToCellName(1, x.row)
	if err != nil {
		return fmt.Errorf("xlsx cell for row %d: %w", x.row, err)
	}
	values := make([]any, len(row))
	for i, v := range row {
		values[i] = v
	}
	if err = x.stream.SetRow(cell, values); err != nil {
		return fmt.Errorf("write xlsx row %d: %w", x.row, err)
	}
	return nil
}

func (x *xlsxWriter) Flush() error { return nil }

func (x *xlsxWriter) Close() error {
	defer func() { _ = x.file.Close() }()
	if err := x.stream.Flush(); err != nil {
		return fmt.Errorf("flush xlsx stream: %w", err)
	}
	if err := x.file.Write(x.out); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// Abort drops the workbook and its stream temp files.
func (x *xlsxWriter) Abort() error {
	if err := x.file.Close(); err != nil {
		return fmt.Errorf("discard xlsx: %w", err)
	}
	return nil
}

func (x *xlsxWriter) Format() Format { return FormatXLSX }
