package inventory

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
)

const (
	csvFlushEvery = 200
	csvBufferSize = 32 * 1024
)

// CSVHeader lists the export columns in order.
var CSVHeader = []string{"Name", "Description", "Price (LKR)"}

// csvStreamer ends records with CRLF but leaves line breaks inside quoted
// fields untouched; csv.Writer.UseCRLF would rewrite those as well.
type csvStreamer struct {
	buf          *bufio.Writer
	row          bytes.Buffer
	csv          *csv.Writer
	flushEvery   int
	pendingLines int
}

func newCSVStreamer(w io.Writer) *csvStreamer {
	s := &csvStreamer{buf: bufio.NewWriterSize(w, csvBufferSize), flushEvery: csvFlushEvery}
	s.csv = csv.NewWriter(&s.row)
	return s
}

func (s *csvStreamer) writeRow(row []string) error {
	s.row.Reset()
	if err := s.csv.Write(row); err != nil {
		return err
	}
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return err
	}
	record := bytes.TrimSuffix(s.row.Bytes(), []byte("\n"))
	if _, err := s.buf.Write(record); err != nil {
		return err
	}
	if _, err := s.buf.WriteString("\r\n"); err != nil {
		return err
	}
	s.pendingLines++
	if s.flushEvery > 0 && s.pendingLines >= s.flushEvery {
		return s.flush()
	}
	return nil
}

func (s *csvStreamer) flush() error {
	if err := s.buf.Flush(); err != nil {
		return err
	}
	s.pendingLines = 0
	return nil
}

// WriteCSV writes items as the inventory report, values copied verbatim.
func WriteCSV(w io.Writer, items []Item) error {
	streamer := newCSVStreamer(w)
	if err := streamer.writeRow(CSVHeader); err != nil {
		return fmt.Errorf("inventory: write csv header: %w", err)
	}
	for _, item := range items {
		if err := streamer.writeRow([]string{item.Name, item.Description, item.Price}); err != nil {
			return fmt.Errorf("inventory: write csv row %s: %w", item.ID, err)
		}
	}
	return streamer.flush()
}
