package frame

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	apperrors "inclusion-scoring/internal/common/errors"
)

// ReadCSV parses a headed CSV table. Cells keep their original text; typed
// values are produced by Record when features are built.
func ReadCSV(r io.Reader) (*Frame, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv has no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	// strip a UTF-8 BOM left by spreadsheet exports
	if len(header) > 0 && len(header[0]) >= 3 && header[0][:3] == "\xef\xbb\xbf" {
		header[0] = header[0][3:]
	}

	var rows [][]interface{}
	for line := 0; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", line, err)
		}
		row := make([]interface{}, len(rec))
		for i, cell := range rec {
			row[i] = cell
		}
		rows = append(rows, row)
	}
	return New(header, rows)
}

// ReadCSVFile opens path and parses it with ReadCSV.
func ReadCSVFile(path string) (*Frame, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewInputReadFailedError(path, err)
	}
	defer fh.Close()

	f, err := ReadCSV(fh)
	if err != nil {
		if apperrors.AsStandardError(err).Code != apperrors.ErrCodeInternal {
			return nil, err
		}
		return nil, apperrors.NewInputReadFailedError(path, err)
	}
	return f, nil
}

// WriteCSV writes the header and every row.
func (f *Frame) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.columns); err != nil {
		return err
	}
	record := make([]string, len(f.columns))
	for _, row := range f.rows {
		for i, v := range row {
			record[i] = FormatCell(v)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the frame to a temporary file next to path and renames
// it into place, so readers never observe a partial table.
func (f *Frame) WriteCSVFile(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return apperrors.NewOutputWriteFailedError(path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := f.WriteCSV(tmp); err != nil {
		tmp.Close()
		return apperrors.NewOutputWriteFailedError(path, err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.NewOutputWriteFailedError(path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return apperrors.NewOutputWriteFailedError(path, err)
	}
	return nil
}
