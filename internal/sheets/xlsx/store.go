// Package xlsx stores ledger entries as rows of the active sheet of an
// .xlsx workbook. Row 1 is the header; entries are addressed by their
// 1-based row position.
package xlsx

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"github.com/xuri/excelize/v2"

	"accounting/internal/core"
	"accounting/internal/log"
	"accounting/internal/sheets"
)

var ErrHeaderMismatch = errors.New("header does not match the ledger schema")

// IOError wraps a file-system or workbook encoding failure.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// HeaderStatus describes what Open did to row 1.
type HeaderStatus string

const (
	HeaderOK       HeaderStatus = "ok"
	HeaderCreated  HeaderStatus = "created"
	HeaderMigrated HeaderStatus = "migrated"
	HeaderReplaced HeaderStatus = "replaced"
)

// HeaderReport is the outcome of header normalization on Open.
type HeaderReport struct {
	Status     HeaderStatus
	Previous   []string
	BackupPath string
}

// Options control how Open treats an unexpected header.
type Options struct {
	// StrictHeader makes Open fail with ErrHeaderMismatch instead of
	// overwriting an unrecognized header.
	StrictHeader bool
	// BackupOnReplace copies the original file to <path>.bak before an
	// unrecognized header is overwritten.
	BackupOnReplace bool
	Logger          *log.Logger
}

// DefaultOptions returns the options used by the command line tool.
func DefaultOptions() Options {
	return Options{BackupOnReplace: true}
}

// Store is a ledger backed by an .xlsx file. Mutations change the loaded
// workbook only; Flush writes it back and Discard reverts to what was last
// written.
type Store struct {
	path   string
	opts   Options
	log    *log.Logger
	file   *excelize.File
	sheet  string
	report HeaderReport
	// saved is the encoded workbook as of Open or the last Flush.
	saved []byte
}

var _ sheets.Ledger = (*Store)(nil)

// Initialize creates the file with only the header row when it is missing
// or empty. Existing content is never touched.
func Initialize(path string) error {
	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		return &IOError{Op: "initialize", Path: path, Err: errors.New("is a directory")}
	case err == nil && info.Size() > 0:
		return nil
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return &IOError{Op: "initialize", Path: path, Err: err}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &IOError{Op: "initialize", Path: path, Err: err}
		}
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := setRow(f, f.GetSheetName(f.GetActiveSheetIndex()), 1, headerValues()); err != nil {
		return &IOError{Op: "initialize", Path: path, Err: err}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return &IOError{Op: "initialize", Path: path, Err: err}
	}
	return writeAtomic(buf.Bytes(), path)
}

// Open loads the workbook at path and normalizes its header.
func Open(path string, opts Options) (*Store, error) {
	lg := opts.Logger
	if lg == nil {
		lg = log.Discard()
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &IOError{Op: "open", Path: path, Err: err}
	}
	s := &Store{
		path:  path,
		opts:  opts,
		log:   lg.WithComponent(log.ComponentStore).With(log.FieldPath, path),
		file:  f,
		sheet: f.GetSheetName(f.GetActiveSheetIndex()),
	}
	if err := s.normalizeHeader(); err != nil {
		_ = f.Close()
		return nil, err
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		_ = f.Close()
		return nil, &IOError{Op: "open", Path: path, Err: err}
	}
	s.saved = buf.Bytes()
	return s, nil
}

func (s *Store) normalizeHeader() error {
	rows, err := s.rows()
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		s.report = HeaderReport{Status: HeaderCreated}
		s.log.Info("writing header to empty sheet")
		return setRow(s.file, s.sheet, 1, headerValues())
	}

	header := rows[0]
	switch {
	case core.Canonical.Matches(header):
		s.report = HeaderReport{Status: HeaderOK}
		return nil

	case core.CombinedSchema.Matches(header):
		s.report = HeaderReport{Status: HeaderMigrated, Previous: header}
		for i := 1; i < len(rows); i++ {
			cells := toCells(rows[i])
			if core.IsBlankRow(cells) {
				continue
			}
			// readable rows are re-encoded so numbers and flags stay typed
			upgraded := core.UpgradeRow(header, cells)
			if e, err := core.Deserialize(header, cells); err == nil {
				upgraded = core.Values(core.Serialize(e))
			}
			if err := setRow(s.file, s.sheet, i+1, upgraded); err != nil {
				return fmt.Errorf("migrate row %d: %w", i+1, err)
			}
		}
		s.log.Warn("upgraded legacy ledger columns", log.FieldHeader, header, log.FieldRows, len(rows)-1)
		return setRow(s.file, s.sheet, 1, headerValues())
	}

	if s.opts.StrictHeader {
		return fmt.Errorf("%w: %q", ErrHeaderMismatch, header)
	}
	s.report = HeaderReport{Status: HeaderReplaced, Previous: header}
	if s.opts.BackupOnReplace {
		backup := s.path + ".bak"
		data, err := os.ReadFile(s.path)
		if err != nil {
			return &IOError{Op: "backup", Path: s.path, Err: err}
		}
		if err := renameio.WriteFile(backup, data, 0o644); err != nil {
			return &IOError{Op: "backup", Path: backup, Err: err}
		}
		s.report.BackupPath = backup
	}
	s.log.Warn("header does not match the ledger schema, overwriting row 1",
		log.FieldHeader, header, log.FieldBackup, s.report.BackupPath)

	values := headerValues()
	for len(values) < len(header) {
		values = append(values, nil)
	}
	return setRow(s.file, s.sheet, 1, values)
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// HeaderReport returns what Open did to the header row.
func (s *Store) HeaderReport() HeaderReport { return s.report }

// List decodes rows 2..N of the loaded workbook.
func (s *Store) List() (sheets.Listing, error) {
	if s.file == nil {
		return sheets.Listing{}, sheets.ErrNotLoaded
	}
	rows, err := s.rows()
	if err != nil {
		return sheets.Listing{}, err
	}
	var out sheets.Listing
	if len(rows) == 0 {
		return out, nil
	}
	header := rows[0]
	for i := 1; i < len(rows); i++ {
		row := i + 1
		cells := toCells(rows[i])
		if core.IsBlankRow(cells) {
			continue
		}
		e, err := core.Deserialize(header, cells)
		if err != nil {
			out.Skipped = append(out.Skipped, sheets.SkippedRow{Row: row, Err: err})
			s.log.Debug("skipping unreadable row", log.FieldRow, row, log.FieldError, err)
			continue
		}
		out.Records = append(out.Records, sheets.Record{Row: row, Entry: e})
	}
	if len(out.Skipped) > 0 {
		s.log.Warn("some rows could not be read", log.FieldSkipped, len(out.Skipped))
	}
	return out, nil
}

// Get returns the entry at row, or false if the row is absent, blank or
// invalid.
func (s *Store) Get(row int) (core.Entry, bool) {
	if s.file == nil {
		return core.Entry{}, false
	}
	rows, err := s.rows()
	if err != nil || sheets.CheckRow(row, len(rows)) != nil {
		return core.Entry{}, false
	}
	e, err := core.Deserialize(rows[0], toCells(rows[row-1]))
	if err != nil {
		return core.Entry{}, false
	}
	return e, true
}

// LastRow returns the position of the last used row.
func (s *Store) LastRow() (int, error) {
	if s.file == nil {
		return 0, sheets.ErrNotLoaded
	}
	rows, err := s.rows()
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 1, nil
	}
	return len(rows), nil
}

// Append writes e after the last used row.
func (s *Store) Append(e core.Entry) error {
	if s.file == nil {
		return sheets.ErrNotLoaded
	}
	if err := e.Validate(); err != nil {
		return err
	}
	rows, err := s.rows()
	if err != nil {
		return err
	}
	row := len(rows) + 1
	if row < sheets.FirstEntryRow {
		row = sheets.FirstEntryRow
	}
	if err := setRow(s.file, s.sheet, row, core.Values(core.Serialize(e))); err != nil {
		return fmt.Errorf("append row %d: %w", row, err)
	}
	s.log.Debug("appended entry", log.NewFields().WithRow(row).WithEntry(e).ToSlice()...)
	return nil
}

// Replace overwrites every schema column of row with e.
func (s *Store) Replace(row int, e core.Entry) error {
	if s.file == nil {
		return sheets.ErrNotLoaded
	}
	if err := e.Validate(); err != nil {
		return err
	}
	if err := s.checkRow(row); err != nil {
		return err
	}
	if err := setRow(s.file, s.sheet, row, core.Values(core.Serialize(e))); err != nil {
		return fmt.Errorf("replace row %d: %w", row, err)
	}
	s.log.Debug("replaced entry", log.NewFields().WithRow(row).WithEntry(e).ToSlice()...)
	return nil
}

// Remove deletes row; later rows shift up by one, so previously listed
// row positions past it are stale.
func (s *Store) Remove(row int) error {
	if s.file == nil {
		return sheets.ErrNotLoaded
	}
	if err := s.checkRow(row); err != nil {
		return err
	}
	if err := s.file.RemoveRow(s.sheet, row); err != nil {
		return fmt.Errorf("remove row %d: %w", row, err)
	}
	s.log.Debug("removed row", log.FieldRow, row)
	return nil
}

// Flush atomically replaces the backing file with the loaded workbook.
func (s *Store) Flush() error {
	if s.file == nil {
		return sheets.ErrNotLoaded
	}
	buf, err := s.file.WriteToBuffer()
	if err != nil {
		return &IOError{Op: "flush", Path: s.path, Err: err}
	}
	if err := writeAtomic(buf.Bytes(), s.path); err != nil {
		return err
	}
	s.saved = buf.Bytes()
	s.log.Debug("flushed workbook")
	return nil
}

// Discard reloads the workbook as it was at Open or the last successful
// Flush, dropping every change made since.
func (s *Store) Discard() error {
	if s.file == nil {
		return sheets.ErrNotLoaded
	}
	f, err := excelize.OpenReader(bytes.NewReader(s.saved))
	if err != nil {
		return &IOError{Op: "discard", Path: s.path, Err: err}
	}
	_ = s.file.Close()
	s.file = f
	s.sheet = f.GetSheetName(f.GetActiveSheetIndex())
	s.log.Debug("discarded unsaved changes")
	return nil
}

// Close releases the workbook. Unflushed changes are discarded.
func (s *Store) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	s.saved = nil
	if err != nil {
		return &IOError{Op: "close", Path: s.path, Err: err}
	}
	return nil
}

func (s *Store) checkRow(row int) error {
	rows, err := s.rows()
	if err != nil {
		return err
	}
	if err := sheets.CheckRow(row, len(rows)); err != nil {
		return fmt.Errorf("row %d: %w", row, err)
	}
	return nil
}

// rows returns the used rows of the sheet with trailing empty rows trimmed.
func (s *Store) rows() ([][]string, error) {
	rows, err := s.file.GetRows(s.sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", s.sheet, err)
	}
	return rows, nil
}

func headerValues() []any {
	cols := core.Canonical.Header()
	out := make([]any, len(cols))
	for i, c := range cols {
		out[i] = c
	}
	return out
}

func toCells(row []string) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func writeAtomic(data []byte, path string) error {
	pf, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644), renameio.WithExistingPermissions())
	if err != nil {
		return &IOError{Op: "flush", Path: path, Err: err}
	}
	defer pf.Cleanup()
	if _, err := pf.Write(data); err != nil {
		return &IOError{Op: "flush", Path: path, Err: err}
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return &IOError{Op: "flush", Path: path, Err: err}
	}
	return nil
}
