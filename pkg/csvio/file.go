package csvio

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/TheNoZER0/ticketcalculator/pkg/ledger"
	"github.com/TheNoZER0/ticketcalculator/pkg/validation"
)

// LoadFile reads a ledger CSV. A missing file is an empty ledger.
func LoadFile(path string) ([]ledger.CommittedEvent, *validation.Report, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, validation.NewReport(), nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("opening ledger: %w", err)
	}
	defer f.Close()

	events, report, err := ReadCSV(f)
	if errors.Is(err, ErrEmptyInput) {
		return nil, validation.NewReport(), nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return events, report, nil
}

// SaveFile writes events to path, replacing it atomically.
func SaveFile(path string, events []ledger.CommittedEvent) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".ledger-*.csv")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteCSV(tmp, events); err != nil {
		tmp.Close()
		return fmt.Errorf("writing ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing ledger: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
