// Package tabular moves record sets in and out of files: CSV and Parquet
// inputs, Parquet run outputs and the JSON run summary.
package tabular

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Veraticus/unitlink/internal/common"
	"github.com/Veraticus/unitlink/internal/model"
)

// Format is a supported file format.
type Format string

// Supported formats.
const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// DetectFormat picks the format from the file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".parquet", ".pq":
		return FormatParquet, nil
	}
	return "", fmt.Errorf("%s: %w (expected .csv or .parquet)", path, common.ErrUnsupportedInput)
}

// ReadTable loads a whole file into a RawTable. Every cell is kept as text;
// interpretation is left to the normalizer.
func ReadTable(ctx context.Context, path string) (*model.RawTable, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	var t *model.RawTable
	switch format {
	case FormatCSV:
		t, err = readCSV(path)
	case FormatParquet:
		t, err = readParquet(ctx, path)
	}
	if err != nil {
		return nil, err
	}
	if len(t.Rows) == 0 {
		return nil, fmt.Errorf("%s: %w", path, common.ErrEmptyInput)
	}
	return t, nil
}
