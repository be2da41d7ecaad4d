package tabular

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/array"
	"github.com/apache/arrow/go/v15/arrow/memory"
	"github.com/apache/arrow/go/v15/parquet"
	"github.com/apache/arrow/go/v15/parquet/compress"
	"github.com/apache/arrow/go/v15/parquet/file"
	"github.com/apache/arrow/go/v15/parquet/pqarrow"

	"github.com/Veraticus/unitlink/internal/model"
)

const readChunkSize = 4096

func readParquet(ctx context.Context, path string) (*model.RawTable, error) {
	rdr, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = rdr.Close() }()

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{BatchSize: readChunkSize}, memory.DefaultAllocator)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet schema of %s: %w", path, err)
	}
	tbl, err := fr.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	defer tbl.Release()

	schema := tbl.Schema()
	t := &model.RawTable{Name: tableName(path), Columns: make([]string, schema.NumFields())}
	for i, f := range schema.Fields() {
		t.Columns[i] = f.Name
	}

	tr := array.NewTableReader(tbl, readChunkSize)
	defer tr.Release()
	for tr.Next() {
		rec := tr.Record()
		for r := 0; r < int(rec.NumRows()); r++ {
			row := make([]string, rec.NumCols())
			for c := range row {
				col := rec.Column(c)
				if col.IsNull(r) {
					continue
				}
				row[c] = col.ValueStr(r)
			}
			t.Rows = append(t.Rows, row)
		}
	}
	if err := tr.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return t, nil
}

// writeParquet writes one zstd-compressed record batch built by fill. The
// file is written next to path and renamed into place.
func writeParquet(path string, schema *arrow.Schema, fill func(b *array.RecordBuilder)) (err error) {
	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()
	fill(b)
	rec := b.NewRecord()
	defer rec.Release()

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	tmpPath := path + ".tmp"
	// #nosec G304 - output path is built from the configured output directory
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmpPath, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Zstd))
	w, err := pqarrow.NewFileWriter(schema, f, props, pqarrow.DefaultWriterProps())
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	if err := w.Write(rec); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	// Closing the writer also closes f.
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish %s: %w", path, err)
	}
	return os.Rename(tmpPath, path)
}

func field(name string, typ arrow.DataType) arrow.Field {
	return arrow.Field{Name: name, Type: typ}
}

func appendString(b *array.RecordBuilder, i int, v string) {
	b.Field(i).(*array.StringBuilder).Append(v)
}

func appendFloat(b *array.RecordBuilder, i int, v float64) {
	b.Field(i).(*array.Float64Builder).Append(v)
}

func appendInt(b *array.RecordBuilder, i int, v int) {
	b.Field(i).(*array.Int64Builder).Append(int64(v))
}
