package render

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"testing"

	"github.com/parquet-go/parquet-go"
)

func TestWriteParquetRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	columns := []string{"name", "id", "name", ""}
	rows := [][]any{
		{"Dupont", int64(1), "Jean", nil},
		{nil, int64(2), "Marie", 4.5},
	}
	if err := WriteParquet(&buf, columns, rows); err != nil {
		t.Fatalf("WriteParquet() error = %v", err)
	}

	file, err := parquet.OpenFile(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	if file.NumRows() != 2 {
		t.Fatalf("NumRows() = %d", file.NumRows())
	}
	var fields []string
	for _, field := range file.Schema().Fields() {
		fields = append(fields, field.Name())
		if !field.Optional() {
			t.Fatalf("field %q is not optional", field.Name())
		}
	}
	wantFields := []string{"column_4", "id", "name", "name_2"}
	if !reflect.DeepEqual(fields, wantFields) {
		t.Fatalf("fields = %v, want %v", fields, wantFields)
	}

	reader := parquet.NewReader(bytes.NewReader(buf.Bytes()))
	defer func() { _ = reader.Close() }()
	read := make([]parquet.Row, 2)
	n, err := reader.ReadRows(read)
	if err != nil && !errors.Is(err, io.EOF) {
		t.Fatalf("ReadRows() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("ReadRows() = %d", n)
	}

	first := read[0]
	if !first[0].IsNull() {
		t.Fatalf("column_4 = %v, want null", first[0])
	}
	if string(first[1].ByteArray()) != "1" || string(first[2].ByteArray()) != "Dupont" || string(first[3].ByteArray()) != "Jean" {
		t.Fatalf("first row = %v", first)
	}
	second := read[1]
	if !second[2].IsNull() || string(second[0].ByteArray()) != "4.5" {
		t.Fatalf("second row = %v", second)
	}
}

func TestWriteParquetRequiresColumns(t *testing.T) {
	if err := WriteParquet(&bytes.Buffer{}, nil, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestUniqueNames(t *testing.T) {
	got := uniqueNames([]string{"id", "id", "id_2", ""})
	want := []string{"id", "id_2", "id_2_2", "column_4"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("uniqueNames() = %v, want %v", got, want)
	}
}
