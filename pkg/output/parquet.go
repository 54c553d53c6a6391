package output

import (
	"fmt"
	"io"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"

	"github.com/ccollicutt/waitlens/pkg/reasons"
)

var timestampType = &arrow.TimestampType{Unit: arrow.Millisecond, TimeZone: "UTC"}

// reasonsSchema mirrors reasons.Header.
func reasonsSchema() *arrow.Schema {
	fields := []arrow.Field{
		{Name: reasons.HeaderCase, Type: arrow.BinaryTypes.String},
		{Name: reasons.HeaderSourceActivity, Type: arrow.BinaryTypes.String},
		{Name: reasons.HeaderDestinationActivity, Type: arrow.BinaryTypes.String},
		{Name: reasons.HeaderSourceResource, Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: reasons.HeaderDestinationResource, Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: reasons.HeaderStart, Type: timestampType, Nullable: true},
		{Name: reasons.HeaderEnd, Type: timestampType},
	}
	for _, c := range reasons.Columns() {
		fields = append(fields, arrow.Field{
			Name:     string(c),
			Type:     arrow.PrimitiveTypes.Float64,
			Nullable: c == reasons.ColumnSimple,
		})
	}
	return arrow.NewSchema(fields, nil)
}

// WriteParquet writes a reasons report as a single-row-group Parquet file.
// Unreconciled rows store a null wt_simple.
func WriteParquet(w io.Writer, report *reasons.Report) error {
	allocator := memory.NewGoAllocator()
	schema := reasonsSchema()

	builder := array.NewRecordBuilder(allocator, schema)
	defer builder.Release()

	appendString := func(i int, v string, nullable bool) {
		b := builder.Field(i).(*array.StringBuilder)
		if nullable && v == "" {
			b.AppendNull()
			return
		}
		b.Append(v)
	}

	for _, row := range report.Rows {
		appendString(0, row.CaseID, false)
		appendString(1, row.SourceActivity, false)
		appendString(2, row.DestinationActivity, false)
		appendString(3, row.SourceResource, true)
		appendString(4, row.DestinationResource, true)

		start := builder.Field(5).(*array.TimestampBuilder)
		if row.Start.IsZero() {
			start.AppendNull()
		} else {
			start.Append(arrow.Timestamp(row.Start.UnixMilli()))
		}
		builder.Field(6).(*array.TimestampBuilder).Append(arrow.Timestamp(row.End.UnixMilli()))

		for j, c := range reasons.Columns() {
			b := builder.Field(7 + j).(*array.Float64Builder)
			v, err := row.Value(c)
			if err != nil {
				b.AppendNull()
				continue
			}
			b.Append(v)
		}
	}

	record := builder.NewRecord()
	defer record.Release()

	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithDictionaryDefault(true),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	writer, err := pqarrow.NewFileWriter(schema, w, writerProps, arrowProps)
	if err != nil {
		return fmt.Errorf("creating parquet writer: %w", err)
	}
	if err := writer.Write(record); err != nil {
		_ = writer.Close()
		return fmt.Errorf("writing parquet record: %w", err)
	}
	return writer.Close()
}
