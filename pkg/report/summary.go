package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/dustin/go-humanize"

	"github.com/TFMV/planbench/pkg/models"
)

// NotAvailable is printed for metric fields no signal was found for.
const NotAvailable = "N/A"

// Formats accepted by Output.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatCSV   = "csv"
	FormatArrow = "arrow"
)

// Formats lists the supported output formats.
var Formats = []string{FormatTable, FormatJSON, FormatCSV, FormatArrow}

// Output writes records to w in the given format.
func Output(records []models.ComparisonRecord, format string, w io.Writer) error {
	switch strings.ToLower(format) {
	case FormatTable, "":
		return WriteTable(records, w)
	case FormatJSON:
		return WriteJSON(records, w)
	case FormatCSV:
		return WriteCSV(records, w)
	case FormatArrow:
		return WriteArrow(records, w)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// EngineName returns the display name of an engine verdict.
func EngineName(e models.Engine) string {
	switch e {
	case models.EngineRelational:
		return "PostgreSQL"
	case models.EngineDocument:
		return "MongoDB"
	default:
		return NotAvailable
	}
}

// WriteTable renders the summary table followed by per-query detail lines.
func WriteTable(records []models.ComparisonRecord, w io.Writer) error {
	fmt.Fprintf(w, "=== Benchmark Results Summary ===\n\n")

	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintf(tw, "Query\tPG Time\tPG Rows\tPG Examined\tMongo Time\tMongo Rows\tMongo Examined\tFaster\tSpeedup\n")
	fmt.Fprintf(tw, "-----\t-------\t-------\t-----------\t----------\t----------\t--------------\t------\t-------\n")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.QueryName,
			formatMs(r.Relational.ExecutionTimeMs),
			formatCount(r.Relational.RowsReturned),
			formatCount(r.Relational.RowsExamined),
			formatMs(r.Document.ExecutionTimeMs),
			formatCount(r.Document.RowsReturned),
			formatCount(r.Document.RowsExamined),
			EngineName(r.FasterEngine),
			formatSpeedup(r.SpeedupFactor),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, r := range records {
		fmt.Fprintf(w, "\nResults for %s:\n", r.QueryName)
		if r.RelationalError != "" {
			fmt.Fprintf(w, "  PostgreSQL: error: %s\n", r.RelationalError)
		} else {
			fmt.Fprintf(w, "  PostgreSQL: %s rows returned, %s rows examined\n",
				formatCount(r.Relational.RowsReturned), formatCount(r.Relational.RowsExamined))
		}
		if r.DocumentError != "" {
			fmt.Fprintf(w, "  MongoDB: error: %s\n", r.DocumentError)
		} else {
			fmt.Fprintf(w, "  MongoDB: %s documents returned, %s documents examined\n",
				formatCount(r.Document.RowsReturned), formatCount(r.Document.RowsExamined))
		}
	}
	return nil
}

// WriteJSON writes records as an indented JSON array. Absent fields are null.
func WriteJSON(records []models.ComparisonRecord, w io.Writer) error {
	if records == nil {
		records = []models.ComparisonRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

var csvHeader = []string{
	"query", "description",
	"pg_time_ms", "pg_rows_returned", "pg_rows_examined",
	"mongo_time_ms", "mongo_rows_returned", "mongo_rows_examined",
	"faster_engine", "speedup_factor", "pg_error", "mongo_error",
}

// WriteCSV writes records in CSV format. Absent fields are empty cells.
func WriteCSV(records []models.ComparisonRecord, w io.Writer) error {
	c := csv.NewWriter(w)
	if err := c.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.QueryName,
			r.Description,
			csvFloat(r.Relational.ExecutionTimeMs),
			csvInt(r.Relational.RowsReturned),
			csvInt(r.Relational.RowsExamined),
			csvFloat(r.Document.ExecutionTimeMs),
			csvInt(r.Document.RowsReturned),
			csvInt(r.Document.RowsExamined),
			r.FasterEngine.String(),
			csvFloat(r.SpeedupFactor),
			r.RelationalError,
			r.DocumentError,
		}
		if err := c.Write(row); err != nil {
			return err
		}
	}
	c.Flush()
	return c.Error()
}

// RecordSchema is the Arrow schema of comparison records. Metric columns are
// nullable; null means no signal.
var RecordSchema = arrow.NewSchema([]arrow.Field{
	{Name: "query", Type: arrow.BinaryTypes.String},
	{Name: "description", Type: arrow.BinaryTypes.String},
	{Name: "pg_time_ms", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "pg_rows_returned", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	{Name: "pg_rows_examined", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	{Name: "mongo_time_ms", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "mongo_rows_returned", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	{Name: "mongo_rows_examined", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	{Name: "faster_engine", Type: arrow.BinaryTypes.String},
	{Name: "speedup_factor", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "pg_error", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "mongo_error", Type: arrow.BinaryTypes.String, Nullable: true},
}, nil)

// WriteArrow writes records as a single-batch Arrow IPC stream.
func WriteArrow(records []models.ComparisonRecord, w io.Writer) error {
	builder := array.NewRecordBuilder(memory.NewGoAllocator(), RecordSchema)
	defer builder.Release()

	for _, r := range records {
		builder.Field(0).(*array.StringBuilder).Append(r.QueryName)
		builder.Field(1).(*array.StringBuilder).Append(r.Description)
		appendFloat(builder.Field(2).(*array.Float64Builder), r.Relational.ExecutionTimeMs)
		appendInt(builder.Field(3).(*array.Int64Builder), r.Relational.RowsReturned)
		appendInt(builder.Field(4).(*array.Int64Builder), r.Relational.RowsExamined)
		appendFloat(builder.Field(5).(*array.Float64Builder), r.Document.ExecutionTimeMs)
		appendInt(builder.Field(6).(*array.Int64Builder), r.Document.RowsReturned)
		appendInt(builder.Field(7).(*array.Int64Builder), r.Document.RowsExamined)
		builder.Field(8).(*array.StringBuilder).Append(r.FasterEngine.String())
		appendFloat(builder.Field(9).(*array.Float64Builder), r.SpeedupFactor)
		appendString(builder.Field(10).(*array.StringBuilder), r.RelationalError)
		appendString(builder.Field(11).(*array.StringBuilder), r.DocumentError)
	}

	record := builder.NewRecord()
	defer record.Release()

	iw := ipc.NewWriter(w, ipc.WithSchema(RecordSchema))
	if err := iw.Write(record); err != nil {
		_ = iw.Close()
		return err
	}
	return iw.Close()
}

func formatMs(v *float64) string {
	if v == nil {
		return NotAvailable
	}
	return fmt.Sprintf("%.2fms", *v)
}

func formatCount(v *int64) string {
	if v == nil {
		return NotAvailable
	}
	return humanize.Comma(*v)
}

func formatSpeedup(v *float64) string {
	if v == nil {
		return NotAvailable
	}
	return fmt.Sprintf("%.2fx", *v)
}

func csvFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func csvInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func appendFloat(b *array.Float64Builder, v *float64) {
	if v == nil {
		b.AppendNull()
		return
	}
	b.Append(*v)
}

func appendInt(b *array.Int64Builder, v *int64) {
	if v == nil {
		b.AppendNull()
		return
	}
	b.Append(*v)
}

func appendString(b *array.StringBuilder, v string) {
	if v == "" {
		b.AppendNull()
		return
	}
	b.Append(v)
}
