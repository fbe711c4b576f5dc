// Package export turns a query result into a parquet object, optionally
// uploaded to an S3-compatible bucket.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/tickerchat/tickerchat/internal/store"
)

type EncodeResult struct {
	Data        []byte
	RecordCount int64
}

type parquetRow struct {
	RowIndex    int64  `parquet:"row_index"`
	PayloadJSON string `parquet:"payload_json"`
}

// Encode writes each result row as a JSON payload keyed by column name. The
// row-index column preserves the result order independent of reader sorting.
func Encode(result store.Result) (EncodeResult, error) {
	maps := result.RowMaps()
	rows := make([]parquetRow, 0, len(maps))
	for i, m := range maps {
		payload, err := json.Marshal(m)
		if err != nil {
			return EncodeResult{}, fmt.Errorf("encode row %d: %w", i, err)
		}
		rows = append(rows, parquetRow{RowIndex: int64(i), PayloadJSON: string(payload)})
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[parquetRow](buf)
	if len(rows) > 0 {
		if _, err := writer.Write(rows); err != nil {
			return EncodeResult{}, fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return EncodeResult{}, fmt.Errorf("close parquet writer: %w", err)
	}

	return EncodeResult{Data: buf.Bytes(), RecordCount: int64(len(rows))}, nil
}
