package report

import (
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"

	"github.com/VanDung-dev/teller-bank/engine"
)

// WriteIPC writes record to w as an Arrow IPC stream.
func WriteIPC(w io.Writer, record arrow.Record) error {
	writer := ipc.NewWriter(w, ipc.WithSchema(record.Schema()))
	defer writer.Close()

	if err := writer.Write(record); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}

	return nil
}

// ReadIPC reads every record from an Arrow IPC stream. The caller must
// Release each record.
func ReadIPC(r io.Reader) ([]arrow.Record, error) {
	reader, err := ipc.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create reader: %w", err)
	}
	defer reader.Release()

	var records []arrow.Record
	for reader.Next() {
		record := reader.Record()
		record.Retain()
		records = append(records, record)
	}

	if reader.Err() != nil {
		for _, rec := range records {
			rec.Release()
		}
		return nil, reader.Err()
	}

	return records, nil
}

// WriteFile converts events and writes them to path as an Arrow IPC stream.
func WriteFile(path string, events []engine.Event) error {
	record, err := NewConverter().EventsToRecord(events)
	if err != nil {
		return err
	}
	defer record.Release()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}

	if err := WriteIPC(f, record); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
