package sqlitestore

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/roach88/gridsync/internal/remote"
	"github.com/roach88/gridsync/internal/row"
)

// marshalFields converts row fields to canonical JSON TEXT for storage.
func marshalFields(f row.Fields) (string, error) {
	if f == nil {
		f = row.Fields{}
	}
	data, err := row.MarshalCanonical(f)
	if err != nil {
		return "", fmt.Errorf("marshal fields: %w", err)
	}
	return string(data), nil
}

// unmarshalFields converts stored JSON TEXT back to row fields.
func unmarshalFields(text string) (row.Fields, error) {
	var f row.Fields
	if err := json.Unmarshal([]byte(text), &f); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	if f == nil {
		f = row.Fields{}
	}
	return f, nil
}

// parseID maps a row identifier to the INTEGER primary key.
// Identifiers that are not integers cannot exist in this store.
func parseID(id row.ID) (int64, error) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return 0, remote.NotFound(id)
	}
	return n, nil
}

func formatID(n int64) row.ID {
	return row.ID(strconv.FormatInt(n, 10))
}
