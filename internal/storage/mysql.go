package storage

import (
	"database/sql"
	"encoding/json"
)

// MySQLClient wraps direct SQL access for the automation and webhook tables.
type MySQLClient struct {
	db *sql.DB
}

// NewMySQLClient wires a sql.DB; pass a configured instance from main.
func NewMySQLClient(db *sql.DB) *MySQLClient {
	return &MySQLClient{db: db}
}

func jsonRawMessage(value string) json.RawMessage {
	if value == "" {
		return nil
	}
	return json.RawMessage(value)
}

// marshalJSONColumn serializes a value for a JSON text column. Nil input
// produces an empty string so the column stays NULL-ish and round-trips.
func marshalJSONColumn(v interface{}) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func unmarshalStringSlice(value sql.NullString) []string {
	if !value.Valid || value.String == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(value.String), &out); err != nil {
		return nil
	}
	return out
}

func unmarshalStringMap(value sql.NullString) map[string]string {
	if !value.Valid || value.String == "" {
		return nil
	}
	var out map[string]string
	if err := json.Unmarshal([]byte(value.String), &out); err != nil {
		return nil
	}
	return out
}
