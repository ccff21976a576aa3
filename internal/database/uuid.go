package database

import (
	"github.com/google/uuid"
)

// UUIDStrings converts ids to their text form for PostgreSQL array parameters
// (`= ANY($1::uuid[])` with pq.Array).
func UUIDStrings(ids []uuid.UUID) []string {
	result := make([]string, len(ids))
	for i, id := range ids {
		result[i] = id.String()
	}
	return result
}

// MySQLUUID returns the BINARY(16) form of id used by MySQL tables.
func MySQLUUID(id uuid.UUID) []byte {
	b, _ := id.MarshalBinary()
	return b
}

// MySQLNullUUID returns the BINARY(16) form of id, or nil for NULL.
func MySQLNullUUID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return MySQLUUID(*id)
}

// MySQLUUIDArgs converts ids to query arguments for an IN list built by MySQLInList.
func MySQLUUIDArgs(ids []uuid.UUID) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = MySQLUUID(id)
	}
	return args
}

// ParseMySQLUUID parses a BINARY(16) column value.
func ParseMySQLUUID(b []byte) (uuid.UUID, error) {
	var id uuid.UUID
	err := id.UnmarshalBinary(b)
	return id, err
}

// ParseMySQLNullUUID parses a nullable BINARY(16) column value.
func ParseMySQLNullUUID(b []byte) (*uuid.UUID, error) {
	if b == nil {
		return nil, nil
	}
	id, err := ParseMySQLUUID(b)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
