package store

import (
	"fmt"

	"github.com/roach88/relstore/internal/value"
)

// marshalRecord converts a record to canonical JSON TEXT plus its hash.
func marshalRecord(rec value.Object) (data string, hash string, err error) {
	canonical, err := value.MarshalCanonical(rec)
	if err != nil {
		return "", "", fmt.Errorf("marshal record: %w", err)
	}
	hash, err = value.Hash(value.DomainRecord, rec)
	if err != nil {
		return "", "", err
	}
	return string(canonical), hash, nil
}

// unmarshalRecord parses stored JSON TEXT. Integers stay Int, so keys
// beyond 2^53 survive the round trip.
func unmarshalRecord(data string) (value.Object, error) {
	if data == "" {
		return value.Object{}, nil
	}
	rec, err := value.UnmarshalObject([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return rec, nil
}
