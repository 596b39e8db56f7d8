package persistence

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/gowebpki/jcs"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// SnapshotVersion is bumped whenever the stored shape changes. Older
// snapshots are not migrated; they load as an empty cart.
const SnapshotVersion = 1

var (
	ErrCorrupt          = errors.New("snapshot is not valid JSON")
	ErrSchemaMismatch   = errors.New("snapshot does not match schema")
	ErrChecksumMismatch = errors.New("snapshot checksum mismatch")
)

//go:embed cart_snapshot.schema.json
var snapshotSchemaJSON string

var snapshotSchema = jsonschema.MustCompileString("cart_snapshot.schema.json", snapshotSchemaJSON)

type snapshot struct {
	Version  int               `json:"version"`
	Lines    []domain.CartLine `json:"lines"`
	Checksum string            `json:"checksum"`
}

// EncodeSnapshot serializes cart lines with a version and checksum.
func EncodeSnapshot(lines []domain.CartLine) ([]byte, error) {
	if lines == nil {
		lines = []domain.CartLine{}
	}
	sum, err := checksum(lines)
	if err != nil {
		return nil, err
	}
	return json.Marshal(snapshot{Version: SnapshotVersion, Lines: lines, Checksum: sum})
}

// DecodeSnapshot parses a stored snapshot. Any failure is reported as one of
// ErrCorrupt, ErrSchemaMismatch or ErrChecksumMismatch.
func DecodeSnapshot(raw []byte) ([]domain.CartLine, error) {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := snapshotSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}

	var s snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	seen := make(map[string]struct{}, len(s.Lines))
	for _, l := range s.Lines {
		if _, dup := seen[l.ProductID]; dup {
			return nil, fmt.Errorf("%w: duplicate product %q", ErrSchemaMismatch, l.ProductID)
		}
		seen[l.ProductID] = struct{}{}
	}

	sum, err := checksum(s.Lines)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if sum != s.Checksum {
		return nil, ErrChecksumMismatch
	}
	return s.Lines, nil
}

func checksum(lines []domain.CartLine) (string, error) {
	raw, err := json.Marshal(lines)
	if err != nil {
		return "", fmt.Errorf("marshal lines: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize lines: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
