// Package metadata implements the commit-reveal store for private position
// data. The public ledger never records raw collateral/debt values — only a
// commitment hash. The private pair lives here, keyed by the owning
// principal and position id, and must reproduce the same hash on every
// access or the operation is rejected.
package metadata

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"StableLedger/internal/fault"
)

// MintMetadata is the private collateral/debt pair for one position.
type MintMetadata struct {
	Collateral int64
	Debt       int64
}

// CanonicalBytes returns the deterministic serialization used for hashing.
func (m MintMetadata) CanonicalBytes() []byte {
	buf := make([]byte, 0, 16)
	buf = appendInt64LE(buf, m.Collateral)
	buf = appendInt64LE(buf, m.Debt)
	return buf
}

func appendInt64LE(buf []byte, v int64) []byte {
	return append(buf,
		byte(v),
		byte(v>>8),
		byte(v>>16),
		byte(v>>24),
		byte(v>>32),
		byte(v>>40),
		byte(v>>48),
		byte(v>>56),
	)
}

// Commitment computes SHA-256(metadata || positionID): the hash bound to the
// public Depositor record for tamper detection.
func Commitment(meta MintMetadata, positionID [32]byte) [32]byte {
	h := sha256.New()
	h.Write(meta.CanonicalBytes())
	h.Write(positionID[:])

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Store is the external private-metadata collaborator.
type Store interface {
	Get(owner uuid.UUID, positionID [32]byte) (MintMetadata, error)
	Put(owner uuid.UUID, positionID [32]byte, meta MintMetadata) error
}

type storeKey struct {
	owner      uuid.UUID
	positionID [32]byte
}

// MemoryStore is the in-process Store used by the engine and tests.
type MemoryStore struct {
	entries map[storeKey]MintMetadata
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[storeKey]MintMetadata)}
}

func (s *MemoryStore) Get(owner uuid.UUID, positionID [32]byte) (MintMetadata, error) {
	meta, ok := s.entries[storeKey{owner: owner, positionID: positionID}]
	if !ok {
		return MintMetadata{}, fmt.Errorf("%w: no metadata for position %x", fault.ErrPrecondition, positionID[:4])
	}
	return meta, nil
}

func (s *MemoryStore) Put(owner uuid.UUID, positionID [32]byte, meta MintMetadata) error {
	s.entries[storeKey{owner: owner, positionID: positionID}] = meta
	return nil
}

// Entry is one private record, exported for snapshot capture.
type Entry struct {
	Owner      uuid.UUID
	PositionID [32]byte
	Meta       MintMetadata
}

// Entries returns every record sorted by position id then owner, so
// snapshot serialization is deterministic.
func (s *MemoryStore) Entries() []Entry {
	out := make([]Entry, 0, len(s.entries))
	for key, meta := range s.entries {
		out = append(out, Entry{Owner: key.owner, PositionID: key.positionID, Meta: meta})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := bytes.Compare(out[i].PositionID[:], out[j].PositionID[:]); c != 0 {
			return c < 0
		}
		return bytes.Compare(out[i].Owner[:], out[j].Owner[:]) < 0
	})
	return out
}

// RestoreEntries loads records captured by Entries.
func (s *MemoryStore) RestoreEntries(entries []Entry) {
	for _, e := range entries {
		s.entries[storeKey{owner: e.Owner, positionID: e.PositionID}] = e.Meta
	}
}

// Verify fetches the private metadata and checks it against the expected
// commitment. A mismatch means the private store was tampered with (or is
// stale) and the mutation must be rejected.
func Verify(s Store, owner uuid.UUID, positionID [32]byte, want [32]byte) (MintMetadata, error) {
	meta, err := s.Get(owner, positionID)
	if err != nil {
		return MintMetadata{}, err
	}

	if Commitment(meta, positionID) != want {
		return MintMetadata{}, fmt.Errorf("%w: metadata commitment mismatch for position %x",
			fault.ErrPrecondition, positionID[:4])
	}
	return meta, nil
}
