package metadata

import (
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/google/uuid"

	"StableLedger/internal/fault"
)

func TestCommitmentRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	owner := uuid.New()
	positionID := sha256.Sum256([]byte("position-1"))

	meta := MintMetadata{Collateral: 1000, Debt: 400}
	if err := store.Put(owner, positionID, meta); err != nil {
		t.Fatalf("put: %v", err)
	}

	want := Commitment(meta, positionID)
	got, err := Verify(store, owner, positionID, want)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got != meta {
		t.Fatalf("expected %+v, got %+v", meta, got)
	}
}

func TestCommitmentChangesWithMetadata(t *testing.T) {
	positionID := sha256.Sum256([]byte("position-1"))
	base := Commitment(MintMetadata{Collateral: 1000, Debt: 400}, positionID)

	mutations := []MintMetadata{
		{Collateral: 1001, Debt: 400},
		{Collateral: 1000, Debt: 401},
		{Collateral: 400, Debt: 1000},
	}
	for _, m := range mutations {
		if Commitment(m, positionID) == base {
			t.Fatalf("commitment collision for %+v", m)
		}
	}

	otherID := sha256.Sum256([]byte("position-2"))
	if Commitment(MintMetadata{Collateral: 1000, Debt: 400}, otherID) == base {
		t.Fatal("commitment ignores position id")
	}
}

func TestVerifyRejectsTamperedStore(t *testing.T) {
	store := NewMemoryStore()
	owner := uuid.New()
	positionID := sha256.Sum256([]byte("position-1"))

	meta := MintMetadata{Collateral: 1000, Debt: 400}
	want := Commitment(meta, positionID)

	// Tampered private record: debt reduced without updating the commitment.
	if err := store.Put(owner, positionID, MintMetadata{Collateral: 1000, Debt: 100}); err != nil {
		t.Fatalf("put: %v", err)
	}

	if _, err := Verify(store, owner, positionID, want); !errors.Is(err, fault.ErrPrecondition) {
		t.Fatalf("expected precondition fault, got %v", err)
	}
}

func TestVerifyMissingMetadata(t *testing.T) {
	store := NewMemoryStore()
	positionID := sha256.Sum256([]byte("missing"))

	if _, err := Verify(store, uuid.New(), positionID, [32]byte{}); !errors.Is(err, fault.ErrPrecondition) {
		t.Fatalf("expected precondition fault, got %v", err)
	}
}
