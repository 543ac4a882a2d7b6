package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/medledger/platform/pkg/common/models"
)

func TestContentDigestFieldBoundaries(t *testing.T) {
	// Length prefixing must keep ("ab","c") and ("a","bc") distinct; a
	// plain concatenation would collide.
	if ContentDigest("ab", "c") == ContentDigest("a", "bc") {
		t.Fatal("expected distinct digests for shifted field boundaries")
	}
	if ContentDigest("report", "") != ContentDigest("report", "") {
		t.Fatal("expected digest to be deterministic")
	}
}

func TestBlockHashDeterministic(t *testing.T) {
	author := uuid.New().String()
	h1 := BlockHash(GenesisPrevHash, ContentDigest("genesis", ""), 1700000000000, author, 0)
	h2 := BlockHash(GenesisPrevHash, ContentDigest("genesis", ""), 1700000000000, author, 0)
	if h1 != h2 {
		t.Fatal("expected identical inputs to hash identically")
	}

	h3 := BlockHash(GenesisPrevHash, ContentDigest("genesis", ""), 1700000000000, author, 1)
	if h1 == h3 {
		t.Fatal("expected index to change the hash")
	}
}

func TestHashForReproducesStoredHash(t *testing.T) {
	patient := uuid.New()
	ref := uuid.New()

	genesis := buildBlock(nil, patient, models.BlockTypeGenesis, nil, patient, "Alice", time.Now())
	next := buildBlock(&genesis, patient, models.BlockTypeReport, &ref, patient, "Alice", time.Now())

	for _, blk := range []models.Block{genesis, next} {
		if HashFor(blk) != blk.Hash {
			t.Fatalf("recomputed hash mismatch at index %d", blk.Index)
		}
	}

	if next.Index != 1 {
		t.Fatalf("expected index 1, got %d", next.Index)
	}
	if next.PrevHash != genesis.Hash {
		t.Fatal("expected next block to link to genesis hash")
	}
	if genesis.PrevHash != GenesisPrevHash {
		t.Fatalf("expected genesis sentinel, got %q", genesis.PrevHash)
	}
}
