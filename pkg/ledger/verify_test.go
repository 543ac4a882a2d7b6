package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/medledger/platform/pkg/common/models"
)

func testChain(t *testing.T, payloadTypes ...string) []models.Block {
	t.Helper()
	patient := uuid.New()
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	var chain []models.Block
	genesis := buildBlock(nil, patient, models.BlockTypeGenesis, nil, patient, "Carol", now)
	chain = append(chain, genesis)
	for i, pt := range payloadTypes {
		ref := uuid.New()
		blk := buildBlock(&chain[len(chain)-1], patient, pt, &ref, patient, "Carol", now.Add(time.Duration(i+1)*time.Second))
		chain = append(chain, blk)
	}
	return chain
}

func hasFailure(rep Report, index int, reason string) bool {
	for _, f := range rep.Failures {
		if f.Index == index && f.Reason == reason {
			return true
		}
	}
	return false
}

func TestVerifyValidChain(t *testing.T) {
	chain := testChain(t, models.BlockTypeReport, models.BlockTypeAccessGranted, models.BlockTypeUpdate)
	rep := Verify(chain)
	if !rep.OK {
		t.Fatalf("expected valid chain, got failures %v", rep.Failures)
	}
}

func TestVerifyEmptyChain(t *testing.T) {
	if rep := Verify(nil); !rep.OK {
		t.Fatalf("expected empty chain to verify, got %v", rep.Failures)
	}
}

func TestVerifyBadGenesis(t *testing.T) {
	chain := testChain(t, models.BlockTypeReport)
	chain[0].PrevHash = chain[1].Hash

	rep := Verify(chain)
	if rep.OK {
		t.Fatal("expected verification failure")
	}
	if !hasFailure(rep, 0, ReasonInvalidGenesis) {
		t.Fatalf("expected invalid genesis at index 0, got %v", rep.Failures)
	}
}

func TestVerifyContentTamper(t *testing.T) {
	chain := testChain(t, models.BlockTypeReport, models.BlockTypeUpdate)
	other := uuid.New()
	chain[1].PayloadRef = &other

	rep := Verify(chain)
	if rep.OK {
		t.Fatal("expected verification failure")
	}
	if !hasFailure(rep, 1, ReasonHashMismatch) {
		t.Fatalf("expected hash mismatch at index 1, got %v", rep.Failures)
	}
	// Linkage was not touched, so the neighbor must stay clean.
	if hasFailure(rep, 2, ReasonPrevHashMismatch) {
		t.Fatalf("did not expect linkage failure at index 2, got %v", rep.Failures)
	}
}

func TestVerifyReportsEveryFailure(t *testing.T) {
	chain := testChain(t, models.BlockTypeReport, models.BlockTypeUpdate, models.BlockTypeUpdate)
	// Rewriting a stored hash breaks the block itself and the link from
	// its successor. Both must surface in one pass.
	chain[1].Hash = HashFor(chain[0])

	rep := Verify(chain)
	if rep.OK {
		t.Fatal("expected verification failure")
	}
	if !hasFailure(rep, 1, ReasonHashMismatch) {
		t.Fatalf("expected hash mismatch at index 1, got %v", rep.Failures)
	}
	if !hasFailure(rep, 2, ReasonPrevHashMismatch) {
		t.Fatalf("expected prev hash mismatch at index 2, got %v", rep.Failures)
	}
}

func TestVerifyIndexOutOfSequence(t *testing.T) {
	chain := testChain(t, models.BlockTypeReport, models.BlockTypeUpdate, models.BlockTypeUpdate)
	// Drop a middle block, as a hostile DELETE would.
	chain = append(chain[:2], chain[3:]...)

	rep := Verify(chain)
	if rep.OK {
		t.Fatal("expected verification failure")
	}
	if !hasFailure(rep, 3, ReasonIndexOutOfSeq) {
		t.Fatalf("expected index out of sequence, got %v", rep.Failures)
	}
}
