package ledger

import "github.com/medledger/platform/pkg/common/models"

// Verification failure reasons.
const (
	ReasonInvalidGenesis   = "Invalid genesis"
	ReasonPrevHashMismatch = "Prev hash mismatch"
	ReasonHashMismatch     = "Hash mismatch"
	ReasonIndexOutOfSeq    = "Index out of sequence"
)

type Failure struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

type Report struct {
	OK       bool      `json:"ok"`
	Failures []Failure `json:"failures"`
}

// Verify audits one patient's ordered block sequence and reports every
// violation it finds. Auditing a tampered chain must itself succeed, so
// Verify never returns an error; OK is true iff no failures were found.
//
// Checks per block:
//   - index 0 must be a genesis block carrying the sentinel prev hash;
//   - indices must run 0,1,2,... without gaps or duplicates;
//   - each block's prev hash must equal the preceding block's hash;
//   - each block's stored hash must match a recomputation from its stored
//     fields, which catches in-place content edits that a linkage-only
//     check would miss.
func Verify(blocks []models.Block) Report {
	report := Report{OK: true, Failures: []Failure{}}

	fail := func(index int, reason string) {
		report.OK = false
		report.Failures = append(report.Failures, Failure{Index: index, Reason: reason})
	}

	for i, blk := range blocks {
		if i == 0 {
			if blk.PayloadType != models.BlockTypeGenesis || blk.PrevHash != GenesisPrevHash {
				fail(blk.Index, ReasonInvalidGenesis)
			}
		} else if blk.PrevHash != blocks[i-1].Hash {
			fail(blk.Index, ReasonPrevHashMismatch)
		}

		if blk.Index != i {
			fail(blk.Index, ReasonIndexOutOfSeq)
		}

		if HashFor(blk) != blk.Hash {
			fail(blk.Index, ReasonHashMismatch)
		}
	}

	return report
}
