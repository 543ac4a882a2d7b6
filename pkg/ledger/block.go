package ledger

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/medledger/platform/pkg/common/models"
)

// GenesisPrevHash is the sentinel prev-hash of every chain's index-0 block.
const GenesisPrevHash = "GENESIS"

// writeField writes a length-prefixed field into the running digest.
// Length prefixing keeps field boundaries unambiguous, so no delimiter
// character can collide with field contents.
func writeField(h hash.Hash, field string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(field)))
	h.Write(n[:])
	h.Write([]byte(field))
}

// ContentDigest hashes a block's payload description independent of its
// chain position. An absent payload ref is encoded as the empty string.
func ContentDigest(payloadType string, payloadRef string) string {
	h := sha256.New()
	writeField(h, payloadType)
	writeField(h, payloadRef)
	return hex.EncodeToString(h.Sum(nil))
}

// BlockHash computes a block hash over the ordered fields that pin the block
// to its position and content: prev hash, content digest, timestamp
// (epoch millis), author and index.
func BlockHash(prevHash, contentDigest string, timestampMillis int64, authorID string, index int) string {
	h := sha256.New()
	writeField(h, prevHash)
	writeField(h, contentDigest)
	writeField(h, strconv.FormatInt(timestampMillis, 10))
	writeField(h, authorID)
	writeField(h, strconv.Itoa(index))
	return hex.EncodeToString(h.Sum(nil))
}

// HashFor recomputes a block's hash from its stored fields. Strict
// verification compares this against the stored hash to catch content
// tampering, not just broken linkage.
func HashFor(b models.Block) string {
	ref := ""
	if b.PayloadRef != nil {
		ref = b.PayloadRef.String()
	}
	digest := ContentDigest(b.PayloadType, ref)
	return BlockHash(b.PrevHash, digest, b.Timestamp.UnixMilli(), b.AuthorID.String(), b.Index)
}

// buildBlock constructs the next block of a chain given its current tail
// (nil for an empty chain).
func buildBlock(tail *models.Block, patientID uuid.UUID, payloadType string, payloadRef *uuid.UUID, authorID uuid.UUID, authorName string, now time.Time) models.Block {
	index := 0
	prevHash := GenesisPrevHash
	if tail != nil {
		index = tail.Index + 1
		prevHash = tail.Hash
	}

	// Millisecond precision survives the timestamptz round trip, so the
	// stored timestamp always reproduces the stored hash.
	ts := now.UTC().Truncate(time.Millisecond)

	ref := ""
	if payloadRef != nil {
		ref = payloadRef.String()
	}

	return models.Block{
		ID:          uuid.New(),
		PatientID:   patientID,
		Index:       index,
		PrevHash:    prevHash,
		Hash:        BlockHash(prevHash, ContentDigest(payloadType, ref), ts.UnixMilli(), authorID.String(), index),
		Timestamp:   ts,
		PayloadType: payloadType,
		PayloadRef:  payloadRef,
		AuthorID:    authorID,
		AuthorName:  authorName,
	}
}
