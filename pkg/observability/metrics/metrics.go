package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	ledgerAppendsTotal  atomic.Int64
	genesisBlocksTotal  atomic.Int64
	verifyRunsTotal     atomic.Int64
	verifyFailuresTotal atomic.Int64
	recordsCreatedTotal atomic.Int64
	authFailuresTotal   atomic.Int64
	phiDetectionsTotal  atomic.Int64
	grantsIssuedTotal   atomic.Int64
	grantsRevokedTotal  atomic.Int64
	blobsStoredTotal    atomic.Int64
)

func IncLedgerAppend(payloadType string) {
	ledgerAppendsTotal.Add(1)
	if payloadType == "genesis" {
		genesisBlocksTotal.Add(1)
	}
}

func ObserveVerification(failures int) {
	verifyRunsTotal.Add(1)
	verifyFailuresTotal.Add(int64(failures))
}

func IncRecordCreated()      { recordsCreatedTotal.Add(1) }
func IncAuthFailure()        { authFailuresTotal.Add(1) }
func IncPHIDetections(n int) { phiDetectionsTotal.Add(int64(n)) }
func IncGrantIssued()        { grantsIssuedTotal.Add(1) }
func IncGrantRevoked()       { grantsRevokedTotal.Add(1) }
func IncBlobStored()         { blobsStoredTotal.Add(1) }

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeGauge(w, "medledger_ledger_appends_total", "Blocks appended since process start.", ledgerAppendsTotal.Load())
	writeGauge(w, "medledger_ledger_genesis_blocks_total", "Genesis blocks created since process start.", genesisBlocksTotal.Load())
	writeGauge(w, "medledger_ledger_verify_runs_total", "Chain verification runs since process start.", verifyRunsTotal.Load())
	writeGauge(w, "medledger_ledger_verify_failures_total", "Verification failures reported since process start.", verifyFailuresTotal.Load())
	writeGauge(w, "medledger_records_created_total", "Record items persisted since process start.", recordsCreatedTotal.Load())
	writeGauge(w, "medledger_auth_failures_total", "Failed authentication attempts since process start.", authFailuresTotal.Load())
	writeGauge(w, "medledger_phi_detections_total", "PHI patterns masked in free text since process start.", phiDetectionsTotal.Load())
	writeGauge(w, "medledger_access_grants_issued_total", "Access grants issued since process start.", grantsIssuedTotal.Load())
	writeGauge(w, "medledger_access_grants_revoked_total", "Access revocations since process start.", grantsRevokedTotal.Load())
	writeGauge(w, "medledger_blobs_stored_total", "Report blobs stored since process start.", blobsStoredTotal.Load())
}

func writeGauge(w http.ResponseWriter, name, help string, value int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s gauge\n", name)
	fmt.Fprintf(w, "%s %d\n", name, value)
}
