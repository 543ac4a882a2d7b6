package records

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/medledger/platform/pkg/common/models"
	"github.com/medledger/platform/pkg/phi"
)

type memRecords struct {
	items []models.RecordItem
}

func (m *memRecords) Create(_ context.Context, rec *models.RecordItem) error {
	m.items = append(m.items, *rec)
	return nil
}

func (m *memRecords) ListByPatient(_ context.Context, patientID uuid.UUID) ([]models.RecordItem, error) {
	var out []models.RecordItem
	for _, it := range m.items {
		if it.PatientID == patientID {
			out = append(out, it)
		}
	}
	return out, nil
}

type memBlobs struct {
	stored [][]byte
}

func (m *memBlobs) Put(_ context.Context, data []byte, _ string) (uuid.UUID, error) {
	m.stored = append(m.stored, append([]byte(nil), data...))
	return uuid.New(), nil
}

type staticAccess struct {
	granted map[[2]uuid.UUID]bool
}

func (s *staticAccess) IsGranted(_ context.Context, patientID, doctorID uuid.UUID) (bool, error) {
	return s.granted[[2]uuid.UUID{patientID, doctorID}], nil
}

type recordingChain struct {
	appends []models.Block
}

func (r *recordingChain) Append(_ context.Context, patientID uuid.UUID, payloadType string, payloadRef *uuid.UUID, authorID uuid.UUID) (models.Block, error) {
	blk := models.Block{
		ID:          uuid.New(),
		PatientID:   patientID,
		Index:       len(r.appends),
		PayloadType: payloadType,
		PayloadRef:  payloadRef,
		AuthorID:    authorID,
	}
	r.appends = append(r.appends, blk)
	return blk, nil
}

type fixture struct {
	svc     *Service
	store   *memRecords
	blobs   *memBlobs
	access  *staticAccess
	chain   *recordingChain
	patient models.User
	doctor  models.User
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := &memRecords{}
	blobs := &memBlobs{}
	access := &staticAccess{granted: make(map[[2]uuid.UUID]bool)}
	chain := &recordingChain{}
	screener, err := phi.NewScreener(phi.DefaultRules())
	if err != nil {
		t.Fatalf("screener: %v", err)
	}
	return fixture{
		svc:     NewService(store, blobs, access, chain, DefaultCatalog(), screener),
		store:   store,
		blobs:   blobs,
		access:  access,
		chain:   chain,
		patient: models.User{ID: uuid.New(), Name: "Pat", Role: models.RolePatient},
		doctor:  models.User{ID: uuid.New(), Name: "Dr. Kim", Role: models.RoleDoctor},
	}
}

func TestAddReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.svc.AddReport(ctx, f.patient, f.patient.ID, "Blood panel 2026-02", []byte("pdf-bytes"), "application/pdf")
	if err != nil {
		t.Fatalf("add report: %v", err)
	}
	if rec.Type != models.RecordTypeReport || rec.Title != "Blood panel 2026-02" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.FileID == nil {
		t.Fatal("expected a stored file reference")
	}
	if len(f.blobs.stored) != 1 || string(f.blobs.stored[0]) != "pdf-bytes" {
		t.Fatal("expected file bytes to be stored")
	}

	if len(f.chain.appends) != 1 {
		t.Fatalf("expected 1 chained block, got %d", len(f.chain.appends))
	}
	blk := f.chain.appends[0]
	if blk.PayloadType != models.BlockTypeReport {
		t.Fatalf("expected report block, got %q", blk.PayloadType)
	}
	if blk.PayloadRef == nil || *blk.PayloadRef != rec.ID {
		t.Fatal("expected block to reference the record")
	}
}

func TestAddReportWithoutFile(t *testing.T) {
	f := newFixture(t)

	rec, err := f.svc.AddReport(context.Background(), f.patient, f.patient.ID, "Symptom diary", nil, "")
	if err != nil {
		t.Fatalf("add report: %v", err)
	}
	if rec.FileID != nil {
		t.Fatal("expected no file reference")
	}
	if len(f.blobs.stored) != 0 {
		t.Fatal("expected no blob writes")
	}
}

func TestAddReportForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A doctor cannot author a patient report.
	if _, err := f.svc.AddReport(ctx, f.doctor, f.patient.ID, "t", nil, ""); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	// Nor can a patient write into another patient's history.
	other := models.User{ID: uuid.New(), Role: models.RolePatient}
	if _, err := f.svc.AddReport(ctx, other, f.patient.ID, "t", nil, ""); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.AddReport(ctx, f.patient, f.patient.ID, "   ", nil, ""); !errors.Is(err, ErrEmptyTitle) {
		t.Fatalf("expected ErrEmptyTitle, got %v", err)
	}
}

func TestAddDoctorUpdateRequiresGrant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.AddDoctorUpdate(ctx, f.doctor, f.doctor.ID, f.patient.ID, "BP stable"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized before grant, got %v", err)
	}

	f.access.granted[[2]uuid.UUID{f.patient.ID, f.doctor.ID}] = true

	rec, err := f.svc.AddDoctorUpdate(ctx, f.doctor, f.doctor.ID, f.patient.ID, "BP stable")
	if err != nil {
		t.Fatalf("add update: %v", err)
	}
	if rec.Type != models.RecordTypeUpdate || rec.AuthorID != f.doctor.ID {
		t.Fatalf("unexpected record %+v", rec)
	}
	if blk := f.chain.appends[len(f.chain.appends)-1]; blk.PayloadType != models.BlockTypeUpdate {
		t.Fatalf("expected update block, got %q", blk.PayloadType)
	}

	// Revocation takes effect immediately.
	f.access.granted[[2]uuid.UUID{f.patient.ID, f.doctor.ID}] = false
	if _, err := f.svc.AddDoctorUpdate(ctx, f.doctor, f.doctor.ID, f.patient.ID, "follow-up"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized after revoke, got %v", err)
	}
}

func TestAddDoctorUpdateForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.AddDoctorUpdate(ctx, f.patient, f.patient.ID, f.patient.ID, "note"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for patient actor, got %v", err)
	}
	if _, err := f.svc.AddDoctorUpdate(ctx, f.doctor, uuid.New(), f.patient.ID, "note"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for impersonated author, got %v", err)
	}
	if _, err := f.svc.AddDoctorUpdate(ctx, f.doctor, f.doctor.ID, f.patient.ID, " \n"); !errors.Is(err, ErrEmptyNote) {
		t.Fatalf("expected ErrEmptyNote, got %v", err)
	}
}

func TestUpdateTitleTruncation(t *testing.T) {
	f := newFixture(t)
	f.access.granted[[2]uuid.UUID{f.patient.ID, f.doctor.ID}] = true

	note := strings.Repeat("é", 200)
	rec, err := f.svc.AddDoctorUpdate(context.Background(), f.doctor, f.doctor.ID, f.patient.ID, note)
	if err != nil {
		t.Fatalf("add update: %v", err)
	}
	runes := []rune(rec.Title)
	if len(runes) != 120 {
		t.Fatalf("expected 120-rune title, got %d", len(runes))
	}
	for _, r := range runes {
		if r != 'é' {
			t.Fatal("truncation split a multi-byte rune")
		}
	}
}

func TestHistoryOrderingAndIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.access.granted[[2]uuid.UUID{f.patient.ID, f.doctor.ID}] = true

	titles := []string{"first visit", "second visit", "third visit"}
	for _, title := range titles {
		if _, err := f.svc.AddReport(ctx, f.patient, f.patient.ID, title, nil, ""); err != nil {
			t.Fatalf("add report %q: %v", title, err)
		}
	}

	history, err := f.svc.History(ctx, f.patient.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != len(titles) {
		t.Fatalf("expected %d items, got %d", len(titles), len(history))
	}
	for i, it := range history {
		if it.Title != titles[i] {
			t.Fatalf("expected %q at position %d, got %q", titles[i], i, it.Title)
		}
	}

	// Another patient's history stays empty.
	empty, err := f.svc.History(ctx, uuid.New())
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty history, got %d items", len(empty))
	}
}

func TestTruncateTitle(t *testing.T) {
	if got := TruncateTitle("short", 120); got != "short" {
		t.Fatalf("expected passthrough, got %q", got)
	}
	if got := TruncateTitle("unbounded", 0); got != "unbounded" {
		t.Fatalf("expected no limit, got %q", got)
	}
	if got := TruncateTitle("abcdef", 3); got != "abc" {
		t.Fatalf("expected abc, got %q", got)
	}
}

func TestCatalogDefaults(t *testing.T) {
	cat := DefaultCatalog()

	report, ok := cat.Type(models.RecordTypeReport)
	if !ok || report.RequiresGrant || report.AuthorRole != models.RolePatient || report.TitleLimit != 120 {
		t.Fatalf("unexpected report policy %+v", report)
	}
	update, ok := cat.Type(models.RecordTypeUpdate)
	if !ok || !update.RequiresGrant || update.AuthorRole != models.RoleDoctor || update.TitleLimit != 120 {
		t.Fatalf("unexpected update policy %+v", update)
	}
}

// Guards the ordering contract: the file must be durable before the record,
// and the record before the block.
func TestReportWriteOrdering(t *testing.T) {
	var sequence []string

	store := &orderedRecords{sequence: &sequence}
	blobs := &orderedBlobs{sequence: &sequence}
	chain := &orderedChain{sequence: &sequence}
	screener, err := phi.NewScreener(phi.DefaultRules())
	if err != nil {
		t.Fatalf("screener: %v", err)
	}
	svc := NewService(store, blobs, &staticAccess{}, chain, DefaultCatalog(), screener)

	patient := models.User{ID: uuid.New(), Role: models.RolePatient}
	if _, err := svc.AddReport(context.Background(), patient, patient.ID, "scan", []byte("img"), "image/png"); err != nil {
		t.Fatalf("add report: %v", err)
	}

	want := []string{"blob", "record", "block"}
	if len(sequence) != len(want) {
		t.Fatalf("expected %v, got %v", want, sequence)
	}
	for i := range want {
		if sequence[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, sequence)
		}
	}
}

type orderedRecords struct{ sequence *[]string }

func (o *orderedRecords) Create(_ context.Context, _ *models.RecordItem) error {
	*o.sequence = append(*o.sequence, "record")
	return nil
}

func (o *orderedRecords) ListByPatient(_ context.Context, _ uuid.UUID) ([]models.RecordItem, error) {
	return nil, nil
}

type orderedBlobs struct{ sequence *[]string }

func (o *orderedBlobs) Put(_ context.Context, _ []byte, _ string) (uuid.UUID, error) {
	*o.sequence = append(*o.sequence, "blob")
	return uuid.New(), nil
}

type orderedChain struct{ sequence *[]string }

func (o *orderedChain) Append(_ context.Context, patientID uuid.UUID, payloadType string, payloadRef *uuid.UUID, authorID uuid.UUID) (models.Block, error) {
	*o.sequence = append(*o.sequence, "block")
	return models.Block{PatientID: patientID, PayloadType: payloadType, PayloadRef: payloadRef, AuthorID: authorID, Timestamp: time.Now()}, nil
}
