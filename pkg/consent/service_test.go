package consent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/medledger/platform/pkg/common/models"
)

type memPerms struct {
	edges map[[2]uuid.UUID]models.Permission
}

func newMemPerms() *memPerms {
	return &memPerms{edges: make(map[[2]uuid.UUID]models.Permission)}
}

func (m *memPerms) Get(_ context.Context, patientID, doctorID uuid.UUID) (models.Permission, error) {
	perm, ok := m.edges[[2]uuid.UUID{patientID, doctorID}]
	if !ok {
		return models.Permission{}, ErrPermissionNotFound
	}
	return perm, nil
}

func (m *memPerms) Create(_ context.Context, patientID, doctorID uuid.UUID) (models.Permission, error) {
	perm := models.Permission{ID: uuid.New(), PatientID: patientID, DoctorID: doctorID, GrantedAt: time.Now().UTC()}
	m.edges[[2]uuid.UUID{patientID, doctorID}] = perm
	return perm, nil
}

func (m *memPerms) Delete(_ context.Context, patientID, doctorID uuid.UUID) error {
	delete(m.edges, [2]uuid.UUID{patientID, doctorID})
	return nil
}

func (m *memPerms) ListForPatient(_ context.Context, patientID uuid.UUID) ([]models.Permission, error) {
	var out []models.Permission
	for _, p := range m.edges {
		if p.PatientID == patientID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memPerms) ListForDoctor(_ context.Context, doctorID uuid.UUID) ([]models.Permission, error) {
	var out []models.Permission
	for _, p := range m.edges {
		if p.DoctorID == doctorID {
			out = append(out, p)
		}
	}
	return out, nil
}

type memDirectory struct {
	users map[uuid.UUID]models.User
}

func (m *memDirectory) GetUser(_ context.Context, id uuid.UUID) (models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return models.User{}, errors.New("user not found")
	}
	return user, nil
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
	chain   *recordingChain
	patient models.User
	doctor  models.User
}

func newFixture() fixture {
	patient := models.User{ID: uuid.New(), Name: "Pat", Role: models.RolePatient}
	doctor := models.User{ID: uuid.New(), Name: "Dr. Kim", Role: models.RoleDoctor}
	dir := &memDirectory{users: map[uuid.UUID]models.User{patient.ID: patient, doctor.ID: doctor}}
	chain := &recordingChain{}
	return fixture{
		svc:     NewService(newMemPerms(), dir, chain),
		chain:   chain,
		patient: patient,
		doctor:  doctor,
	}
}

func TestGrantAndCheck(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	granted, err := f.svc.IsGranted(ctx, f.patient.ID, f.doctor.ID)
	if err != nil || granted {
		t.Fatalf("expected no grant initially, granted=%v err=%v", granted, err)
	}

	perm, err := f.svc.Grant(ctx, f.patient, f.patient.ID, f.doctor.ID)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}

	granted, err = f.svc.IsGranted(ctx, f.patient.ID, f.doctor.ID)
	if err != nil || !granted {
		t.Fatalf("expected grant to be live, granted=%v err=%v", granted, err)
	}

	if len(f.chain.appends) != 1 {
		t.Fatalf("expected 1 audit block, got %d", len(f.chain.appends))
	}
	blk := f.chain.appends[0]
	if blk.PayloadType != models.BlockTypeAccessGranted {
		t.Fatalf("expected access-granted block, got %q", blk.PayloadType)
	}
	if blk.PayloadRef == nil || *blk.PayloadRef != perm.ID {
		t.Fatal("expected block to reference the permission")
	}
	if blk.AuthorID != f.patient.ID {
		t.Fatal("expected the patient as block author")
	}
}

func TestGrantOnlyByOwningPatient(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.svc.Grant(ctx, f.doctor, f.patient.ID, f.doctor.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for doctor actor, got %v", err)
	}

	other := models.User{ID: uuid.New(), Role: models.RolePatient}
	if _, err := f.svc.Grant(ctx, other, f.patient.ID, f.doctor.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for other patient, got %v", err)
	}
	if len(f.chain.appends) != 0 {
		t.Fatal("expected no audit blocks for rejected grants")
	}
}

func TestGrantRequiresDoctorRole(t *testing.T) {
	f := newFixture()

	if _, err := f.svc.Grant(context.Background(), f.patient, f.patient.ID, f.patient.ID); !errors.Is(err, ErrNotDoctor) {
		t.Fatalf("expected ErrNotDoctor, got %v", err)
	}
}

func TestRepeatedGrantChainsEveryAction(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.svc.Grant(ctx, f.patient, f.patient.ID, f.doctor.ID)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	second, err := f.svc.Grant(ctx, f.patient, f.patient.ID, f.doctor.ID)
	if err != nil {
		t.Fatalf("repeated grant: %v", err)
	}
	if first.ID != second.ID {
		t.Fatal("expected the repeated grant to return the existing edge")
	}
	if len(f.chain.appends) != 2 {
		t.Fatalf("expected 2 audit blocks, got %d", len(f.chain.appends))
	}
}

func TestRevoke(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	perm, err := f.svc.Grant(ctx, f.patient, f.patient.ID, f.doctor.ID)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := f.svc.Revoke(ctx, f.patient, f.patient.ID, f.doctor.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	granted, err := f.svc.IsGranted(ctx, f.patient.ID, f.doctor.ID)
	if err != nil || granted {
		t.Fatalf("expected grant to be gone, granted=%v err=%v", granted, err)
	}

	if len(f.chain.appends) != 2 {
		t.Fatalf("expected 2 audit blocks, got %d", len(f.chain.appends))
	}
	blk := f.chain.appends[1]
	if blk.PayloadType != models.BlockTypeAccessRevoked {
		t.Fatalf("expected access-revoked block, got %q", blk.PayloadType)
	}
	if blk.PayloadRef == nil || *blk.PayloadRef != perm.ID {
		t.Fatal("expected revoke block to reference the removed permission")
	}
}

func TestRevokeWithoutEdgeStillChains(t *testing.T) {
	f := newFixture()

	if err := f.svc.Revoke(context.Background(), f.patient, f.patient.ID, f.doctor.ID); err != nil {
		t.Fatalf("revoke without edge: %v", err)
	}
	if len(f.chain.appends) != 1 {
		t.Fatalf("expected 1 audit block, got %d", len(f.chain.appends))
	}
	blk := f.chain.appends[0]
	if blk.PayloadType != models.BlockTypeAccessRevoked {
		t.Fatalf("expected access-revoked block, got %q", blk.PayloadType)
	}
	if blk.PayloadRef != nil {
		t.Fatal("expected no permission reference when no edge existed")
	}
}

func TestRevokeOnlyByOwningPatient(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.svc.Grant(ctx, f.patient, f.patient.ID, f.doctor.ID); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := f.svc.Revoke(ctx, f.doctor, f.patient.ID, f.doctor.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}
