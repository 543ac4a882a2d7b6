package models

import (
	"time"

	"github.com/google/uuid"
)

// User roles
const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
)

// Ledger block payload types
const (
	BlockTypeGenesis       = "genesis"
	BlockTypeReport        = "report"
	BlockTypeUpdate        = "update"
	BlockTypeAccessGranted = "access-granted"
	BlockTypeAccessRevoked = "access-revoked"
)

// Record item types
const (
	RecordTypeReport = "report"
	RecordTypeUpdate = "update"
)

type User struct {
	ID            uuid.UUID              `json:"id"`
	Name          string                 `json:"name"`
	Email         string                 `json:"email"`
	Role          string                 `json:"role"`
	WalletAddress string                 `json:"wallet_address,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// Permission is a directed grant edge: the patient allows the doctor to
// author updates against their records.
type Permission struct {
	ID        uuid.UUID `json:"id"`
	PatientID uuid.UUID `json:"patient_id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	GrantedAt time.Time `json:"granted_at"`
}

// RecordItem is one immutable clinical artifact: a patient-uploaded report
// or a doctor-authored update. AuthorName is denormalized for display.
type RecordItem struct {
	ID         uuid.UUID  `json:"id"`
	PatientID  uuid.UUID  `json:"patient_id"`
	AuthorID   uuid.UUID  `json:"author_id"`
	AuthorName string     `json:"author_name"`
	Type       string     `json:"type"`
	Title      string     `json:"title"`
	FileID     *uuid.UUID `json:"file_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Block is one hash-linked entry of a patient's append-only ledger.
// Index is 0-based and strictly sequential per patient; PrevHash links to
// the preceding block's Hash (the genesis sentinel at index 0).
type Block struct {
	ID          uuid.UUID  `json:"id"`
	PatientID   uuid.UUID  `json:"patient_id"`
	Index       int        `json:"index"`
	PrevHash    string     `json:"prev_hash"`
	Hash        string     `json:"hash"`
	Timestamp   time.Time  `json:"timestamp"`
	PayloadType string     `json:"payload_type"`
	PayloadRef  *uuid.UUID `json:"payload_ref,omitempty"`
	AuthorID    uuid.UUID  `json:"author_id"`
	AuthorName  string     `json:"author_name"`
}

// LedgerEvent is the message published to the event bus after every append.
type LedgerEvent struct {
	ID          string    `json:"id"`
	PatientID   uuid.UUID `json:"patient_id"`
	BlockID     uuid.UUID `json:"block_id"`
	BlockIndex  int       `json:"block_index"`
	PayloadType string    `json:"payload_type"`
	AuthorID    uuid.UUID `json:"author_id"`
	Timestamp   time.Time `json:"timestamp"`
}

// API request/response models

type SignupRequest struct {
	Name          string                 `json:"name"`
	Email         string                 `json:"email"`
	Role          string                 `json:"role"`
	Password      string                 `json:"password,omitempty"`
	WalletAddress string                 `json:"wallet_address,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type WalletLoginRequest struct {
	Address   string `json:"address"`
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type GrantRequest struct {
	DoctorID uuid.UUID `json:"doctor_id"`
}

type ReportRequest struct {
	Title       string `json:"title"`
	FileData    string `json:"file_data,omitempty"` // base64
	ContentType string `json:"content_type,omitempty"`
}

type UpdateRequest struct {
	Note string `json:"note"`
}
