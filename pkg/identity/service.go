package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/medledger/platform/pkg/common/logger"
	"github.com/medledger/platform/pkg/common/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRole        = errors.New("role must be patient or doctor")
	ErrNoAuthMaterial     = errors.New("password or wallet address required")
)

// futureSkew tolerates minor clock drift between wallet clients and the
// server when checking login-message freshness.
const futureSkew = time.Minute

// UserStore is the persistence contract for identities. The gorm Repository
// is the production implementation.
type UserStore interface {
	CreateUser(ctx context.Context, input CreateUserInput) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error)
	GetUserByWallet(ctx context.Context, address string) (models.User, error)
	GetCredentials(ctx context.Context, id uuid.UUID) (salt, hash string, err error)
}

// ChainAppender appends a block to a patient's ledger; account creation
// writes each new user's genesis block through it.
type ChainAppender interface {
	Append(ctx context.Context, patientID uuid.UUID, payloadType string, payloadRef *uuid.UUID, authorID uuid.UUID) (models.Block, error)
}

type Service struct {
	users        UserStore
	chain        ChainAppender
	systemName   string
	walletMaxAge time.Duration
	now          func() time.Time
}

func NewService(users UserStore, chain ChainAppender, systemName string, walletMaxAge time.Duration) *Service {
	return &Service{
		users:        users,
		chain:        chain,
		systemName:   systemName,
		walletMaxAge: walletMaxAge,
		now:          time.Now,
	}
}

// Signup creates an account and its ledger chain. Every account, patient or
// doctor, starts life with exactly one genesis block.
func (s *Service) Signup(ctx context.Context, req models.SignupRequest) (models.User, error) {
	if req.Role != models.RolePatient && req.Role != models.RoleDoctor {
		return models.User{}, ErrInvalidRole
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" {
		return models.User{}, fmt.Errorf("name and email required")
	}
	if req.Password == "" && req.WalletAddress == "" {
		return models.User{}, ErrNoAuthMaterial
	}

	input := CreateUserInput{
		Email:         req.Email,
		Name:          strings.TrimSpace(req.Name),
		Role:          req.Role,
		WalletAddress: req.WalletAddress,
		Metadata:      req.Metadata,
	}

	if req.Password != "" {
		salt, err := NewSalt()
		if err != nil {
			return models.User{}, err
		}
		hash, err := HashPassword(req.Password, salt)
		if err != nil {
			return models.User{}, err
		}
		input.PasswordSalt = salt
		input.PasswordHash = hash
	}

	user, err := s.users.CreateUser(ctx, input)
	if err != nil {
		return models.User{}, err
	}

	if _, err := s.chain.Append(ctx, user.ID, models.BlockTypeGenesis, nil, user.ID); err != nil {
		return models.User{}, fmt.Errorf("creating genesis block: %w", err)
	}

	logger.Log.WithFields(map[string]interface{}{
		"user_id": user.ID,
		"role":    user.Role,
	}).Info("account created")

	return user, nil
}

// AuthenticatePassword verifies an email/password login.
func (s *Service) AuthenticatePassword(ctx context.Context, email, password string) (models.User, error) {
	if password == "" {
		return models.User{}, ErrInvalidCredentials
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, err
	}

	salt, hash, err := s.users.GetCredentials(ctx, user.ID)
	if err != nil {
		return models.User{}, err
	}
	if salt == "" || !VerifyPassword(password, salt, hash) {
		return models.User{}, ErrInvalidCredentials
	}

	return user, nil
}

// AuthenticateWallet verifies a signed login message: template shape,
// timestamp freshness, secp256k1 recovery against the claimed address, and
// that the claimed role matches the registered account.
func (s *Service) AuthenticateWallet(ctx context.Context, req models.WalletLoginRequest) (models.User, error) {
	role, issuedAt, err := ParseLoginMessage(s.systemName, req.Message)
	if err != nil {
		return models.User{}, err
	}

	now := s.now().UTC()
	if now.Sub(issuedAt) > s.walletMaxAge || issuedAt.Sub(now) > futureSkew {
		return models.User{}, ErrInvalidCredentials
	}

	ok, err := VerifyWalletSignature(req.Message, req.Signature, req.Address)
	if err != nil {
		return models.User{}, err
	}
	if !ok {
		return models.User{}, ErrInvalidCredentials
	}

	user, err := s.users.GetUserByWallet(ctx, req.Address)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, err
	}
	if user.Role != role {
		return models.User{}, ErrInvalidCredentials
	}

	return user, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (models.User, error) {
	return s.users.GetUserByID(ctx, id)
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return s.users.GetUserByEmail(ctx, email)
}
