package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"equipment_service/internal/models"
	"equipment_service/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Domain errors for auth flows.
var (
	ErrInvalidPassword = errors.New("invalid password")
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidToken    = errors.New("invalid token")
)

// Action is a capability checked against the caller's role.
type Action string

const (
	ActionViewRecords       Action = "records.view"
	ActionManageEquipment   Action = "equipment.manage"
	ActionScheduleService   Action = "service.schedule"
	ActionReportContingency Action = "contingency.report"
	ActionManageContingency Action = "contingency.manage"
	ActionCreateTicket      Action = "tickets.create"
	ActionManageTickets     Action = "tickets.manage"
	ActionManageStock       Action = "stock.manage"
	ActionRunSweep          Action = "sweep.run"
	ActionManageUsers       Action = "users.manage"
)

var rolePermissions = map[models.Role][]Action{
	models.RoleSupervisor: {
		ActionViewRecords, ActionManageEquipment, ActionScheduleService, ActionReportContingency,
		ActionManageContingency, ActionCreateTicket, ActionManageTickets, ActionManageStock, ActionRunSweep,
	},
	models.RoleTechnician: {
		ActionViewRecords, ActionScheduleService, ActionReportContingency, ActionManageContingency,
		ActionCreateTicket, ActionManageStock,
	},
	models.RoleAgent: {
		ActionViewRecords, ActionReportContingency, ActionCreateTicket, ActionManageTickets,
	},
	models.RoleViewer: {ActionViewRecords},
}

// Allows reports whether role may perform action. Admin may do anything.
func Allows(role models.Role, action Action) bool {
	if role == models.RoleAdmin {
		return true
	}
	for _, a := range rolePermissions[role] {
		if a == action {
			return true
		}
	}
	return false
}

type SignUpInput struct {
	Username   string
	Password   string
	Role       models.Role
	Category   string
	Department string
}

// AuthService handles user auth logic
type AuthService struct {
	authRepo   repository.Authorization
	signingKey []byte
	tokenTTL   time.Duration
}

func NewAuthService(repo repository.Authorization, signingKey string, ttl time.Duration) *AuthService {
	return &AuthService{authRepo: repo, signingKey: []byte(signingKey), tokenTTL: ttl}
}

// SignUp hashes password and creates a new user. Role defaults to viewer.
func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (int, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" {
		return 0, &ValidationError{Field: "username", Reason: "is required"}
	}
	if in.Role == "" {
		in.Role = models.RoleViewer
	}
	if !in.Role.Valid() {
		return 0, &ValidationError{Field: "role", Reason: "unknown role " + string(in.Role)}
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return 0, &ValidationError{Field: "password", Reason: err.Error()}
	}

	existing, err := s.authRepo.GetByUsername(ctx, in.Username)
	if err != nil {
		return 0, storeErr("sign up", err)
	}
	if existing != nil {
		return 0, &ConflictError{Reason: "username " + in.Username + " is taken"}
	}

	id, err := s.authRepo.Create(ctx, models.User{
		Username:     in.Username,
		PasswordHash: hash,
		Role:         in.Role,
		Category:     strings.TrimSpace(in.Category),
		Department:   strings.TrimSpace(in.Department),
		Active:       true,
	})
	if err != nil {
		return 0, storeErr("sign up", err)
	}
	return id, nil
}

// Claims defines JWT claims
type Claims struct {
	jwt.RegisteredClaims
	UserID int `json:"user_id"`
}

// GenerateToken validates credentials and returns JWT
func (s *AuthService) GenerateToken(ctx context.Context, username, password string) (string, error) {
	u, err := s.authRepo.GetByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if u == nil || !u.Active {
		return "", ErrUserNotFound
	}

	if err := verifyPassword(u.PasswordHash, password); err != nil {
		return "", ErrInvalidPassword
	}

	return s.issueToken(u.ID)
}

// ParseToken parses JWT and returns userID
func (s *AuthService) ParseToken(accessToken string) (int, error) {
	token, err := jwt.ParseWithClaims(accessToken, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Ensure HMAC signing is used
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return 0, ErrInvalidToken
	}

	return claims.UserID, nil
}

// CallerAllowed looks up the actor and checks its role against action.
// Unknown or inactive actors are denied.
func (s *AuthService) CallerAllowed(ctx context.Context, actorID int, action Action) (bool, error) {
	u, err := s.authRepo.GetByID(ctx, actorID)
	if err != nil {
		return false, storeErr("check capability", err)
	}
	if u == nil || !u.Active {
		return false, nil
	}
	return Allows(u.Role, action), nil
}

// helper: hash password safely
func hashPassword(password string) (string, error) {
	if strings.TrimSpace(password) == "" {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// helper: verify password against hash
func verifyPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// helper: issue a signed JWT for a user
func (s *AuthService) issueToken(userID int) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		UserID: userID,
	})
	return token.SignedString(s.signingKey)
}
