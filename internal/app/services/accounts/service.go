package accounts

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/Aromatic05/CurioBox-sub000/internal/app/auth"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/page"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/user"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/storage"
	apperrors "github.com/Aromatic05/CurioBox-sub000/internal/errors"
	"github.com/Aromatic05/CurioBox-sub000/pkg/logger"
)

const (
	minPasswordLen = 6
	maxPasswordLen = 72 // bcrypt ignores anything longer
	maxNicknameLen = 32
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,32}$`)

// Session is returned on login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      user.User `json:"user"`
}

// ProfileUpdate carries the optional fields of a profile edit.
type ProfileUpdate struct {
	Nickname *string
	Avatar   *string
}

// Service manages registration, login, and user administration.
type Service struct {
	users      storage.UserStore
	tokens     *auth.Manager
	log        *logger.Logger
	bcryptCost int
}

// New constructs an account service.
func New(users storage.UserStore, tokens *auth.Manager, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("accounts")
	}
	return &Service{users: users, tokens: tokens, log: log, bcryptCost: bcrypt.DefaultCost}
}

// WithBcryptCost lowers hashing cost, used by tests.
func (s *Service) WithBcryptCost(cost int) *Service {
	s.bcryptCost = cost
	return s
}

// Register creates a regular user.
func (s *Service) Register(ctx context.Context, username, password, nickname string) (user.User, error) {
	username = strings.TrimSpace(username)
	if !usernamePattern.MatchString(username) {
		return user.User{}, apperrors.InvalidFormat("username", "3-32 letters, digits or underscores")
	}
	if err := validatePassword(password); err != nil {
		return user.User{}, err
	}
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		nickname = username
	}
	if utf8.RuneCountInString(nickname) > maxNicknameLen {
		return user.User{}, apperrors.InvalidFormat("nickname", "at most 32 characters")
	}

	hash, err := s.hash(password)
	if err != nil {
		return user.User{}, err
	}
	created, err := s.users.CreateUser(ctx, user.User{
		Username:     username,
		PasswordHash: hash,
		Nickname:     nickname,
		Role:         user.RoleUser,
		Status:       user.StatusActive,
	})
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return user.User{}, apperrors.Conflict("username already taken")
		}
		return user.User{}, storage.Translate("user", username, err)
	}
	s.log.WithField("user_id", created.ID).Info("user registered")
	return created, nil
}

// Login checks credentials and issues an access token.
func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	u, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Session{}, apperrors.Unauthorized("invalid username or password")
		}
		return Session{}, storage.Translate("user", username, err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return Session{}, apperrors.Unauthorized("invalid username or password")
	}
	if u.Status == user.StatusBanned {
		return Session{}, apperrors.Forbidden("account is banned")
	}

	token, claims, err := s.tokens.Issue(u)
	if err != nil {
		return Session{}, apperrors.Internal("issue token", err)
	}
	s.log.WithField("user_id", u.ID).Debug("user logged in")
	return Session{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: u}, nil
}

// Authenticate verifies a bearer token and that its owner may still act.
func (s *Service) Authenticate(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := s.tokens.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrRevoked) {
			return nil, apperrors.InvalidToken(err)
		}
		return nil, apperrors.Internal("verify token", err)
	}
	u, err := s.users.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.InvalidToken(err)
		}
		return nil, storage.Translate("user", claims.UserID, err)
	}
	if u.Status == user.StatusBanned {
		return nil, apperrors.Forbidden("account is banned")
	}
	// role changes take effect without re-login
	claims.Role = string(u.Role)
	return claims, nil
}

// Logout revokes the token described by claims.
func (s *Service) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil {
		return apperrors.Unauthorized("")
	}
	if err := s.tokens.Revoke(ctx, claims); err != nil {
		return apperrors.Internal("revoke token", err)
	}
	s.log.WithField("user_id", claims.UserID).Debug("user logged out")
	return nil
}

// Profile returns the user.
func (s *Service) Profile(ctx context.Context, userID string) (user.User, error) {
	u, err := s.users.GetUser(ctx, userID)
	return u, storage.Translate("user", userID, err)
}

// UpdateProfile edits nickname and avatar.
func (s *Service) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (user.User, error) {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return user.User{}, storage.Translate("user", userID, err)
	}
	if upd.Nickname != nil {
		nickname := strings.TrimSpace(*upd.Nickname)
		if nickname == "" || utf8.RuneCountInString(nickname) > maxNicknameLen {
			return user.User{}, apperrors.InvalidFormat("nickname", "1-32 characters")
		}
		u.Nickname = nickname
	}
	if upd.Avatar != nil {
		u.Avatar = strings.TrimSpace(*upd.Avatar)
	}
	updated, err := s.users.UpdateUser(ctx, u)
	return updated, storage.Translate("user", userID, err)
}

// ChangePassword replaces the password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return storage.Translate("user", userID, err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)) != nil {
		return apperrors.Unauthorized("current password is incorrect")
	}
	if err := validatePassword(next); err != nil {
		return err
	}
	hash, err := s.hash(next)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	if _, err := s.users.UpdateUser(ctx, u); err != nil {
		return storage.Translate("user", userID, err)
	}
	s.log.WithField("user_id", userID).Info("password changed")
	return nil
}

// List pages through users for the back office.
func (s *Service) List(ctx context.Context, filter user.Filter, req page.Request) (page.Result[user.User], error) {
	if filter.Role != "" && !user.ValidRole(filter.Role) {
		return page.Result[user.User]{}, apperrors.InvalidFormat("role", "must be user or admin")
	}
	if filter.Status != "" && !user.ValidStatus(filter.Status) {
		return page.Result[user.User]{}, apperrors.InvalidFormat("status", "must be active or banned")
	}
	items, total, err := s.users.ListUsers(ctx, filter, req)
	if err != nil {
		return page.Result[user.User]{}, storage.Translate("users", "", err)
	}
	return page.NewResult(items, total, req), nil
}

// SetStatus bans or reinstates a user. Admins cannot ban themselves.
func (s *Service) SetStatus(ctx context.Context, actorID, userID string, status user.Status) (user.User, error) {
	if !user.ValidStatus(status) {
		return user.User{}, apperrors.InvalidFormat("status", "must be active or banned")
	}
	if actorID == userID && status == user.StatusBanned {
		return user.User{}, apperrors.Validation("cannot ban yourself")
	}
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return user.User{}, storage.Translate("user", userID, err)
	}
	u.Status = status
	updated, err := s.users.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, storage.Translate("user", userID, err)
	}
	s.log.WithFields(map[string]interface{}{"user_id": userID, "status": status, "actor": actorID}).Info("user status changed")
	return updated, nil
}

// SetRole promotes or demotes a user. Admins cannot demote themselves.
func (s *Service) SetRole(ctx context.Context, actorID, userID string, role user.Role) (user.User, error) {
	if !user.ValidRole(role) {
		return user.User{}, apperrors.InvalidFormat("role", "must be user or admin")
	}
	if actorID == userID && role != user.RoleAdmin {
		return user.User{}, apperrors.Validation("cannot demote yourself")
	}
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return user.User{}, storage.Translate("user", userID, err)
	}
	u.Role = role
	updated, err := s.users.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, storage.Translate("user", userID, err)
	}
	s.log.WithFields(map[string]interface{}{"user_id": userID, "role": role, "actor": actorID}).Info("user role changed")
	return updated, nil
}

// EnsureAdmin creates the bootstrap administrator, or promotes and
// reactivates it if the username already exists.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) (user.User, error) {
	existing, err := s.users.GetUserByUsername(ctx, username)
	switch {
	case err == nil:
		if existing.IsAdmin() && existing.Status == user.StatusActive {
			return existing, nil
		}
		existing.Role = user.RoleAdmin
		existing.Status = user.StatusActive
		updated, err := s.users.UpdateUser(ctx, existing)
		if err != nil {
			return user.User{}, storage.Translate("user", existing.ID, err)
		}
		s.log.WithField("username", username).Warn("existing user promoted to admin")
		return updated, nil
	case !errors.Is(err, storage.ErrNotFound):
		return user.User{}, storage.Translate("user", username, err)
	}

	created, err := s.Register(ctx, username, password, "")
	if err != nil {
		return user.User{}, err
	}
	created.Role = user.RoleAdmin
	updated, err := s.users.UpdateUser(ctx, created)
	if err != nil {
		return user.User{}, storage.Translate("user", created.ID, err)
	}
	s.log.WithField("username", username).Info("bootstrap admin created")
	return updated, nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return apperrors.InvalidFormat("password", "6-72 characters")
	}
	return nil
}

func (s *Service) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", apperrors.Internal("hash password", err)
	}
	return string(hash), nil
}
