package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"dogsitter/internal/auth"
	"dogsitter/internal/config"
	"dogsitter/internal/domain"
	"dogsitter/internal/logging"
	"dogsitter/internal/models"

	"github.com/rs/zerolog"
)

type RegisterInput struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	MiddleName string `json:"middle_name"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
}

// ProfileUpdate is a partial profile change. Nil fields are left alone.
type ProfileUpdate struct {
	FirstName      *string `json:"first_name"`
	LastName       *string `json:"last_name"`
	MiddleName     *string `json:"middle_name"`
	Phone          *string `json:"phone"`
	Address        *string `json:"address"`
	AvatarURL      *string `json:"avatar"`
	TelegramChatID *int64  `json:"telegram_chat_id"`
}

// AuthResult is returned by register and login.
type AuthResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	Role      string       `json:"role"`
	User      *models.User `json:"user"`
}

type UserService struct {
	users   domain.UserRepository
	sitters domain.SitterRepository
	stats   domain.StatsRepository
	cache   domain.CacheRepository
	tokens  domain.TokenIssuer
	cfg     config.AuthConfig
	logger  *zerolog.Logger
}

func NewUserService(
	users domain.UserRepository,
	sitters domain.SitterRepository,
	stats domain.StatsRepository,
	cache domain.CacheRepository,
	tokens domain.TokenIssuer,
	cfg config.AuthConfig,
	logger *zerolog.Logger,
) *UserService {
	return &UserService{
		users:   users,
		sitters: sitters,
		stats:   stats,
		cache:   cache,
		tokens:  tokens,
		cfg:     cfg,
		logger:  logging.Component(logger, "user_service"),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	user, err := s.createUser(ctx, in, false)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("user_id", user.ID).Msg("user registered")
	return s.issue(ctx, user)
}

// CreateAdmin creates a superuser account.
func (s *UserService) CreateAdmin(ctx context.Context, in RegisterInput) (*models.User, error) {
	user, err := s.createUser(ctx, in, true)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("user_id", user.ID).Msg("admin created")
	return user, nil
}

func (s *UserService) createUser(ctx context.Context, in RegisterInput, superuser bool) (*models.User, error) {
	email := normalizeEmail(in.Email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, validationError("enter a valid email address")
	}
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if in.FirstName == "" || in.LastName == "" {
		return nil, validationError("first_name and last_name are required")
	}
	in.Phone = strings.TrimSpace(in.Phone)
	if err := validatePhone(in.Phone); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		MiddleName:   strings.TrimSpace(in.MiddleName),
		Phone:        in.Phone,
		Address:      strings.TrimSpace(in.Address),
		PasswordHash: hash,
		IsActive:     true,
		IsSuperuser:  superuser,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login checks credentials. Attempts are throttled per email; a cache
// failure does not block logins.
func (s *UserService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	if s.cache != nil && s.cfg.LoginAttempts > 0 {
		allowed, err := s.cache.CheckRateLimit(ctx, "login:"+email, s.cfg.LoginAttempts, s.cfg.LoginWindow)
		if err != nil {
			s.logger.Warn().Err(err).Msg("login rate limit check failed")
		} else if !allowed {
			return nil, domain.ErrRateLimited
		}
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.ErrInvalidCredentials
	}
	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		return nil, err
	}
	return s.issue(ctx, user)
}

// Role resolves the token role of a user.
func (s *UserService) Role(ctx context.Context, user *models.User) (string, error) {
	if user.IsSuperuser {
		return models.RoleAdmin, nil
	}
	_, err := s.sitters.GetSitterByUserID(ctx, user.ID)
	if err == nil {
		return models.RoleSitter, nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		return models.RoleUser, nil
	}
	return "", err
}

func (s *UserService) issue(ctx context.Context, user *models.User) (*AuthResult, error) {
	role, err := s.Role(ctx, user)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.tokens.Issue(user.ID, user.Email, role)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, ExpiresAt: expiresAt, Role: role, User: user}, nil
}

// Authenticate loads the active account behind a token subject.
func (s *UserService) Authenticate(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: account is inactive", domain.ErrUnauthorized)
	}
	return user, nil
}

func (s *UserService) GetProfile(ctx context.Context, userID int64) (*models.User, error) {
	return s.users.GetUserByID(ctx, userID)
}

func (s *UserService) UpdateProfile(ctx context.Context, userID int64, upd ProfileUpdate) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if v := trimmed(upd.FirstName); v != nil {
		if *v == "" {
			return nil, validationError("first_name cannot be empty")
		}
		user.FirstName = *v
	}
	if v := trimmed(upd.LastName); v != nil {
		if *v == "" {
			return nil, validationError("last_name cannot be empty")
		}
		user.LastName = *v
	}
	if v := trimmed(upd.MiddleName); v != nil {
		user.MiddleName = *v
	}
	if v := trimmed(upd.Phone); v != nil {
		if err := validatePhone(*v); err != nil {
			return nil, err
		}
		user.Phone = *v
	}
	if v := trimmed(upd.Address); v != nil {
		user.Address = *v
	}
	if v := trimmed(upd.AvatarURL); v != nil {
		user.AvatarURL = *v
	}
	if upd.TelegramChatID != nil {
		user.TelegramChatID = *upd.TelegramChatID
	}

	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := auth.CheckPassword(user.PasswordHash, current); err != nil {
		return err
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}
	return s.users.UpdateUserPassword(ctx, userID, hash)
}

// Deactivate keeps the account but blocks further logins.
func (s *UserService) Deactivate(ctx context.Context, userID int64) error {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	user.IsActive = false
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return err
	}
	s.logger.Info().Int64("user_id", userID).Msg("user deactivated")
	return nil
}

func (s *UserService) Delete(ctx context.Context, userID int64) error {
	sitterIDs, err := s.users.DeleteUser(ctx, userID)
	if err != nil {
		return err
	}
	invalidateRatings(ctx, s.cache, s.logger, sitterIDs...)
	s.logger.Info().Int64("user_id", userID).Msg("user deleted")
	return nil
}

func (s *UserService) AddPhoto(ctx context.Context, userID int64, photo models.UserPhoto) (*models.UserPhoto, error) {
	photo.URL = strings.TrimSpace(photo.URL)
	if photo.URL == "" {
		return nil, validationError("url is required")
	}
	photo.UserID = userID
	if err := s.users.CreateUserPhoto(ctx, &photo); err != nil {
		return nil, err
	}
	return &photo, nil
}

func (s *UserService) ListPhotos(ctx context.Context, userID int64) ([]models.UserPhoto, error) {
	return s.users.ListUserPhotos(ctx, userID)
}

func (s *UserService) GetPhoto(ctx context.Context, userID, photoID int64) (*models.UserPhoto, error) {
	return s.users.GetUserPhoto(ctx, userID, photoID)
}

func (s *UserService) DeletePhoto(ctx context.Context, userID, photoID int64) error {
	return s.users.DeleteUserPhoto(ctx, userID, photoID)
}

func (s *UserService) Stats(ctx context.Context, userID int64) (*models.UserBookingStats, error) {
	return s.stats.GetUserBookingStats(ctx, userID)
}

func (s *UserService) Upcoming(ctx context.Context, userID int64) ([]models.Booking, error) {
	return s.stats.GetUpcomingBookings(ctx, userID)
}

func (s *UserService) History(ctx context.Context, userID int64, days int) ([]models.Booking, error) {
	if days <= 0 {
		days = models.DefaultHistoryDays
	}
	return s.stats.GetBookingHistory(ctx, userID, days)
}

func (s *UserService) Monthly(ctx context.Context, userID int64) ([]models.MonthlyBookings, error) {
	return s.stats.GetBookingsByMonth(ctx, userID)
}
