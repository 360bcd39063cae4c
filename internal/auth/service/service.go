package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"clinic/internal/auth/models"
	"clinic/internal/platform/metrics"
	dErrors "clinic/pkg/domain-errors"
	"clinic/pkg/platform/sentinel"
	"clinic/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks UserStore,TokenIssuer

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByUsername(ctx context.Context, username string) (*models.User, error)
}

type TokenIssuer interface {
	GenerateAccessToken(username string, expiresIn time.Duration) (string, error)
}

// Service registers users and exchanges credentials for bearer tokens.
type Service struct {
	users      UserStore
	tokens     TokenIssuer
	tokenTTL   time.Duration
	bcryptCost int
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithBcryptCost overrides the hashing cost; tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

// New constructs a Service.
func New(users UserStore, tokens TokenIssuer, tokenTTL time.Duration, opts ...Option) *Service {
	s := &Service{
		users:      users,
		tokens:     tokens,
		tokenTTL:   tokenTTL,
		bcryptCost: bcrypt.DefaultCost,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a user. A taken username is a bad request.
func (s *Service) Register(ctx context.Context, creds models.Credentials) (*models.RegisterResult, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), s.bcryptCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}

	user := &models.User{
		Username:     creds.Username,
		PasswordHash: string(hash),
		CreatedAt:    requestcontext.Now(ctx).UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeBadRequest, "username already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeDependency, "failed to create user")
	}

	s.metrics.IncrementUsersCreated()
	s.logger.InfoContext(ctx, "user registered",
		"request_id", requestcontext.RequestID(ctx),
		"username", user.Username,
	)
	return &models.RegisterResult{Username: user.Username, Message: "User registered successfully"}, nil
}

// Login verifies credentials and issues an access token. Unknown users and
// wrong passwords produce the same error.
func (s *Service) Login(ctx context.Context, creds models.Credentials) (*models.TokenResult, error) {
	if err := creds.Validate(); err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "incorrect username or password")
	}

	user, err := s.users.FindByUsername(ctx, creds.Username)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "login failed",
				"request_id", requestcontext.RequestID(ctx),
				"reason", "unknown_user",
			)
			return nil, dErrors.New(dErrors.CodeUnauthorized, "incorrect username or password")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeDependency, "failed to load user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		s.logger.WarnContext(ctx, "login failed",
			"request_id", requestcontext.RequestID(ctx),
			"reason", "bad_password",
		)
		return nil, dErrors.New(dErrors.CodeUnauthorized, "incorrect username or password")
	}

	token, err := s.tokens.GenerateAccessToken(user.Username, s.tokenTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}

	return &models.TokenResult{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.tokenTTL.Seconds()),
	}, nil
}
