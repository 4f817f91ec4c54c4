package authsvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/corray333/frameshop/order/internal/dal/interfaces/iemployeerepo"
	"github.com/corray333/frameshop/order/internal/dal/interfaces/iratelimitrepo"
	"github.com/corray333/frameshop/order/internal/dal/memory"
	"github.com/corray333/frameshop/order/internal/dal/postgres"
	employeerepo "github.com/corray333/frameshop/order/internal/dal/repositories/employee/postgres"
	ratelimitrepo "github.com/corray333/frameshop/order/internal/dal/repositories/ratelimit/postgres"
	"github.com/corray333/frameshop/order/internal/service/errs"
	"github.com/corray333/frameshop/order/internal/service/models/employee"
)

const (
	defaultTokenTTL    = 60 * time.Minute
	defaultMaxAttempts = 5
	defaultWindow      = 15 * time.Minute
	minPasswordLength  = 8
)

var errInvalidCredentials = errs.Unauthenticated("invalid email or password")

// AuthService authenticates employees and issues short-lived signed tokens.
type AuthService struct {
	employees iemployeerepo.IEmployeeRepository
	limits    iratelimitrepo.IRateLimitRepository

	secret      []byte
	tokenTTL    time.Duration
	maxAttempts int
	window      time.Duration
	hashCost    int
	now         func() time.Time
}

// Session is the result of a successful login.
type Session struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
	Employee  employee.Employee `json:"employee"`
}

type claims struct {
	Name string        `json:"name"`
	Role employee.Role `json:"role"`
	jwt.RegisteredClaims
}

// option is a function that configures the AuthService.
type option func(*AuthService)

// MustNewAuthService creates a new AuthService.
func MustNewAuthService(opts ...option) *AuthService {
	s := &AuthService{
		tokenTTL:    defaultTokenTTL,
		maxAttempts: defaultMaxAttempts,
		window:      defaultWindow,
		hashCost:    bcrypt.DefaultCost,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if len(s.secret) == 0 {
		panic("authsvc: signing secret is not set")
	}
	if s.employees == nil || s.limits == nil {
		panic("authsvc: no storage configured")
	}

	return s
}

// WithPostgresClient sets the Postgres client for the AuthService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPostgresClient(pgClient *postgres.Client) option {
	return func(s *AuthService) {
		s.employees = employeerepo.NewEmployeeRepository(pgClient.Pool())
		s.limits = ratelimitrepo.NewRateLimitRepository(pgClient.Pool())
	}
}

// WithMemoryStore backs the AuthService with the in-process store.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithMemoryStore(store *memory.Store) option {
	return func(s *AuthService) {
		s.employees = store.Employees()
		s.limits = store.RateLimits()
	}
}

//goland:noinspection GoExportedFuncWithUnexportedType
func WithSigningSecret(secret string) option {
	return func(s *AuthService) {
		s.secret = []byte(secret)
	}
}

//goland:noinspection GoExportedFuncWithUnexportedType
func WithTokenTTL(ttl time.Duration) option {
	return func(s *AuthService) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// WithLoginLimit allows maxAttempts failed logins per client and email inside window.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithLoginLimit(maxAttempts int, window time.Duration) option {
	return func(s *AuthService) {
		if maxAttempts > 0 {
			s.maxAttempts = maxAttempts
		}
		if window > 0 {
			s.window = window
		}
	}
}

//goland:noinspection GoExportedFuncWithUnexportedType
func WithHashCost(cost int) option {
	return func(s *AuthService) {
		s.hashCost = cost
	}
}

//goland:noinspection GoExportedFuncWithUnexportedType
func WithClock(now func() time.Time) option {
	return func(s *AuthService) {
		s.now = now
	}
}

func loginKey(clientIP, email string) string {
	return "login:" + clientIP + ":" + email
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login checks credentials and returns a signed token.
func (s *AuthService) Login(ctx context.Context, email, password, clientIP string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, errs.Validation("email and password are required")
	}
	key := loginKey(clientIP, email)

	attempts, err := s.limits.Count(ctx, key)
	if err != nil {
		return nil, err
	}
	if attempts >= s.maxAttempts {
		slog.Warn("Login rate limited", "client_ip", clientIP, "attempts", attempts)
		return nil, errs.RateLimited("too many login attempts, try again later")
	}

	emp, err := s.employees.GetByEmail(ctx, email)
	if err != nil && !errs.Is(err, errs.KindNotFound) {
		return nil, err
	}
	if emp == nil || bcrypt.CompareHashAndPassword([]byte(emp.PasswordHash), []byte(password)) != nil {
		if _, err := s.limits.Hit(ctx, key, s.window); err != nil {
			slog.Error("Failed to record login attempt", "client_ip", clientIP, "error", err)
		}
		slog.Info("Login failed", "client_ip", clientIP)
		return nil, errInvalidCredentials
	}

	if err := s.limits.Reset(ctx, key); err != nil {
		slog.Error("Failed to reset login attempts", "employee_id", emp.ID, "error", err)
	}

	token, expiresAt, err := s.issue(emp)
	if err != nil {
		return nil, err
	}
	slog.Info("Employee logged in", "employee_id", emp.ID, "role", emp.Role)

	return &Session{Token: token, ExpiresAt: expiresAt, Employee: *emp}, nil
}

func (s *AuthService) issue(emp *employee.Employee) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.tokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Name: emp.Name,
		Role: emp.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   emp.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, expiresAt, nil
}

// Verify parses a bearer token into the calling principal.
func (s *AuthService) Verify(token string) (*employee.Principal, error) {
	if token == "" {
		return nil, errs.Unauthenticated("authentication required")
	}

	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errs.Wrap(errs.KindUnauthenticated, err, "token expired")
		}
		return nil, errs.Wrap(errs.KindUnauthenticated, err, "invalid token")
	}

	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return nil, errs.Wrap(errs.KindUnauthenticated, err, "invalid token subject")
	}
	role, err := employee.ParseRole(c.Role.String())
	if err != nil {
		return nil, errs.Wrap(errs.KindUnauthenticated, err, "invalid token role")
	}

	return &employee.Principal{ID: id, Name: c.Name, Role: role}, nil
}

// CreateEmployee provisions a back-office account.
func (s *AuthService) CreateEmployee(ctx context.Context, name, email, role, password string) (*employee.Employee, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" {
		return nil, errs.Validation("name and email are required")
	}
	r, err := employee.ParseRole(role)
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, err, "role must be one of admin, manager, support")
	}
	if len(password) < minPasswordLength {
		return nil, errs.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	emp := employee.Employee{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		Role:         r,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}
	if err := s.employees.Insert(ctx, emp); err != nil {
		return nil, err
	}
	slog.Info("Employee created", "employee_id", emp.ID, "role", emp.Role)

	return &emp, nil
}
