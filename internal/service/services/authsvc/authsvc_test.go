package authsvc

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/corray333/frameshop/order/internal/dal/memory"
	"github.com/corray333/frameshop/order/internal/service/errs"
	"github.com/corray333/frameshop/order/internal/service/models/employee"
)

func setup(t *testing.T, opts ...option) *AuthService {
	t.Helper()

	base := []option{
		WithMemoryStore(memory.NewStore()),
		WithSigningSecret("test-secret"),
		WithHashCost(bcrypt.MinCost),
		WithLoginLimit(3, time.Minute),
	}
	svc := MustNewAuthService(append(base, opts...)...)

	_, err := svc.CreateEmployee(context.Background(), "Maria Manager", "Maria@Example.com", "manager", "correct-horse")
	require.NoError(t, err)

	return svc
}

func TestLoginAndVerify(t *testing.T) {
	svc := setup(t)

	session, err := svc.Login(context.Background(), " maria@example.com ", "correct-horse", "10.0.0.1")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, employee.RoleManager, session.Employee.Role)

	principal, err := svc.Verify(session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.Employee.ID, principal.ID)
	assert.Equal(t, "Maria Manager", principal.Name)
	assert.Equal(t, employee.RoleManager, principal.Role)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	_, err := svc.Login(ctx, "maria@example.com", "wrong-password", "10.0.0.1")
	assert.True(t, errs.Is(err, errs.KindUnauthenticated))

	_, err = svc.Login(ctx, "nobody@example.com", "correct-horse", "10.0.0.1")
	assert.True(t, errs.Is(err, errs.KindUnauthenticated))

	_, err = svc.Login(ctx, "", "", "10.0.0.1")
	assert.True(t, errs.Is(err, errs.KindValidation))
}

func TestLoginRateLimit(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Login(ctx, "maria@example.com", "wrong-password", "10.0.0.1")
		assert.True(t, errs.Is(err, errs.KindUnauthenticated))
	}

	_, err := svc.Login(ctx, "maria@example.com", "correct-horse", "10.0.0.1")
	assert.True(t, errs.Is(err, errs.KindRateLimited))

	// other clients are not affected
	_, err = svc.Login(ctx, "maria@example.com", "correct-horse", "10.0.0.2")
	assert.NoError(t, err)
}

func TestLoginRateLimitWindowExpires(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	store := memory.NewStore()
	store.SetClock(func() time.Time { return now })
	svc := setup(t, WithMemoryStore(store), WithClock(func() time.Time { return now }))
	ctx := context.Background()

	_, err := svc.CreateEmployee(ctx, "Ann Admin", "ann@example.com", "admin", "correct-horse")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, _ = svc.Login(ctx, "ann@example.com", "nope-nope", "10.0.0.1")
	}
	_, err = svc.Login(ctx, "ann@example.com", "correct-horse", "10.0.0.1")
	assert.True(t, errs.Is(err, errs.KindRateLimited))

	now = now.Add(2 * time.Minute)
	_, err = svc.Login(ctx, "ann@example.com", "correct-horse", "10.0.0.1")
	assert.NoError(t, err)
}

func TestVerifyRejectsExpiredAndForeignTokens(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	svc := setup(t, WithClock(func() time.Time { return now }), WithTokenTTL(time.Minute))

	session, err := svc.Login(context.Background(), "maria@example.com", "correct-horse", "10.0.0.1")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = svc.Verify(session.Token)
	assert.True(t, errs.Is(err, errs.KindUnauthenticated))

	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   session.Employee.ID.String(),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString([]byte("other-secret"))
	require.NoError(t, err)
	_, err = svc.Verify(foreign)
	assert.True(t, errs.Is(err, errs.KindUnauthenticated))

	_, err = svc.Verify("")
	assert.True(t, errs.Is(err, errs.KindUnauthenticated))
}

func TestCreateEmployeeValidation(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	_, err := svc.CreateEmployee(ctx, "X", "x@example.com", "janitor", "correct-horse")
	assert.True(t, errs.Is(err, errs.KindValidation))

	_, err = svc.CreateEmployee(ctx, "X", "x@example.com", "support", "short")
	assert.True(t, errs.Is(err, errs.KindValidation))

	_, err = svc.CreateEmployee(ctx, "Other Maria", "MARIA@example.com", "support", "correct-horse")
	assert.True(t, errs.Is(err, errs.KindConflict))
}
