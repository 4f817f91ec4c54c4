package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/corray333/frameshop/order/internal/dal/postgres"
	"github.com/corray333/frameshop/order/internal/service/errs"
	"github.com/corray333/frameshop/order/internal/service/models/employee"
)

var employeeColumns = []string{"id", "name", "email", "role", "password_hash", "created_at"}

// EmployeeRepository implements the employee repository for PostgreSQL.
type EmployeeRepository struct {
	conn postgres.Conn
}

func NewEmployeeRepository(conn postgres.Conn) *EmployeeRepository {
	return &EmployeeRepository{
		conn: conn,
	}
}

func (r *EmployeeRepository) Insert(ctx context.Context, e employee.Employee) error {
	query, args, err := sq.Insert("employees").
		Columns(employeeColumns...).
		Values(e.ID, e.Name, e.Email, e.Role.String(), e.PasswordHash, e.CreatedAt).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		if postgres.IsUniqueViolation(err) {
			return errs.Conflict("employee email already registered")
		}
		return postgres.Classify(err, "failed to insert employee")
	}

	return nil
}

// GetByEmail looks the employee up case-insensitively.
func (r *EmployeeRepository) GetByEmail(ctx context.Context, email string) (*employee.Employee, error) {
	return r.getOne(ctx, sq.Expr("lower(email) = ?", strings.ToLower(strings.TrimSpace(email))))
}

func (r *EmployeeRepository) GetByID(ctx context.Context, id uuid.UUID) (*employee.Employee, error) {
	return r.getOne(ctx, sq.Eq{"id": id})
}

func (r *EmployeeRepository) getOne(ctx context.Context, pred sq.Sqlizer) (*employee.Employee, error) {
	query, args, err := sq.Select(employeeColumns...).
		From("employees").
		Where(pred).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	var (
		e    employee.Employee
		role string
	)
	err = r.conn.QueryRow(ctx, query, args...).Scan(&e.ID, &e.Name, &e.Email, &role, &e.PasswordHash, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFound("employee not found")
		}
		return nil, postgres.Classify(err, "failed to get employee")
	}
	e.Role = employee.Role(role)

	return &e, nil
}
