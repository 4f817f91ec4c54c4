package iemployeerepo

import (
	"context"

	"github.com/google/uuid"

	"github.com/corray333/frameshop/order/internal/service/models/employee"
)

// IEmployeeRepository is an interface for employee repository.
type IEmployeeRepository interface {
	Insert(ctx context.Context, e employee.Employee) error
	GetByEmail(ctx context.Context, email string) (*employee.Employee, error)
	GetByID(ctx context.Context, id uuid.UUID) (*employee.Employee, error)
}
