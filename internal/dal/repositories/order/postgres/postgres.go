package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/corray333/frameshop/order/internal/dal/postgres"
	"github.com/corray333/frameshop/order/internal/service/errs"
	"github.com/corray333/frameshop/order/internal/service/models/order"
)

var orderColumns = []string{
	"id",
	"customer_name",
	"customer_email",
	"customer_phone",
	"product_name",
	"product_id",
	"quantity",
	"total_price::text",
	"shipping_address",
	"payment_method",
	"payment_reference",
	"notes",
	"status",
	"shipping_carrier",
	"tracking_number",
	"tracking_url",
	"version",
	"created_at",
	"updated_at",
	"updated_by",
}

// OrderDal represents order data access layer model
type OrderDal struct {
	ID               uuid.UUID
	CustomerName     string
	CustomerEmail    string
	CustomerPhone    string
	ProductName      string
	ProductID        string
	Quantity         int
	TotalPrice       string
	ShippingAddress  string
	PaymentMethod    string
	PaymentReference string
	Notes            string
	Status           string
	ShippingCarrier  *string
	TrackingNumber   *string
	TrackingURL      *string
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
	UpdatedBy        *uuid.UUID
}

// ToModel converts OrderDal to service layer Order model
func (o *OrderDal) ToModel() (*order.Order, error) {
	price, err := decimal.NewFromString(o.TotalPrice)
	if err != nil {
		return nil, fmt.Errorf("failed to parse total price %q: %w", o.TotalPrice, err)
	}
	status, err := order.ParseStatus(o.Status)
	if err != nil {
		return nil, err
	}

	return &order.Order{
		ID:               o.ID,
		CustomerName:     o.CustomerName,
		CustomerEmail:    o.CustomerEmail,
		CustomerPhone:    o.CustomerPhone,
		ProductName:      o.ProductName,
		ProductID:        o.ProductID,
		Quantity:         o.Quantity,
		TotalPrice:       price,
		ShippingAddress:  o.ShippingAddress,
		PaymentMethod:    o.PaymentMethod,
		PaymentReference: o.PaymentReference,
		Notes:            o.Notes,
		Status:           status,
		ShippingCarrier:  o.ShippingCarrier,
		TrackingNumber:   o.TrackingNumber,
		TrackingURL:      o.TrackingURL,
		Version:          o.Version,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
		UpdatedBy:        o.UpdatedBy,
	}, nil
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var dal OrderDal
	err := row.Scan(
		&dal.ID,
		&dal.CustomerName,
		&dal.CustomerEmail,
		&dal.CustomerPhone,
		&dal.ProductName,
		&dal.ProductID,
		&dal.Quantity,
		&dal.TotalPrice,
		&dal.ShippingAddress,
		&dal.PaymentMethod,
		&dal.PaymentReference,
		&dal.Notes,
		&dal.Status,
		&dal.ShippingCarrier,
		&dal.TrackingNumber,
		&dal.TrackingURL,
		&dal.Version,
		&dal.CreatedAt,
		&dal.UpdatedAt,
		&dal.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}

	return dal.ToModel()
}

type PostgresOrderRepository struct {
	conn postgres.Conn
}

func NewPostgresOrderRepository(conn postgres.Conn) *PostgresOrderRepository {
	return &PostgresOrderRepository{
		conn: conn,
	}
}

// Insert stores a new order.
func (r *PostgresOrderRepository) Insert(ctx context.Context, o order.Order) error {
	query, args, err := sq.Insert("orders").
		Columns(
			"id",
			"customer_name",
			"customer_email",
			"customer_phone",
			"product_name",
			"product_id",
			"quantity",
			"total_price",
			"shipping_address",
			"payment_method",
			"payment_reference",
			"notes",
			"status",
			"version",
			"created_at",
			"updated_at",
		).
		Values(
			o.ID,
			o.CustomerName,
			o.CustomerEmail,
			o.CustomerPhone,
			o.ProductName,
			o.ProductID,
			o.Quantity,
			sq.Expr("?::numeric", o.TotalPrice.String()),
			o.ShippingAddress,
			o.PaymentMethod,
			o.PaymentReference,
			o.Notes,
			o.Status.String(),
			o.Version,
			o.CreatedAt,
			o.UpdatedAt,
		).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return postgres.Classify(err, "failed to insert order")
	}

	return nil
}

// Get returns the order with the given id.
func (r *PostgresOrderRepository) Get(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return r.get(ctx, id, "")
}

// GetForUpdate returns the order and holds its row lock until the transaction ends.
func (r *PostgresOrderRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return r.get(ctx, id, "FOR UPDATE")
}

func (r *PostgresOrderRepository) get(ctx context.Context, id uuid.UUID, suffix string) (*order.Order, error) {
	builder := sq.Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar)
	if suffix != "" {
		builder = builder.Suffix(suffix)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	o, err := scanOrder(r.conn.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFound("order not found")
		}
		return nil, postgres.Classify(err, "failed to get order")
	}

	return o, nil
}

// Update writes the mutable fields of o guarded by the version column.
func (r *PostgresOrderRepository) Update(ctx context.Context, o order.Order, expectedVersion int64) error {
	query, args, err := sq.Update("orders").
		Set("status", o.Status.String()).
		Set("shipping_carrier", o.ShippingCarrier).
		Set("tracking_number", o.TrackingNumber).
		Set("tracking_url", o.TrackingURL).
		Set("version", o.Version).
		Set("updated_at", o.UpdatedAt).
		Set("updated_by", o.UpdatedBy).
		Where(sq.Eq{"id": o.ID, "version": expectedVersion}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return postgres.Classify(err, "failed to update order")
	}
	if tag.RowsAffected() == 0 {
		return errs.Conflict("order was modified concurrently")
	}

	return nil
}

// Query retrieves a page of orders matching filter, newest first, and the unpaged total.
func (r *PostgresOrderRepository) Query(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, int, error) {
	where := filterWhere(filter)

	countSQL, countArgs, err := countQuery(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var total int
	if err := r.conn.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, postgres.Classify(err, "failed to count orders")
	}

	query, args, err := pageQuery(filter, where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, postgres.Classify(err, "failed to query orders")
	}
	defer rows.Close()

	result := make([]order.Order, 0, filter.Limit)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan order: %w", err)
		}
		result = append(result, *o)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, postgres.Classify(err, "rows iteration error")
	}

	return result, total, nil
}

// filterWhere matches the status exactly and the search text as a substring of
// the customer name, email or payment reference.
func filterWhere(filter *order.QueryOrdersModel) sq.And {
	where := sq.And{}
	if filter.Status != nil {
		where = append(where, sq.Eq{"status": filter.Status.String()})
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + escapeLike(search) + "%"
		where = append(where, sq.Or{
			sq.ILike{"customer_name": pattern},
			sq.ILike{"customer_email": pattern},
			sq.ILike{"payment_reference": pattern},
		})
	}

	return where
}

func countQuery(where sq.And) sq.SelectBuilder {
	return sq.Select("COUNT(*)").
		From("orders").
		Where(where).
		PlaceholderFormat(sq.Dollar)
}

func pageQuery(filter *order.QueryOrdersModel, where sq.And) sq.SelectBuilder {
	return sq.Select(orderColumns...).
		From("orders").
		Where(where).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(filter.Limit)).
		Offset(uint64(filter.Offset())).
		PlaceholderFormat(sq.Dollar)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
