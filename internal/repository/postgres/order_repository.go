package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Lixing-Zhang/kart-checkout/internal/models"
	"github.com/Lixing-Zhang/kart-checkout/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

type orderRepository struct {
	db DBTX
}

func NewOrder(pool *pgxpool.Pool) repository.OrderRepository {
	return &orderRepository{db: pool}
}

func NewOrderWithTx(tx pgx.Tx) repository.OrderRepository {
	return &orderRepository{db: tx}
}

func (r *orderRepository) Create(ctx context.Context, order models.Order) (models.Order, error) {
	if order.PaymentGatewayID == "" {
		return models.Order{}, errors.New("paymentGatewayID is empty")
	}

	order.ID = uuid.New()

	created, err := withTx(ctx, r.db, func(tx pgx.Tx) (models.Order, error) {
		var createdAt time.Time

		// the unique payment_gateway_id makes a replayed settlement a no-op insert
		err := tx.QueryRow(ctx,
			`INSERT INTO orders (id, user_id, total_amount, currency, payment_gateway_id, gateway_order_id)
			 VALUES ($1, $2, $3::numeric, $4, $5, $6)
			 ON CONFLICT (payment_gateway_id) DO NOTHING
			 RETURNING created_at`,
			order.ID, order.UserID, order.TotalAmount.String(), order.Currency.String(),
			order.PaymentGatewayID, order.GatewayOrderID,
		).Scan(&createdAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return models.Order{}, fmt.Errorf("q.InsertOrder: %w", repository.ErrDuplicatePayment)
			}
			return models.Order{}, fmt.Errorf("q.InsertOrder: %w", err)
		}

		batch := &pgx.Batch{}
		for i, p := range order.Products {
			batch.Queue(
				`INSERT INTO order_products (order_id, position, product_id, quantity, price)
				 VALUES ($1, $2, $3, $4, $5::numeric)`,
				order.ID, i, p.ProductID, p.Quantity, p.Price.String(),
			)
		}
		if batch.Len() > 0 {
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return models.Order{}, fmt.Errorf("q.InsertOrderProducts: %w", err)
			}
		}

		order.CreatedAt = createdAt
		return order, nil
	})
	if err != nil {
		return models.Order{}, fmt.Errorf("withTx: %w", err)
	}

	return created, nil
}

func (r *orderRepository) GetByPaymentID(ctx context.Context, paymentID string) (models.Order, error) {
	var (
		o        models.Order
		total    string
		currCode string
	)

	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, total_amount::text, currency, payment_gateway_id, gateway_order_id, created_at
		 FROM orders WHERE payment_gateway_id = $1`,
		paymentID,
	).Scan(&o.ID, &o.UserID, &total, &currCode, &o.PaymentGatewayID, &o.GatewayOrderID, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return o, fmt.Errorf("q.GetOrderByPayment: %w", repository.ErrNotFound)
		}
		return o, fmt.Errorf("q.GetOrderByPayment: %w", err)
	}

	if o.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return o, fmt.Errorf("decimal.NewFromString[%s]: %w", total, err)
	}

	if o.Currency, err = currency.ParseISO(currCode); err != nil {
		return o, fmt.Errorf("currency[%s] is not valid: %w", currCode, err)
	}

	products, err := r.getProducts(ctx, o.ID)
	if err != nil {
		return o, fmt.Errorf("r.getProducts: %w", err)
	}
	o.Products = products

	return o, nil
}

func (r *orderRepository) getProducts(ctx context.Context, orderID uuid.UUID) ([]models.OrderProduct, error) {
	rows, err := r.db.Query(ctx,
		`SELECT product_id, quantity, price::text FROM order_products
		 WHERE order_id = $1 ORDER BY position`,
		orderID)
	if err != nil {
		return nil, fmt.Errorf("q.GetOrderProducts: %w", err)
	}
	defer rows.Close()

	var products []models.OrderProduct
	for rows.Next() {
		var (
			p     models.OrderProduct
			price string
		)
		if err := rows.Scan(&p.ProductID, &p.Quantity, &price); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("decimal.NewFromString[%s]: %w", price, err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return products, nil
}
