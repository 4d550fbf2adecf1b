package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/Lixing-Zhang/kart-checkout/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

// Store implements repository.Store on top of a pgx connection pool
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the tables when they do not exist yet
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("pool.Exec schema: %w", err)
	}
	return nil
}

func (s *Store) Coupons() repository.CouponRepository {
	return NewCoupon(s.pool)
}

func (s *Store) Orders() repository.OrderRepository {
	return NewOrder(s.pool)
}

func (s *Store) WithTx(ctx context.Context, fn func(coupons repository.CouponRepository, orders repository.OrderRepository) error) error {
	if err := withTxExec(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(NewCouponWithTx(tx), NewOrderWithTx(tx))
	}); err != nil {
		return fmt.Errorf("withTx: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
