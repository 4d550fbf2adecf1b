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
)

const couponColumns = `id, code, discount_percentage, expiration_date, user_id, is_active, created_at`

type couponRepository struct {
	db DBTX
}

func NewCoupon(pool *pgxpool.Pool) repository.CouponRepository {
	return &couponRepository{db: pool}
}

func NewCouponWithTx(tx pgx.Tx) repository.CouponRepository {
	return &couponRepository{db: tx}
}

func (r *couponRepository) FindActive(ctx context.Context, code, userID string) (models.Coupon, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+couponColumns+` FROM coupons
		 WHERE code = $1 AND user_id = $2 AND is_active
		 LIMIT 1`,
		code, userID)

	coupon, err := scanCoupon(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Coupon{}, fmt.Errorf("q.FindActiveCoupon: %w", repository.ErrNotFound)
		}
		return models.Coupon{}, fmt.Errorf("q.FindActiveCoupon: %w", err)
	}

	return coupon, nil
}

func (r *couponRepository) ReplaceForUser(ctx context.Context, coupon models.Coupon) error {
	if coupon.UserID == "" {
		return errors.New("coupon userID is empty")
	}

	if coupon.ID == uuid.Nil {
		coupon.ID = uuid.New()
	}
	if coupon.CreatedAt.IsZero() {
		coupon.CreatedAt = time.Now().UTC()
	}

	if err := withTxExec(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM coupons WHERE user_id = $1`, coupon.UserID); err != nil {
			return fmt.Errorf("q.DeleteUserCoupons: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO coupons (`+couponColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			coupon.ID, coupon.Code, coupon.DiscountPercentage, coupon.ExpirationDate,
			coupon.UserID, coupon.IsActive, coupon.CreatedAt,
		); err != nil {
			return fmt.Errorf("q.InsertCoupon: %w", err)
		}

		return nil
	}); err != nil {
		return fmt.Errorf("withTx: %w", err)
	}

	return nil
}

func (r *couponRepository) Deactivate(ctx context.Context, code, userID string) error {
	if _, err := r.db.Exec(ctx,
		`UPDATE coupons SET is_active = FALSE WHERE code = $1 AND user_id = $2`,
		code, userID,
	); err != nil {
		return fmt.Errorf("q.DeactivateCoupon: %w", err)
	}

	return nil
}

func (r *couponRepository) ListByUser(ctx context.Context, userID string) ([]models.Coupon, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE user_id = $1 ORDER BY created_at`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("q.ListUserCoupons: %w", err)
	}
	defer rows.Close()

	var coupons []models.Coupon
	for rows.Next() {
		coupon, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("scanCoupon: %w", err)
		}
		coupons = append(coupons, coupon)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return coupons, nil
}

func scanCoupon(row pgx.Row) (models.Coupon, error) {
	var c models.Coupon
	err := row.Scan(&c.ID, &c.Code, &c.DiscountPercentage, &c.ExpirationDate, &c.UserID, &c.IsActive, &c.CreatedAt)
	return c, err
}
