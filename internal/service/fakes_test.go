package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/Lixing-Zhang/kart-checkout/internal/events"
	"github.com/Lixing-Zhang/kart-checkout/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeGateway struct {
	mu     sync.Mutex
	orders []models.GatewayOrder
	err    error
}

func (g *fakeGateway) CreateOrder(_ context.Context, order models.GatewayOrder) (models.GatewayOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.err != nil {
		return models.GatewayOrder{}, g.err
	}

	order.ID = "order_test"
	order.Status = "created"
	g.orders = append(g.orders, order)
	return order, nil
}

func (g *fakeGateway) last() models.GatewayOrder {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.orders[len(g.orders)-1]
}

type fakeIssuer struct {
	mu    sync.Mutex
	users []string
	err   error
}

func (i *fakeIssuer) Issue(_ context.Context, userID string) (models.Coupon, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.users = append(i.users, userID)
	if i.err != nil {
		return models.Coupon{}, i.err
	}
	return models.Coupon{Code: "GIFTTEST01", UserID: userID, DiscountPercentage: 10, IsActive: true}, nil
}

func (i *fakeIssuer) issued() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.users...)
}

type fakeFetcher struct {
	order models.GatewayOrder
	err   error
	calls int
}

func (f *fakeFetcher) FetchOrder(_ context.Context, orderID string) (models.GatewayOrder, error) {
	f.calls++
	if f.err != nil {
		return models.GatewayOrder{}, f.err
	}
	order := f.order
	order.ID = orderID
	return order, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.OrderSettled
	err    error
}

func (p *recordingPublisher) PublishOrderSettled(_ context.Context, event events.OrderSettled) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []events.OrderSettled {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.OrderSettled(nil), p.events...)
}

var errBoom = errors.New("boom")

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
