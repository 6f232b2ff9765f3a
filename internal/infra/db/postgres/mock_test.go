//go:build !integration

package postgres

import (
	"context"
	"time"

	"coupon-marketplace/internal/domain/model"
	"coupon-marketplace/internal/domain/ports/repository"
	red "coupon-marketplace/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerTemplateRepo mocks the database repository that the template decorator wraps.
type mockInnerTemplateRepo struct {
	CreateFunc             func(ctx context.Context, tx repository.Tx, t *model.CouponTemplate) error
	FindByIDFunc           func(ctx context.Context, tx repository.Tx, id string) (*model.CouponTemplate, error)
	ListByMerchantFunc     func(ctx context.Context, tx repository.Tx, merchantID string) ([]*model.CouponTemplate, error)
	DecrementRemainingFunc func(ctx context.Context, tx repository.Tx, id string) error
	UpdateStatusFunc       func(ctx context.Context, tx repository.Tx, id string, from, to model.TemplateStatus) (bool, error)
}

func (m *mockInnerTemplateRepo) Create(ctx context.Context, tx repository.Tx, t *model.CouponTemplate) error {
	return m.CreateFunc(ctx, tx, t)
}
func (m *mockInnerTemplateRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.CouponTemplate, error) {
	return m.FindByIDFunc(ctx, tx, id)
}
func (m *mockInnerTemplateRepo) ListByMerchant(ctx context.Context, tx repository.Tx, merchantID string) ([]*model.CouponTemplate, error) {
	return m.ListByMerchantFunc(ctx, tx, merchantID)
}
func (m *mockInnerTemplateRepo) DecrementRemaining(ctx context.Context, tx repository.Tx, id string) error {
	return m.DecrementRemainingFunc(ctx, tx, id)
}
func (m *mockInnerTemplateRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, from, to model.TemplateStatus) (bool, error) {
	return m.UpdateStatusFunc(ctx, tx, id, from, to)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc    func(ctx context.Context, key string) (string, error)
	SetFunc    func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc    func(ctx context.Context, keys ...string) error
	PingFunc   func(ctx context.Context) error
	IncrFunc   func(ctx context.Context, key string) (int64, error)
	ExpireFunc func(ctx context.Context, key string, expiration time.Duration) error
	CloseFunc  func() error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return m.PingFunc(ctx) }
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return m.IncrFunc(ctx, key)
}
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return m.ExpireFunc(ctx, key, expiration)
}
func (m *mockRedisClient) Close() error { return m.CloseFunc() }
