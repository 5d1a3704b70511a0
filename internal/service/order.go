package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Skotchmaster/bookstore/internal/events"
	"github.com/Skotchmaster/bookstore/internal/metrics"
	"github.com/Skotchmaster/bookstore/internal/models"
	"github.com/Skotchmaster/bookstore/internal/repo"
	"github.com/Skotchmaster/bookstore/internal/transport"
	"github.com/Skotchmaster/bookstore/pkg/logging"
)

type CommitPolicy struct {
	Timeout     time.Duration
	MaxAttempts int
	Backoff     time.Duration
}

func DefaultCommitPolicy() CommitPolicy {
	return CommitPolicy{
		Timeout:     5 * time.Second,
		MaxAttempts: 3,
		Backoff:     50 * time.Millisecond,
	}
}

func (p CommitPolicy) normalized() CommitPolicy {
	def := DefaultCommitPolicy()
	if p.Timeout <= 0 {
		p.Timeout = def.Timeout
	}
	if p.MaxAttempts < 1 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.Backoff < 0 {
		p.Backoff = 0
	}
	return p
}

// Actor is the verified caller as reported by the auth middleware.
type Actor struct {
	UserID string
	Admin  bool
}

type OrderService struct {
	Repo    *repo.GormRepo
	Events  events.Publisher
	Metrics *metrics.OrderMetrics
	Policy  CommitPolicy
}

// PlaceOrder validates the cart and commits it: stock is reserved and the
// order persisted in one transaction, retried on lost stock races. The bool
// is false when an earlier order was replayed for the same idempotency key.
func (s *OrderService) PlaceOrder(ctx context.Context, actor Actor, req transport.CreateOrderRequest, idemKey string) (*models.Order, bool, error) {
	start := time.Now()

	order, created, err := s.placeOrder(ctx, actor, req, idemKey)

	result := commitResult(err)
	if err == nil && !created {
		result = metrics.ResultReplayed
	}
	s.Metrics.ObserveCommit(result, time.Since(start))

	if err != nil {
		return nil, false, err
	}
	if created {
		s.publish(ctx, events.OrderCreated(order))
	}
	return order, created, nil
}

func (s *OrderService) placeOrder(ctx context.Context, actor Actor, req transport.CreateOrderRequest, idemKey string) (*models.Order, bool, error) {
	if actor.UserID == "" {
		return nil, false, ErrUnauthorized
	}
	if req.UserID != "" && req.UserID != actor.UserID {
		return nil, false, fmt.Errorf("%w: userId does not match authenticated user", ErrForbidden)
	}

	p, err := validatePlacement(req)
	if err != nil {
		return nil, false, err
	}

	idemKey = strings.TrimSpace(idemKey)
	if err := validateIdempotencyKey(idemKey); err != nil {
		return nil, false, err
	}
	var reqHash string
	if idemKey != "" {
		reqHash = p.hash()
	}

	policy := s.Policy.normalized()
	commitCtx, cancel := context.WithTimeout(ctx, policy.Timeout)
	defer cancel()

	l := logging.FromContext(ctx).With("component", "order_commit", "user_id", actor.UserID)

	for attempt := 1; ; attempt++ {
		order, created, err := s.commit(commitCtx, actor.UserID, p, idemKey, reqHash)
		if err == nil {
			return order, created, nil
		}

		if errors.Is(commitCtx.Err(), context.DeadlineExceeded) {
			return nil, false, fmt.Errorf("%w: after %d attempt(s): %v", ErrCommitTimeout, attempt, err)
		}
		if !retryable(err) {
			return nil, false, err
		}
		if attempt >= policy.MaxAttempts {
			return nil, false, fmt.Errorf("%w: gave up after %d attempts: %v", ErrConflict, attempt, err)
		}

		s.Metrics.IncRetry()
		l.Warn("order_commit_retry", "attempt", attempt, "error", err)

		if err := sleepCtx(commitCtx, policy.Backoff*time.Duration(attempt)); err != nil {
			return nil, false, fmt.Errorf("%w: while backing off: %v", ErrCommitTimeout, err)
		}
	}
}

// commit is one attempt of the placement transaction. Lines are processed in
// the order supplied: each product row is locked, checked, then decremented
// with a guarded update whose row count is verified.
func (s *OrderService) commit(ctx context.Context, userID string, p *placement, idemKey, reqHash string) (*models.Order, bool, error) {
	var (
		out     *models.Order
		created bool
	)

	err := s.Repo.InTx(ctx, func(tx *repo.GormRepo) error {
		if idemKey != "" {
			rec, err := tx.FindIdempotencyKey(ctx, userID, idemKey)
			switch {
			case err == nil:
				if rec.RequestHash != reqHash {
					return ErrIdempotencyMismatch
				}
				o, err := tx.GetOrder(ctx, rec.OrderID)
				if err != nil {
					return fmt.Errorf("load replayed order: %w", err)
				}
				out = o
				return nil
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return fmt.Errorf("find idempotency key: %w", err)
			}
		}

		order := &models.Order{
			UserID:          userID,
			ShippingAddress: p.Address,
			PaymentMethod:   p.Payment,
			Status:          models.OrderStatusPending,
		}

		total := decimal.Zero
		for i, line := range p.Lines {
			product, err := tx.LockProduct(ctx, line.ProductID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return &ProductNotFoundError{ProductID: line.ProductID}
				}
				return fmt.Errorf("lock product %s: %w", line.ProductID, err)
			}

			if product.Stock < line.Quantity {
				return &InsufficientStockError{
					ProductID: product.ID,
					Title:     product.Title,
					Available: product.Stock,
					Requested: line.Quantity,
				}
			}

			ok, err := tx.DecrementStock(ctx, product.ID, line.Quantity)
			if err != nil {
				return fmt.Errorf("decrement stock %s: %w", product.ID, err)
			}
			if !ok {
				return fmt.Errorf("%w: stock of product %s changed concurrently", ErrConflict, product.ID)
			}

			item := models.OrderItem{
				Position:  i,
				ProductID: product.ID,
				Quantity:  line.Quantity,
				Price:     product.Price,
			}
			total = total.Add(item.Subtotal())
			order.Items = append(order.Items, item)
		}
		order.TotalAmount = total

		if err := tx.CreateOrder(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		if idemKey != "" {
			rec := &models.IdempotencyKey{
				UserID:      userID,
				Key:         idemKey,
				RequestHash: reqHash,
				OrderID:     order.ID,
			}
			if err := tx.CreateIdempotencyKey(ctx, rec); err != nil {
				if repo.IsUniqueViolation(err) {
					return fmt.Errorf("%w: idempotency key taken concurrently", ErrConflict)
				}
				return fmt.Errorf("create idempotency key: %w", err)
			}
		}

		o, err := tx.GetOrder(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("load created order: %w", err)
		}
		out = o
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, created, nil
}

// SetStatus applies any status from the enumerated set. The transition graph
// is not enforced and cancelling does not return stock.
func (s *OrderService) SetStatus(ctx context.Context, actor Actor, orderID uuid.UUID, status string) (*models.Order, error) {
	if !actor.Admin {
		return nil, fmt.Errorf("%w: admin access required", ErrForbidden)
	}

	next := models.OrderStatus(strings.TrimSpace(status))
	if !next.Valid() {
		verr := &ValidationError{}
		verr.add("status", "must be one of pending, processing, shipped, delivered, cancelled")
		return nil, verr
	}

	prev, err := s.Repo.UpdateStatus(ctx, orderID, next)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update status: %w", err)
	}

	order, err := s.Repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}

	s.Metrics.IncStatusChange(string(next))
	s.publish(ctx, events.StatusChanged(order, prev))
	return order, nil
}

func (s *OrderService) ListOrdersForUser(ctx context.Context, actor Actor) ([]models.Order, error) {
	if actor.UserID == "" {
		return nil, ErrUnauthorized
	}
	orders, err := s.Repo.ListOrdersForUser(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// GetOrder returns the order only when actor owns it.
func (s *OrderService) GetOrder(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	if actor.UserID == "" {
		return nil, ErrUnauthorized
	}
	order, err := s.Repo.GetOrderForUser(ctx, orderID, actor.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

// ListAllOrders is the administrative listing. limit <= 0 returns everything.
func (s *OrderService) ListAllOrders(ctx context.Context, actor Actor, limit, offset int) (int64, []models.Order, error) {
	if !actor.Admin {
		return 0, nil, fmt.Errorf("%w: admin access required", ErrForbidden)
	}
	total, orders, err := s.Repo.ListAllOrders(ctx, limit, offset)
	if err != nil {
		return 0, nil, fmt.Errorf("list all orders: %w", err)
	}
	return total, orders, nil
}

// publish runs after commit; a broker failure never fails the request.
func (s *OrderService) publish(ctx context.Context, ev events.Event) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(context.WithoutCancel(ctx), ev); err != nil {
		logging.FromContext(ctx).Error("order_event_publish_error",
			"type", ev.Type, "order_id", ev.OrderID, "error", err)
	}
}

func retryable(err error) bool {
	return errors.Is(err, ErrConflict) || repo.IsRetryable(err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func commitResult(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, ErrValidation):
		return metrics.ResultValidation
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrUnauthorized):
		return metrics.ResultForbidden
	case errors.Is(err, ErrProductNotFound):
		return metrics.ResultNotFound
	case errors.Is(err, ErrInsufficientStock):
		return metrics.ResultInsufficientStock
	case errors.Is(err, ErrConflict), errors.Is(err, ErrIdempotencyMismatch):
		return metrics.ResultConflict
	case errors.Is(err, ErrCommitTimeout):
		return metrics.ResultTimeout
	default:
		return metrics.ResultError
	}
}
