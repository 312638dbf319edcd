package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/ariefcatur/marketplace-core/internal/domain"
	kafkax "github.com/ariefcatur/marketplace-core/internal/kafka"
	"github.com/ariefcatur/marketplace-core/internal/metrics"
)

// Service turns carts into per-seller orders and drives the order state machine.
// Publisher, Cache, Idempotency and Summaries are optional.
type Service struct {
	Store       domain.Store
	Publisher   EventPublisher
	Cache       OrderCache
	Idempotency IdempotencyStore
	Summaries   SummaryCache
	Metrics     *metrics.Metrics
	Log         *log.Entry
	ServiceName string

	NewID func() string
	Now   func() time.Time
}

type CheckoutResult struct {
	Orders []domain.Order `json:"orders"`
	// Replayed is set when an idempotency key matched an earlier checkout.
	Replayed bool `json:"-"`
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) logger() *log.Entry {
	if s.Log == nil {
		return log.WithField("component", "orders")
	}
	return s.Log
}

type sellerGroup struct {
	sellerID string
	items    []domain.OrderItem
}

// groupBySeller splits cart lines by product seller. Lines whose product no
// longer exists are returned as orphans.
func groupBySeller(lines []domain.CartItem, products map[string]domain.Product) ([]sellerGroup, []string) {
	bySeller := map[string]*sellerGroup{}
	var orphans []string
	for _, line := range lines {
		p, ok := products[line.ProductID]
		if !ok {
			orphans = append(orphans, line.ProductID)
			continue
		}
		g, ok := bySeller[p.SellerID]
		if !ok {
			g = &sellerGroup{sellerID: p.SellerID}
			bySeller[p.SellerID] = g
		}
		g.items = append(g.items, domain.OrderItem{
			ProductID: line.ProductID,
			Name:      p.Name,
			Quantity:  line.Quantity,
			Price:     line.PriceAtAddition,
		})
	}
	groups := make([]sellerGroup, 0, len(bySeller))
	for _, g := range bySeller {
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].sellerID < groups[j].sellerID })
	return groups, orphans
}

// Checkout creates one pending order per seller in the buyer's cart and
// empties the cart, all in one transaction. Stock is not touched: it was
// reserved when the items were carted.
func (s *Service) Checkout(ctx context.Context, buyerID string, addr domain.ShippingAddress, idemKey string) (res CheckoutResult, err error) {
	started := time.Now()
	defer func() {
		if !res.Replayed {
			s.Metrics.RecordCheckout(len(res.Orders), started, err)
		}
	}()

	if err := addr.Validate(); err != nil {
		return CheckoutResult{}, err
	}
	idemKey = strings.TrimSpace(idemKey)
	if prior, ok := s.replay(ctx, buyerID, idemKey); ok {
		return CheckoutResult{Orders: prior, Replayed: true}, nil
	}

	var created []domain.Order
	var orphans []string
	err = s.Store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		created, orphans = nil, nil
		c, err := tx.Carts().Lock(ctx, buyerID)
		if errors.Is(err, domain.ErrCartNotFound) {
			return domain.ErrEmptyCart
		}
		if err != nil {
			return err
		}
		if len(c.Items) == 0 {
			return domain.ErrEmptyCart
		}

		ids := make([]string, 0, len(c.Items))
		for _, it := range c.Items {
			ids = append(ids, it.ProductID)
		}
		products, err := tx.Products().GetMany(ctx, ids)
		if err != nil {
			return err
		}
		var groups []sellerGroup
		groups, orphans = groupBySeller(c.Items, products)
		if len(groups) == 0 {
			return domain.ErrEmptyCart
		}

		now := s.now()
		for _, g := range groups {
			o := domain.NewOrder(s.newID(), buyerID, g.sellerID, g.items, addr, now)
			if err := tx.Orders().Create(ctx, o); err != nil {
				return fmt.Errorf("create order for seller %s: %w", g.sellerID, err)
			}
			created = append(created, o)
		}
		return tx.Carts().Clear(ctx, buyerID)
	})
	if err != nil {
		return CheckoutResult{}, err
	}

	entry := s.logger().WithFields(log.Fields{"buyer_id": buyerID, "orders": len(created)})
	if len(orphans) > 0 {
		entry.WithField("dropped_products", orphans).Warn("checkout dropped lines of deleted products")
	}
	entry.Info("checkout completed")

	for _, o := range created {
		s.cache(ctx, o)
		s.invalidateSummary(ctx, o.SellerID)
		s.publish(ctx, EventOrderCreated, o.ID, OrderCreatedPayload{
			OrderID:     o.ID,
			BuyerID:     o.BuyerID,
			SellerID:    o.SellerID,
			Status:      o.Status,
			Items:       itemQtys(o.Items),
			TotalAmount: o.TotalAmount,
		})
	}
	s.remember(ctx, buyerID, idemKey, created)
	return CheckoutResult{Orders: created}, nil
}

func (s *Service) replay(ctx context.Context, buyerID, key string) ([]domain.Order, bool) {
	if s.Idempotency == nil || key == "" {
		return nil, false
	}
	ids, ok, err := s.Idempotency.Lookup(ctx, buyerID, key)
	if err != nil {
		s.logger().WithError(err).Warn("idempotency lookup failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	out := make([]domain.Order, 0, len(ids))
	for _, id := range ids {
		o, err := s.Store.Orders().Get(ctx, id)
		if err != nil || o.BuyerID != buyerID {
			s.logger().WithError(err).WithField("order_id", id).Warn("idempotent checkout points at an unusable order")
			return nil, false
		}
		out = append(out, o)
	}
	return out, true
}

func (s *Service) remember(ctx context.Context, buyerID, key string, created []domain.Order) {
	if s.Idempotency == nil || key == "" {
		return
	}
	ids := make([]string, 0, len(created))
	for _, o := range created {
		ids = append(ids, o.ID)
	}
	if err := s.Idempotency.Remember(ctx, buyerID, key, ids); err != nil {
		s.logger().WithError(err).Warn("store idempotency key")
	}
}

// UpdateStatus lets the seller accept or cancel a pending order. Cancelling
// returns every item quantity to stock in the same transaction.
func (s *Service) UpdateStatus(ctx context.Context, sellerID, orderID, status string) (o domain.Order, err error) {
	to, err := domain.ParseTargetStatus(status)
	if err != nil {
		return domain.Order{}, err
	}
	defer func() { s.Metrics.RecordTransition(to, err) }()

	var from domain.OrderStatus
	var restocked []ItemQty
	err = s.Store.InTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		restocked = nil
		cur, err := tx.Orders().Get(ctx, orderID)
		if err != nil {
			return err
		}
		if cur.SellerID != sellerID {
			return domain.ErrForbidden
		}
		if !domain.CanTransition(cur.Status, to) {
			return domain.TransitionError(cur.Status, to)
		}
		s.evict(ctx, orderID)

		at := s.now()
		if err := tx.Orders().UpdateStatus(ctx, orderID, cur.Status, to, at); err != nil {
			return err
		}
		if to == domain.StatusCancelled {
			for _, it := range byProduct(cur.Items) {
				err := tx.Stock().Release(ctx, it.ProductID, it.Quantity)
				if errors.Is(err, domain.ErrProductNotFound) {
					s.logger().WithFields(log.Fields{"order_id": orderID, "product_id": it.ProductID}).
						Warn("cancelled item of a deleted product")
					continue
				}
				if err != nil {
					return err
				}
				restocked = append(restocked, ItemQty{ProductID: it.ProductID, Qty: it.Quantity})
			}
		}

		from = cur.Status
		cur.Status = to
		cur.UpdatedAt = at
		o = cur
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	for _, it := range restocked {
		s.Metrics.RecordReleased(it.Qty)
	}
	s.logger().WithFields(log.Fields{"order_id": orderID, "from": from, "to": to}).Info("order status changed")
	s.cache(ctx, o)
	s.invalidateSummary(ctx, o.SellerID)
	s.publish(ctx, EventOrderStatusChanged, o.ID, OrderStatusChangedPayload{
		OrderID:   o.ID,
		BuyerID:   o.BuyerID,
		SellerID:  o.SellerID,
		From:      from,
		To:        to,
		Restocked: restocked,
	})
	return o, nil
}

// Get returns the order when viewerID is its buyer or seller.
func (s *Service) Get(ctx context.Context, viewerID, orderID string) (domain.Order, error) {
	o, err := s.load(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !o.CanView(viewerID) {
		return domain.Order{}, domain.ErrForbidden
	}
	return o, nil
}

func (s *Service) load(ctx context.Context, orderID string) (domain.Order, error) {
	if s.Cache != nil {
		o, ok, err := s.Cache.Get(ctx, orderID)
		if err != nil {
			s.logger().WithError(err).Warn("order cache read failed")
		} else if ok {
			return o, nil
		}
	}
	// No write back: a read that raced a status change would cache the old status.
	return s.Store.Orders().Get(ctx, orderID)
}

func (s *Service) ListAsBuyer(ctx context.Context, buyerID string) ([]domain.Order, error) {
	out, err := s.Store.Orders().ListByBuyer(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Order{}
	}
	return out, nil
}

func (s *Service) ListAsSeller(ctx context.Context, sellerID string) ([]domain.Order, error) {
	out, err := s.Store.Orders().ListBySeller(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Order{}
	}
	return out, nil
}

// SellerSummary counts the seller's orders per status. The store is the
// source of truth; Summaries only caches its answer.
func (s *Service) SellerSummary(ctx context.Context, sellerID string) (domain.StatusCounts, error) {
	if s.Summaries == nil {
		counts, err := s.Store.Orders().CountBySeller(ctx, sellerID)
		if err != nil {
			return nil, err
		}
		return withAllStatuses(counts), nil
	}

	counts, ok, err := s.Summaries.Get(ctx, sellerID)
	if err != nil {
		s.logger().WithError(err).Warn("seller summary read failed")
	} else if ok {
		return withAllStatuses(counts), nil
	}

	gen, genErr := s.Summaries.Generation(ctx, sellerID)
	counts, err = s.Store.Orders().CountBySeller(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	counts = withAllStatuses(counts)
	if genErr != nil {
		s.logger().WithError(genErr).Warn("seller summary generation read failed")
		return counts, nil
	}
	if err := s.Summaries.Put(ctx, sellerID, gen, counts); err != nil {
		s.logger().WithError(err).Warn("seller summary write failed")
	}
	return counts, nil
}

func withAllStatuses(in domain.StatusCounts) domain.StatusCounts {
	out := domain.StatusCounts{
		domain.StatusPending:   0,
		domain.StatusAccepted:  0,
		domain.StatusCancelled: 0,
	}
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (s *Service) evict(ctx context.Context, orderID string) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Delete(ctx, orderID); err != nil {
		s.logger().WithError(err).WithField("order_id", orderID).Warn("order cache evict failed")
	}
}

func (s *Service) invalidateSummary(ctx context.Context, sellerID string) {
	if s.Summaries == nil {
		return
	}
	if err := s.Summaries.Invalidate(ctx, sellerID); err != nil {
		s.logger().WithError(err).WithField("seller_id", sellerID).Warn("seller summary invalidate failed")
	}
}

// byProduct returns items sorted by product id so stock rows are locked in
// the same order by every transaction.
func byProduct(items []domain.OrderItem) []domain.OrderItem {
	out := append([]domain.OrderItem(nil), items...)
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

func (s *Service) cache(ctx context.Context, o domain.Order) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Set(ctx, o); err != nil {
		s.logger().WithError(err).WithField("order_id", o.ID).Warn("order cache write failed")
	}
}

func (s *Service) publish(ctx context.Context, eventType, orderID string, payload any) {
	if s.Publisher == nil {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  EventVersion,
		OccurredAt:    s.now(),
		Producer:      s.ServiceName,
		TraceID:       middleware.GetReqID(ctx),
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	err := s.Publisher.Publish(ctx, ev)
	s.Metrics.RecordPublished(eventType, err)
	if err != nil {
		s.logger().WithError(err).WithFields(log.Fields{"order_id": orderID, "event_type": eventType}).
			Error("publish order event")
	}
}
