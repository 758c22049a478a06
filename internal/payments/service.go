package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"topgun/internal/notifications"
	"topgun/internal/paygateway"
	"topgun/internal/seats"
	"topgun/internal/shared/constants"
	"topgun/pkg/cache"
	"topgun/pkg/logger"
)

// SeatLookup resolves seat numbers to their current price and label
type SeatLookup interface {
	FindSeat(ctx context.Context, seatNo int64) (*seats.Seat, error)
}

// Service drives a payment through ready, approve and its cancellations
type Service interface {
	PurchaseReady(ctx context.Context, userID string, req PurchaseRequest) (*ReadyResult, error)
	Approve(ctx context.Context, userID string, req ApproveRequest) (*ApproveResult, error)
	CancelAll(ctx context.Context, userID string, paymentNo int64) (*paygateway.CancelResponse, error)
	CancelItem(ctx context.Context, userID string, detailNo int64) (*paygateway.CancelResponse, error)
	UpdateDetail(ctx context.Context, userID string, detailNo int64, req DetailUpdateRequest) (*PaymentDetail, error)
	ReconcileCancellation(ctx context.Context, userID string, key string) (*PaymentHeader, error)
	SweepPendingCancellations(ctx context.Context, grace time.Duration, limit int) (int, error)

	ListPayments(ctx context.Context, userID string) ([]PaymentHeader, error)
	ListPaymentDetails(ctx context.Context, userID string, paymentNo int64) ([]PaymentDetail, error)
	ListTotals(ctx context.Context, userID string) ([]PaymentTotal, error)
	Order(ctx context.Context, tid string) (*paygateway.OrderResponse, error)
	Detail(ctx context.Context, userID string, paymentNo int64) (*PaymentInfo, error)
}

type service struct {
	repo         Repository
	gateway      paygateway.Gateway
	seats        SeatLookup
	locker       HeaderLocker
	publisher    notifications.PaymentEventPublisher
	cacheService cache.Service
	listTTL      time.Duration
	now          func() time.Time
}

// NewService wires the orchestrator. locker, publisher and cacheService may be nil;
// listTTL <= 0 uses TTL_PAYMENT_LIST.
func NewService(
	repo Repository,
	gateway paygateway.Gateway,
	seatLookup SeatLookup,
	locker HeaderLocker,
	publisher notifications.PaymentEventPublisher,
	cacheService cache.Service,
	listTTL time.Duration,
) Service {
	if locker == nil {
		locker = NewLocalHeaderLocker()
	}
	if publisher == nil {
		publisher = notifications.NoopPublisher{}
	}
	if listTTL <= 0 {
		listTTL = constants.TTL_PAYMENT_LIST
	}
	return &service{
		repo:         repo,
		gateway:      gateway,
		seats:        seatLookup,
		locker:       locker,
		publisher:    publisher,
		cacheService: cacheService,
		listTTL:      listTTL,
		now:          time.Now,
	}
}

// pricedLine is a purchased seat with the price it has right now
type pricedLine struct {
	seat *seats.Seat
	qty  int
}

func (s *service) priceLines(ctx context.Context, list []SeatQty) ([]pricedLine, int64, error) {
	if len(list) == 0 {
		return nil, 0, ErrEmptySeatList
	}

	lines := make([]pricedLine, 0, len(list))
	var total int64
	for _, item := range list {
		if item.Qty <= 0 {
			return nil, 0, ErrInvalidQuantity
		}
		seat, err := s.seats.FindSeat(ctx, item.SeatsNo)
		if err != nil {
			return nil, 0, fmt.Errorf("seat %d: %w", item.SeatsNo, err)
		}
		if !seat.IsAvailable() {
			return nil, 0, fmt.Errorf("seat %d: %w", item.SeatsNo, seats.ErrSeatUnavailable)
		}
		lines = append(lines, pricedLine{seat: seat, qty: item.Qty})
		total += seat.SeatsPrice * int64(item.Qty)
	}
	return lines, total, nil
}

// itemLabel names a checkout after its first line: "A1" or "A1 외 2건"
func itemLabel(lines []pricedLine) string {
	label := lines[0].seat.Label()
	if len(lines) > 1 {
		label = fmt.Sprintf("%s 외 %d건", label, len(lines)-1)
	}
	return label
}

func totalQty(lines []pricedLine) int {
	qty := 0
	for _, l := range lines {
		qty += l.qty
	}
	return qty
}

// PURCHASE

func (s *service) PurchaseReady(ctx context.Context, userID string, req PurchaseRequest) (*ReadyResult, error) {
	lines, total, err := s.priceLines(ctx, req.SeatsList)
	if err != nil {
		return nil, err
	}
	label := itemLabel(lines)

	resp, err := s.gateway.Ready(ctx, paygateway.ReadyRequest{
		PartnerOrderID: paygateway.NewPartnerOrderID(),
		PartnerUserID:  userID,
		ItemName:       label,
		Quantity:       totalQty(lines),
		TotalAmount:    total,
		ApprovalURL:    req.ApprovalURL,
		CancelURL:      req.CancelURL,
		FailURL:        req.FailURL,
	})
	if err != nil {
		return nil, fmt.Errorf("payment ready failed: %w", err)
	}

	return &ReadyResult{
		ReadyResponse: *resp,
		ItemName:      label,
		TotalAmount:   total,
	}, nil
}

func (s *service) Approve(ctx context.Context, userID string, req ApproveRequest) (*ApproveResult, error) {
	// Prices come from the catalogue as it is now, not from ready time.
	// Resolving them first means a vanished seat stops us before money moves.
	lines, expected, err := s.priceLines(ctx, req.SeatsList)
	if err != nil {
		return nil, err
	}

	resp, err := s.gateway.Approve(ctx, paygateway.ApproveRequest{
		TID:            req.TID,
		PartnerOrderID: req.PartnerOrderID,
		PartnerUserID:  userID,
		PgToken:        req.PgToken,
	})
	if err != nil {
		return nil, fmt.Errorf("payment approve failed: %w", err)
	}
	if err := s.checkApprovedAmount(ctx, userID, resp, expected); err != nil {
		return nil, err
	}

	name := resp.ItemName
	if name == "" {
		name = itemLabel(lines)
	}
	paidAt := s.now().UTC()
	if resp.ApprovedAt != nil {
		paidAt = resp.ApprovedAt.UTC()
	}

	header := &PaymentHeader{
		PaymentTid:   resp.TID,
		PaymentName:  name,
		PaymentTotal: resp.Amount.Total,
		UserID:       userID,
		PaymentTime:  paidAt,
	}
	details := make([]PaymentDetail, len(lines))
	for i, l := range lines {
		details[i] = PaymentDetail{
			PaymentDetailSeatsNo: l.seat.SeatsNo,
			PaymentDetailPrice:   l.seat.SeatsPrice,
			PaymentDetailQty:     l.qty,
			PaymentDetailName:    l.seat.Label(),
		}
	}

	if err := s.repo.CreateApproved(ctx, header, details); err != nil {
		logger.GetDefault().ErrorContext(ctx, "approved payment could not be recorded",
			"tid", resp.TID,
			"user_id", userID,
			"total", resp.Amount.Total,
			"error", err,
		)
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	s.invalidateUser(ctx, userID)
	logger.GetDefault().LogPaymentApproved(ctx, header.PaymentNo, header.PaymentTid, userID, header.PaymentTotal)
	s.publish(ctx, notifications.NewPaymentEvent(
		notifications.PaymentEventApproved, header.PaymentNo, userID, header.PaymentTid,
		header.PaymentTotal, header.PaymentRemain,
	))

	return &ApproveResult{ApproveResponse: *resp, PaymentNo: header.PaymentNo}, nil
}

// checkApprovedAmount refuses to record a charge the seat lines do not add up to.
// A charge of the wrong amount is voided so the customer can check out again.
func (s *service) checkApprovedAmount(ctx context.Context, userID string, resp *paygateway.ApproveResponse, expected int64) error {
	total := resp.Amount.Total
	if total <= 0 {
		logger.GetDefault().ErrorContext(ctx, "provider approved without a payable amount; manual follow-up required",
			"tid", resp.TID,
			"user_id", userID,
			"expected", expected,
		)
		return ErrInvalidGatewayAmount
	}
	if total == expected {
		return nil
	}

	logger.GetDefault().ErrorContext(ctx, "approved amount does not match seat prices; voiding charge",
		"tid", resp.TID,
		"user_id", userID,
		"approved", total,
		"expected", expected,
	)
	if _, err := s.gateway.Cancel(ctx, paygateway.CancelRequest{TID: resp.TID, CancelAmount: total}); err != nil {
		logger.GetDefault().ErrorContext(ctx, "failed to void mismatched charge; manual follow-up required",
			"tid", resp.TID,
			"amount", total,
			"error", err,
		)
		return fmt.Errorf("%w (void failed: %v)", ErrAmountMismatch, err)
	}
	return ErrAmountMismatch
}

// CANCELLATION

func (s *service) ownedHeader(ctx context.Context, userID string, paymentNo int64) (*PaymentHeader, error) {
	header, err := s.repo.FindHeader(ctx, paymentNo)
	if err != nil {
		return nil, err
	}
	if !header.OwnedBy(userID) {
		return nil, ErrNotOwner
	}
	return header, nil
}

func (s *service) CancelAll(ctx context.Context, userID string, paymentNo int64) (*paygateway.CancelResponse, error) {
	header, err := s.ownedHeader(ctx, userID, paymentNo)
	if err != nil {
		return nil, err
	}
	if header.FullyCancelled() {
		return nil, ErrAlreadyCancelled
	}

	// Registered before the unlock so events go out after the lock is released
	var events []*notifications.PaymentEvent
	defer func() { s.announce(ctx, userID, events) }()

	unlock, err := s.locker.Lock(ctx, paymentNo)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Item refunds the provider confirmed but the ledger missed leave remain
	// stale, and the provider would refuse a cancel for the stale amount
	caughtUp, err := s.applyPendingItems(ctx, userID, paymentNo)
	events = append(events, caughtUp...)
	if err != nil {
		return nil, err
	}

	// Re-read: another request may have cancelled while we waited
	header, err = s.repo.FindHeader(ctx, paymentNo)
	if err != nil {
		return nil, err
	}
	if header.FullyCancelled() {
		return nil, ErrAlreadyCancelled
	}
	if _, err := Transition(header.Status, EventCancelAll, 0); err != nil {
		return nil, err
	}

	amount := header.PaymentRemain
	key := CancellationKey(header.PaymentTid, nil, amount)

	resp, err := s.pendingCancellation(ctx, key, header, "")
	if err != nil {
		return nil, err
	}
	if resp == nil {
		resp, err = s.gateway.Cancel(ctx, paygateway.CancelRequest{
			TID:          header.PaymentTid,
			CancelAmount: amount,
		})
		if err != nil {
			return nil, fmt.Errorf("payment cancel failed: %w", err)
		}
		if _, err := s.recordCancellation(ctx, header, nil, amount, key); err != nil {
			return nil, err
		}
	}

	updated, err := s.repo.ApplyFullCancellation(ctx, key)
	if err != nil {
		s.logUnapplied(ctx, key, err)
		return nil, fmt.Errorf("failed to apply cancellation: %w", err)
	}

	events = append(events, notifications.NewPaymentEvent(
		notifications.PaymentEventCancelled, paymentNo, userID, header.PaymentTid, amount, updated.PaymentRemain,
	))
	return resp, nil
}

func (s *service) CancelItem(ctx context.Context, userID string, detailNo int64) (*paygateway.CancelResponse, error) {
	detail, err := s.repo.FindDetail(ctx, detailNo)
	if err != nil {
		return nil, err
	}
	header, err := s.ownedHeader(ctx, userID, detail.PaymentDetailOrigin)
	if err != nil {
		return nil, err
	}
	if detail.IsCancelled() {
		return nil, ErrDetailAlreadyCancelled
	}
	if header.FullyCancelled() {
		return nil, ErrAlreadyCancelled
	}

	var events []*notifications.PaymentEvent
	defer func() { s.announce(ctx, userID, events) }()

	unlock, err := s.locker.Lock(ctx, header.PaymentNo)
	if err != nil {
		return nil, err
	}
	defer unlock()

	detail, err = s.repo.FindDetail(ctx, detailNo)
	if err != nil {
		return nil, err
	}
	if detail.IsCancelled() {
		return nil, ErrDetailAlreadyCancelled
	}
	header, err = s.repo.FindHeader(ctx, header.PaymentNo)
	if err != nil {
		return nil, err
	}
	if header.FullyCancelled() {
		return nil, ErrAlreadyCancelled
	}

	money := detail.Amount()
	if money > header.PaymentRemain {
		return nil, ErrInsufficientRemaining
	}
	if _, err := Transition(header.Status, EventCancelItem, header.PaymentRemain-money); err != nil {
		return nil, err
	}

	key := CancellationKey(header.PaymentTid, &detail.PaymentDetailNo, money)

	resp, err := s.pendingCancellation(ctx, key, header, detail.PaymentDetailName)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		resp, err = s.gateway.Cancel(ctx, paygateway.CancelRequest{
			TID:          header.PaymentTid,
			CancelAmount: money,
		})
		if err != nil {
			return nil, fmt.Errorf("payment cancel failed: %w", err)
		}
		resp.ItemName = detail.PaymentDetailName
		if _, err := s.recordCancellation(ctx, header, &detail.PaymentDetailNo, money, key); err != nil {
			return nil, err
		}
	}

	updated, err := s.repo.ApplyItemCancellation(ctx, key)
	if err != nil {
		s.logUnapplied(ctx, key, err)
		return nil, fmt.Errorf("failed to apply cancellation: %w", err)
	}

	events = append(events, notifications.NewPaymentEvent(
		notifications.PaymentEventItemCancelled, header.PaymentNo, userID, header.PaymentTid, money, updated.PaymentRemain,
	).WithDetail(detailNo))
	return resp, nil
}

// pendingCancellation returns a synthesized response when the provider already
// refunded key but the ledger never caught up. nil means no such record.
func (s *service) pendingCancellation(ctx context.Context, key string, header *PaymentHeader, itemName string) (*paygateway.CancelResponse, error) {
	c, err := s.repo.FindCancellation(ctx, key)
	if err != nil {
		if errors.Is(err, ErrCancellationNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if c.Applied {
		// The ledger checks above would have rejected an applied key
		return nil, ErrInvalidTransition
	}

	logger.GetDefault().WarnContext(ctx, "applying previously recorded cancellation",
		"idempotency_key", key,
		"payment_no", header.PaymentNo,
	)

	if itemName == "" {
		itemName = header.PaymentName
	}
	remain := header.PaymentRemain - c.Amount
	return &paygateway.CancelResponse{
		TID:                   header.PaymentTid,
		Status:                cancelStatus(remain),
		ItemName:              itemName,
		CanceledAmount:        paygateway.Amount{Total: c.Amount},
		CancelAvailableAmount: paygateway.Amount{Total: remain},
	}, nil
}

func cancelStatus(remain int64) string {
	if remain == 0 {
		return "CANCEL_PAYMENT"
	}
	return "PART_CANCEL_PAYMENT"
}

func (s *service) recordCancellation(ctx context.Context, header *PaymentHeader, detailNo *int64, amount int64, key string) (*PaymentCancellation, error) {
	c, err := s.repo.RecordCancellation(ctx, &PaymentCancellation{
		PaymentNo:       header.PaymentNo,
		PaymentDetailNo: detailNo,
		TID:             header.PaymentTid,
		Amount:          amount,
		IdempotencyKey:  key,
		CreatedAt:       s.now().UTC(),
	})
	if err != nil {
		// The provider already refunded; only logs can tie the two together now
		logger.GetDefault().ErrorContext(ctx, "refund succeeded but could not be recorded",
			"idempotency_key", key,
			"payment_no", header.PaymentNo,
			"amount", amount,
			"error", err,
		)
		return nil, fmt.Errorf("failed to record cancellation: %w", err)
	}
	return c, nil
}

func (s *service) logUnapplied(ctx context.Context, key string, err error) {
	logger.GetDefault().ErrorContext(ctx, "cancellation recorded but not applied; reconcile required",
		"idempotency_key", key,
		"error", err,
	)
}

// ReconcileCancellation applies a recorded cancellation the ledger never reflected.
// Reconciling an applied record returns the header unchanged.
func (s *service) ReconcileCancellation(ctx context.Context, userID string, key string) (*PaymentHeader, error) {
	c, err := s.repo.FindCancellation(ctx, key)
	if err != nil {
		return nil, err
	}
	header, err := s.ownedHeader(ctx, userID, c.PaymentNo)
	if err != nil {
		return nil, err
	}
	if c.Applied {
		return header, nil
	}
	return s.applyRecorded(ctx, header.UserID, c)
}

// SweepPendingCancellations applies up to limit records left unapplied for longer than grace
func (s *service) SweepPendingCancellations(ctx context.Context, grace time.Duration, limit int) (int, error) {
	pending, err := s.repo.ListPendingCancellations(ctx, s.now().Add(-grace), limit)
	if err != nil {
		return 0, err
	}

	applied := 0
	for i := range pending {
		c := &pending[i]
		header, err := s.repo.FindHeader(ctx, c.PaymentNo)
		if err != nil {
			logger.GetDefault().ErrorContext(ctx, "pending cancellation has no header",
				"idempotency_key", c.IdempotencyKey, "error", err)
			continue
		}
		if _, err := s.applyRecorded(ctx, header.UserID, c); err != nil {
			logger.GetDefault().ErrorContext(ctx, "failed to apply pending cancellation",
				"idempotency_key", c.IdempotencyKey, "error", err)
			continue
		}
		applied++
	}
	return applied, nil
}

// applyRecorded brings the ledger in line with a cancellation the gateway confirmed
func (s *service) applyRecorded(ctx context.Context, userID string, c *PaymentCancellation) (*PaymentHeader, error) {
	var events []*notifications.PaymentEvent
	defer func() { s.announce(ctx, userID, events) }()

	unlock, err := s.locker.Lock(ctx, c.PaymentNo)
	if err != nil {
		return nil, err
	}
	defer unlock()

	header, event, err := s.applyLocked(ctx, userID, c)
	if err != nil {
		return nil, err
	}
	if event != nil {
		events = append(events, event)
	}
	return header, nil
}

// applyPendingItems applies every unapplied item cancellation of one header.
// The caller holds the header lock.
func (s *service) applyPendingItems(ctx context.Context, userID string, paymentNo int64) ([]*notifications.PaymentEvent, error) {
	pending, err := s.repo.ListPendingByPayment(ctx, paymentNo)
	if err != nil {
		return nil, err
	}

	var events []*notifications.PaymentEvent
	for i := range pending {
		c := &pending[i]
		if !c.IsItem() {
			continue
		}
		logger.GetDefault().WarnContext(ctx, "applying pending item cancellation before full cancel",
			"idempotency_key", c.IdempotencyKey,
			"payment_no", paymentNo,
		)
		_, event, err := s.applyLocked(ctx, userID, c)
		if err != nil {
			return events, fmt.Errorf("pending cancellation %s: %w", c.IdempotencyKey, err)
		}
		if event != nil {
			events = append(events, event)
		}
	}
	return events, nil
}

// applyLocked applies c with the header lock held. The event is nil when
// someone else already applied it.
func (s *service) applyLocked(ctx context.Context, userID string, c *PaymentCancellation) (*PaymentHeader, *notifications.PaymentEvent, error) {
	current, err := s.repo.FindCancellation(ctx, c.IdempotencyKey)
	if err != nil {
		return nil, nil, err
	}
	if current.Applied {
		header, err := s.repo.FindHeader(ctx, c.PaymentNo)
		return header, nil, err
	}

	var header *PaymentHeader
	eventType := notifications.PaymentEventCancelled
	if c.IsItem() {
		eventType = notifications.PaymentEventItemCancelled
		header, err = s.repo.ApplyItemCancellation(ctx, c.IdempotencyKey)
	} else {
		header, err = s.repo.ApplyFullCancellation(ctx, c.IdempotencyKey)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to apply cancellation: %w", err)
	}

	event := notifications.NewPaymentEvent(eventType, c.PaymentNo, userID, c.TID, c.Amount, header.PaymentRemain)
	if c.IsItem() {
		event = event.WithDetail(*c.PaymentDetailNo)
	}
	return header, event, nil
}

// DETAIL UPDATE

func (s *service) UpdateDetail(ctx context.Context, userID string, detailNo int64, req DetailUpdateRequest) (*PaymentDetail, error) {
	detail, err := s.repo.FindDetail(ctx, detailNo)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedHeader(ctx, userID, detail.PaymentDetailOrigin); err != nil {
		return nil, err
	}

	req.apply(detail)
	if err := s.repo.UpdateDetail(ctx, detail); err != nil {
		return nil, err
	}

	s.invalidateUser(ctx, userID)
	return detail, nil
}

// READS

func (s *service) ListPayments(ctx context.Context, userID string) ([]PaymentHeader, error) {
	if s.cacheService == nil {
		return s.repo.ListHeaders(ctx, userID)
	}

	var headers []PaymentHeader
	err := s.cacheService.GetOrSet(ctx, constants.BuildPaymentListKey(userID), s.listTTL,
		func() (interface{}, error) {
			return s.repo.ListHeaders(ctx, userID)
		}, &headers)
	if err != nil {
		return nil, err
	}
	return headers, nil
}

func (s *service) ListPaymentDetails(ctx context.Context, userID string, paymentNo int64) ([]PaymentDetail, error) {
	if _, err := s.ownedHeader(ctx, userID, paymentNo); err != nil {
		return nil, err
	}
	return s.repo.ListDetails(ctx, paymentNo)
}

func (s *service) ListTotals(ctx context.Context, userID string) ([]PaymentTotal, error) {
	if s.cacheService == nil {
		return s.repo.ListTotals(ctx, userID)
	}

	var totals []PaymentTotal
	err := s.cacheService.GetOrSet(ctx, constants.BuildPaymentTotalsKey(userID), s.listTTL,
		func() (interface{}, error) {
			return s.repo.ListTotals(ctx, userID)
		}, &totals)
	if err != nil {
		return nil, err
	}
	return totals, nil
}

func (s *service) Order(ctx context.Context, tid string) (*paygateway.OrderResponse, error) {
	resp, err := s.gateway.Order(ctx, paygateway.OrderRequest{TID: tid})
	if err != nil {
		return nil, fmt.Errorf("payment order lookup failed: %w", err)
	}
	return resp, nil
}

func (s *service) Detail(ctx context.Context, userID string, paymentNo int64) (*PaymentInfo, error) {
	header, err := s.ownedHeader(ctx, userID, paymentNo)
	if err != nil {
		return nil, err
	}
	details, err := s.repo.ListDetails(ctx, paymentNo)
	if err != nil {
		return nil, err
	}
	order, err := s.Order(ctx, header.PaymentTid)
	if err != nil {
		return nil, err
	}
	return &PaymentInfo{Payment: header, Details: details, Order: order}, nil
}

// HELPERS

func (s *service) invalidateUser(ctx context.Context, userID string) {
	if s.cacheService == nil {
		return
	}
	err := s.cacheService.Delete(ctx,
		constants.BuildPaymentListKey(userID),
		constants.BuildPaymentTotalsKey(userID),
	)
	if err != nil {
		logger.GetDefault().WarnContext(ctx, "failed to invalidate payment cache", "user_id", userID, "error", err)
	}
}

// announce reports applied cancellations. Callers run it after releasing the header lock.
func (s *service) announce(ctx context.Context, userID string, events []*notifications.PaymentEvent) {
	if len(events) == 0 {
		return
	}
	s.invalidateUser(ctx, userID)
	for _, e := range events {
		var detailNo int64
		if e.DetailNo != nil {
			detailNo = *e.DetailNo
		}
		logger.GetDefault().LogPaymentCancelled(ctx, e.PaymentNo, detailNo, e.Amount, e.Remaining, userID)
		s.publish(ctx, e)
	}
}

func (s *service) publish(ctx context.Context, event *notifications.PaymentEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.GetDefault().WarnContext(ctx, "failed to publish payment event",
			"event_type", event.Type,
			"payment_no", event.PaymentNo,
			"error", err,
		)
	}
}
