package payments

import (
	"context"
	"sort"
	"sync"
	"time"

	"topgun/internal/notifications"
	"topgun/internal/paygateway"
	"topgun/internal/seats"
)

// memLedger mirrors the gorm repository's semantics in memory
type memLedger struct {
	mu         sync.Mutex
	headers    map[int64]*PaymentHeader
	details    map[int64]*PaymentDetail
	cancels    map[string]*PaymentCancellation
	nextHeader int64
	nextDetail int64
	nextCancel int64

	applyErr error
}

func newMemLedger() *memLedger {
	return &memLedger{
		headers:    make(map[int64]*PaymentHeader),
		details:    make(map[int64]*PaymentDetail),
		cancels:    make(map[string]*PaymentCancellation),
		nextHeader: 100,
		nextDetail: 500,
	}
}

func (m *memLedger) NextHeaderID(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextHeader++
	return m.nextHeader, nil
}

func (m *memLedger) NextDetailID(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextDetail++
	return m.nextDetail, nil
}

func (m *memLedger) InsertHeader(_ context.Context, header *PaymentHeader) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertHeader(header)
}

func (m *memLedger) insertHeader(header *PaymentHeader) error {
	for _, h := range m.headers {
		if h.PaymentTid == header.PaymentTid {
			return ErrAlreadyApproved
		}
	}
	h := *header
	m.headers[h.PaymentNo] = &h
	return nil
}

func (m *memLedger) InsertDetail(_ context.Context, detail *PaymentDetail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := *detail
	m.details[d.PaymentDetailNo] = &d
	return nil
}

func (m *memLedger) CreateApproved(_ context.Context, header *PaymentHeader, details []PaymentDetail) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextHeader++
	header.PaymentNo = m.nextHeader
	header.PaymentRemain = header.PaymentTotal
	header.Status = StatusApproved
	header.Version = 1
	if err := m.insertHeader(header); err != nil {
		m.nextHeader--
		return err
	}
	for i := range details {
		m.nextDetail++
		details[i].PaymentDetailNo = m.nextDetail
		details[i].PaymentDetailOrigin = header.PaymentNo
		details[i].PaymentDetailStatus = DetailStatusApproved
		d := details[i]
		m.details[d.PaymentDetailNo] = &d
	}
	return nil
}

func (m *memLedger) FindHeader(_ context.Context, paymentNo int64) (*PaymentHeader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findHeader(paymentNo)
}

func (m *memLedger) findHeader(paymentNo int64) (*PaymentHeader, error) {
	h, ok := m.headers[paymentNo]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	out := *h
	return &out, nil
}

func (m *memLedger) FindDetail(_ context.Context, detailNo int64) (*PaymentDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.details[detailNo]
	if !ok {
		return nil, ErrDetailNotFound
	}
	out := *d
	return &out, nil
}

func (m *memLedger) ListHeaders(_ context.Context, userID string) ([]PaymentHeader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []PaymentHeader{}
	for _, h := range m.headers {
		if h.UserID == userID {
			out = append(out, *h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentNo > out[j].PaymentNo })
	return out, nil
}

func (m *memLedger) ListDetails(_ context.Context, paymentNo int64) ([]PaymentDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listDetails(paymentNo), nil
}

func (m *memLedger) listDetails(paymentNo int64) []PaymentDetail {
	out := []PaymentDetail{}
	for _, d := range m.details {
		if d.PaymentDetailOrigin == paymentNo {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentDetailNo < out[j].PaymentDetailNo })
	return out
}

func (m *memLedger) ListTotals(ctx context.Context, userID string) ([]PaymentTotal, error) {
	headers, _ := m.ListHeaders(ctx, userID)
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PaymentTotal, 0, len(headers))
	for _, h := range headers {
		out = append(out, PaymentTotal{Payment: h, Details: m.listDetails(h.PaymentNo)})
	}
	return out, nil
}

func (m *memLedger) CancelHeader(_ context.Context, paymentNo int64) (*PaymentHeader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelHeader(paymentNo)
}

func (m *memLedger) cancelHeader(paymentNo int64) (*PaymentHeader, error) {
	h, ok := m.headers[paymentNo]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	if h.PaymentRemain == 0 {
		return nil, ErrAlreadyCancelled
	}
	next, err := Transition(h.Status, EventCancelAll, 0)
	if err != nil {
		return nil, err
	}
	h.PaymentRemain = 0
	h.Status = next
	h.Version++
	for _, d := range m.details {
		if d.PaymentDetailOrigin == paymentNo {
			d.PaymentDetailStatus = DetailStatusCancelled
		}
	}
	out := *h
	return &out, nil
}

func (m *memLedger) CancelDetail(_ context.Context, detailNo int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelDetail(detailNo)
}

func (m *memLedger) cancelDetail(detailNo int64) error {
	d, ok := m.details[detailNo]
	if !ok {
		return ErrDetailNotFound
	}
	if d.IsCancelled() {
		return ErrDetailAlreadyCancelled
	}
	d.PaymentDetailStatus = DetailStatusCancelled
	return nil
}

func (m *memLedger) DecreaseRemaining(ctx context.Context, paymentNo int64, amount int64) error {
	_, err := m.DecrementIfSufficient(ctx, paymentNo, amount)
	return err
}

func (m *memLedger) DecrementIfSufficient(_ context.Context, paymentNo int64, amount int64) (*PaymentHeader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.decrement(paymentNo, amount)
}

func (m *memLedger) decrement(paymentNo int64, amount int64) (*PaymentHeader, error) {
	h, ok := m.headers[paymentNo]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	if h.PaymentRemain == 0 {
		return nil, ErrAlreadyCancelled
	}
	if amount > h.PaymentRemain {
		return nil, ErrInsufficientRemaining
	}
	next, err := Transition(h.Status, EventCancelItem, h.PaymentRemain-amount)
	if err != nil {
		return nil, err
	}
	h.PaymentRemain -= amount
	h.Status = next
	h.Version++
	out := *h
	return &out, nil
}

func (m *memLedger) RecordCancellation(_ context.Context, c *PaymentCancellation) (*PaymentCancellation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.cancels[c.IdempotencyKey]; ok {
		out := *existing
		return &out, nil
	}
	m.nextCancel++
	stored := *c
	stored.ID = m.nextCancel
	m.cancels[c.IdempotencyKey] = &stored
	out := stored
	return &out, nil
}

func (m *memLedger) FindCancellation(_ context.Context, key string) (*PaymentCancellation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cancels[key]
	if !ok {
		return nil, ErrCancellationNotFound
	}
	out := *c
	return &out, nil
}

func (m *memLedger) ListPendingCancellations(_ context.Context, createdBefore time.Time, limit int) ([]PaymentCancellation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []PaymentCancellation
	for _, c := range m.cancels {
		if !c.Applied && c.CreatedAt.Before(createdBefore) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memLedger) ListPendingByPayment(_ context.Context, paymentNo int64) ([]PaymentCancellation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []PaymentCancellation
	for _, c := range m.cancels {
		if !c.Applied && c.PaymentNo == paymentNo {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memLedger) ApplyItemCancellation(_ context.Context, key string) (*PaymentHeader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applyErr != nil {
		return nil, m.applyErr
	}
	c, ok := m.cancels[key]
	if !ok {
		return nil, ErrCancellationNotFound
	}
	if !c.IsItem() {
		return nil, ErrInvalidTransition
	}
	if c.Applied {
		return m.findHeader(c.PaymentNo)
	}

	// validate both effects before touching either
	d, ok := m.details[*c.PaymentDetailNo]
	if !ok {
		return nil, ErrDetailNotFound
	}
	if d.IsCancelled() {
		return nil, ErrDetailAlreadyCancelled
	}
	h, err := m.decrement(c.PaymentNo, c.Amount)
	if err != nil {
		return nil, err
	}
	d.PaymentDetailStatus = DetailStatusCancelled
	m.markApplied(c)
	return h, nil
}

func (m *memLedger) ApplyFullCancellation(_ context.Context, key string) (*PaymentHeader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applyErr != nil {
		return nil, m.applyErr
	}
	c, ok := m.cancels[key]
	if !ok {
		return nil, ErrCancellationNotFound
	}
	if c.IsItem() {
		return nil, ErrInvalidTransition
	}
	if c.Applied {
		return m.findHeader(c.PaymentNo)
	}
	h, err := m.cancelHeader(c.PaymentNo)
	if err != nil {
		return nil, err
	}
	m.markApplied(c)
	return h, nil
}

func (m *memLedger) markApplied(c *PaymentCancellation) {
	now := time.Now().UTC()
	c.Applied = true
	c.AppliedAt = &now
}

func (m *memLedger) UpdateDetail(_ context.Context, detail *PaymentDetail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.details[detail.PaymentDetailNo]
	if !ok {
		return ErrDetailNotFound
	}
	d.PassengerName = detail.PassengerName
	d.PassengerEnglishName = detail.PassengerEnglishName
	d.PassportNumber = detail.PassportNumber
	d.PassengerBirth = detail.PassengerBirth
	d.PassengerGender = detail.PassengerGender
	d.PassengerNationality = detail.PassengerNationality
	return nil
}

// header returns the stored header without copying out through the API
func (m *memLedger) header(paymentNo int64) PaymentHeader {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.headers[paymentNo]
}

type fakeGateway struct {
	mu sync.Mutex

	readyCalls   int
	approveCalls int
	cancelCalls  int
	orderCalls   int

	lastReady     paygateway.ReadyRequest
	cancelAmounts []int64

	approveTotal int64
	cancelErr    error
	approveErr   error
	cancelDelay  time.Duration
}

func (g *fakeGateway) Ready(_ context.Context, req paygateway.ReadyRequest) (*paygateway.ReadyResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.readyCalls++
	g.lastReady = req
	return &paygateway.ReadyResponse{
		TID:               "T-" + req.PartnerOrderID,
		NextRedirectPcURL: "https://pay.example/redirect",
		PartnerOrderID:    req.PartnerOrderID,
		PartnerUserID:     req.PartnerUserID,
	}, nil
}

func (g *fakeGateway) Approve(_ context.Context, req paygateway.ApproveRequest) (*paygateway.ApproveResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.approveCalls++
	if g.approveErr != nil {
		return nil, g.approveErr
	}
	return &paygateway.ApproveResponse{
		AID:            "A-" + req.TID,
		TID:            req.TID,
		PartnerOrderID: req.PartnerOrderID,
		PartnerUserID:  req.PartnerUserID,
		Amount:         paygateway.Amount{Total: g.approveTotal},
		ItemName:       "A1 외 1건",
	}, nil
}

func (g *fakeGateway) Cancel(_ context.Context, req paygateway.CancelRequest) (*paygateway.CancelResponse, error) {
	if g.cancelDelay > 0 {
		time.Sleep(g.cancelDelay)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelCalls++
	if g.cancelErr != nil {
		return nil, g.cancelErr
	}
	g.cancelAmounts = append(g.cancelAmounts, req.CancelAmount)
	return &paygateway.CancelResponse{
		TID:            req.TID,
		Status:         "PART_CANCEL_PAYMENT",
		CanceledAmount: paygateway.Amount{Total: req.CancelAmount},
		ItemName:       "A1 외 1건",
	}, nil
}

func (g *fakeGateway) Order(_ context.Context, req paygateway.OrderRequest) (*paygateway.OrderResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orderCalls++
	return &paygateway.OrderResponse{TID: req.TID, Status: "SUCCESS_PAYMENT"}, nil
}

func (g *fakeGateway) calls() (ready, approve, cancel int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.readyCalls, g.approveCalls, g.cancelCalls
}

type fakeSeats map[int64]*seats.Seat

func (f fakeSeats) FindSeat(_ context.Context, seatNo int64) (*seats.Seat, error) {
	s, ok := f[seatNo]
	if !ok {
		return nil, seats.ErrSeatNotFound
	}
	out := *s
	return &out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*notifications.PaymentEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e *notifications.PaymentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []notifications.PaymentEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]notifications.PaymentEventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

var _ Repository = (*memLedger)(nil)
