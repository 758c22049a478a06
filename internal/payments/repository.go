package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the payment ledger
type Repository interface {
	NextHeaderID(ctx context.Context) (int64, error)
	NextDetailID(ctx context.Context) (int64, error)
	InsertHeader(ctx context.Context, header *PaymentHeader) error
	InsertDetail(ctx context.Context, detail *PaymentDetail) error

	// CreateApproved allocates ids and writes the header and all of its
	// details in one transaction.
	CreateApproved(ctx context.Context, header *PaymentHeader, details []PaymentDetail) error

	FindHeader(ctx context.Context, paymentNo int64) (*PaymentHeader, error)
	FindDetail(ctx context.Context, detailNo int64) (*PaymentDetail, error)
	ListHeaders(ctx context.Context, userID string) ([]PaymentHeader, error)
	ListDetails(ctx context.Context, paymentNo int64) ([]PaymentDetail, error)
	ListTotals(ctx context.Context, userID string) ([]PaymentTotal, error)

	CancelHeader(ctx context.Context, paymentNo int64) (*PaymentHeader, error)
	CancelDetail(ctx context.Context, detailNo int64) error
	DecreaseRemaining(ctx context.Context, paymentNo int64, amount int64) error
	DecrementIfSufficient(ctx context.Context, paymentNo int64, amount int64) (*PaymentHeader, error)

	RecordCancellation(ctx context.Context, c *PaymentCancellation) (*PaymentCancellation, error)
	FindCancellation(ctx context.Context, key string) (*PaymentCancellation, error)
	ListPendingCancellations(ctx context.Context, createdBefore time.Time, limit int) ([]PaymentCancellation, error)
	ListPendingByPayment(ctx context.Context, paymentNo int64) ([]PaymentCancellation, error)
	ApplyItemCancellation(ctx context.Context, key string) (*PaymentHeader, error)
	ApplyFullCancellation(ctx context.Context, key string) (*PaymentHeader, error)

	UpdateDetail(ctx context.Context, detail *PaymentDetail) error
}

// passengerColumns are the only detail columns UpdateDetail may touch
var passengerColumns = []string{
	"passenger_name",
	"passenger_english_name",
	"passport_number",
	"passenger_birth",
	"passenger_gender",
	"passenger_nationality",
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) transaction(ctx context.Context, fn func(tx *repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&repository{db: tx})
	})
}

// SEQUENCES & INSERTS

func (r *repository) NextHeaderID(ctx context.Context) (int64, error) {
	return r.nextval(ctx, "payment_seq")
}

func (r *repository) NextDetailID(ctx context.Context) (int64, error) {
	return r.nextval(ctx, "payment_detail_seq")
}

func (r *repository) nextval(ctx context.Context, sequence string) (int64, error) {
	var id int64
	if err := r.db.WithContext(ctx).Raw("SELECT nextval(?::regclass)", sequence).Scan(&id).Error; err != nil {
		return 0, fmt.Errorf("failed to allocate id from %s: %w", sequence, err)
	}
	return id, nil
}

func (r *repository) InsertHeader(ctx context.Context, header *PaymentHeader) error {
	err := r.db.WithContext(ctx).Create(header).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrAlreadyApproved
	}
	return err
}

func (r *repository) InsertDetail(ctx context.Context, detail *PaymentDetail) error {
	return r.db.WithContext(ctx).Create(detail).Error
}

func (r *repository) CreateApproved(ctx context.Context, header *PaymentHeader, details []PaymentDetail) error {
	return r.transaction(ctx, func(tx *repository) error {
		paymentNo, err := tx.NextHeaderID(ctx)
		if err != nil {
			return err
		}

		header.PaymentNo = paymentNo
		header.PaymentRemain = header.PaymentTotal
		header.Status = StatusApproved
		header.Version = 1
		if err := tx.InsertHeader(ctx, header); err != nil {
			return err
		}

		for i := range details {
			detailNo, err := tx.NextDetailID(ctx)
			if err != nil {
				return err
			}
			details[i].PaymentDetailNo = detailNo
			details[i].PaymentDetailOrigin = paymentNo
			details[i].PaymentDetailStatus = DetailStatusApproved
			if err := tx.InsertDetail(ctx, &details[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// READS

func (r *repository) FindHeader(ctx context.Context, paymentNo int64) (*PaymentHeader, error) {
	var header PaymentHeader
	err := r.db.WithContext(ctx).First(&header, "payment_no = ?", paymentNo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &header, nil
}

func (r *repository) lockHeader(ctx context.Context, paymentNo int64) (*PaymentHeader, error) {
	var header PaymentHeader
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&header, "payment_no = ?", paymentNo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &header, nil
}

func (r *repository) FindDetail(ctx context.Context, detailNo int64) (*PaymentDetail, error) {
	var detail PaymentDetail
	err := r.db.WithContext(ctx).First(&detail, "payment_detail_no = ?", detailNo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDetailNotFound
		}
		return nil, err
	}
	return &detail, nil
}

func (r *repository) ListHeaders(ctx context.Context, userID string) ([]PaymentHeader, error) {
	headers := []PaymentHeader{}
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("payment_time DESC, payment_no DESC").
		Find(&headers).Error
	return headers, err
}

func (r *repository) ListDetails(ctx context.Context, paymentNo int64) ([]PaymentDetail, error) {
	details := []PaymentDetail{}
	err := r.db.WithContext(ctx).
		Where("payment_detail_origin = ?", paymentNo).
		Order("payment_detail_no ASC").
		Find(&details).Error
	return details, err
}

func (r *repository) ListTotals(ctx context.Context, userID string) ([]PaymentTotal, error) {
	headers, err := r.ListHeaders(ctx, userID)
	if err != nil {
		return nil, err
	}
	totals := make([]PaymentTotal, 0, len(headers))
	if len(headers) == 0 {
		return totals, nil
	}

	numbers := make([]int64, len(headers))
	for i, h := range headers {
		numbers[i] = h.PaymentNo
	}

	var details []PaymentDetail
	err = r.db.WithContext(ctx).
		Where("payment_detail_origin IN ?", numbers).
		Order("payment_detail_no ASC").
		Find(&details).Error
	if err != nil {
		return nil, err
	}

	byOrigin := make(map[int64][]PaymentDetail, len(headers))
	for _, d := range details {
		byOrigin[d.PaymentDetailOrigin] = append(byOrigin[d.PaymentDetailOrigin], d)
	}
	for _, h := range headers {
		lines := byOrigin[h.PaymentNo]
		if lines == nil {
			lines = []PaymentDetail{}
		}
		totals = append(totals, PaymentTotal{Payment: h, Details: lines})
	}
	return totals, nil
}

// MUTATIONS

// CancelHeader zeroes remain and cancels every open line
func (r *repository) CancelHeader(ctx context.Context, paymentNo int64) (*PaymentHeader, error) {
	var out *PaymentHeader
	err := r.transaction(ctx, func(tx *repository) error {
		header, err := tx.lockHeader(ctx, paymentNo)
		if err != nil {
			return err
		}
		if header.PaymentRemain == 0 {
			return ErrAlreadyCancelled
		}
		next, err := Transition(header.Status, EventCancelAll, 0)
		if err != nil {
			return err
		}

		if err := tx.casHeader(ctx, header, 0, next); err != nil {
			return err
		}

		err = tx.db.Model(&PaymentDetail{}).
			Where("payment_detail_origin = ? AND payment_detail_status <> ?", paymentNo, DetailStatusCancelled).
			Update("payment_detail_status", DetailStatusCancelled).Error
		if err != nil {
			return fmt.Errorf("failed to cancel payment details: %w", err)
		}

		out = header
		return nil
	})
	return out, err
}

// CancelDetail flips one line to cancelled; it never flips back
func (r *repository) CancelDetail(ctx context.Context, detailNo int64) error {
	res := r.db.WithContext(ctx).Model(&PaymentDetail{}).
		Where("payment_detail_no = ? AND payment_detail_status <> ?", detailNo, DetailStatusCancelled).
		Update("payment_detail_status", DetailStatusCancelled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.FindDetail(ctx, detailNo); err != nil {
			return err
		}
		return ErrDetailAlreadyCancelled
	}
	return nil
}

func (r *repository) DecreaseRemaining(ctx context.Context, paymentNo int64, amount int64) error {
	_, err := r.DecrementIfSufficient(ctx, paymentNo, amount)
	return err
}

// DecrementIfSufficient subtracts amount under a row lock and refuses to go below zero
func (r *repository) DecrementIfSufficient(ctx context.Context, paymentNo int64, amount int64) (*PaymentHeader, error) {
	if amount <= 0 {
		return nil, ErrInvalidTransition
	}

	var out *PaymentHeader
	err := r.transaction(ctx, func(tx *repository) error {
		header, err := tx.lockHeader(ctx, paymentNo)
		if err != nil {
			return err
		}
		if header.PaymentRemain == 0 {
			return ErrAlreadyCancelled
		}
		if amount > header.PaymentRemain {
			return ErrInsufficientRemaining
		}
		remain := header.PaymentRemain - amount
		next, err := Transition(header.Status, EventCancelItem, remain)
		if err != nil {
			return err
		}
		if err := tx.casHeader(ctx, header, remain, next); err != nil {
			return err
		}
		out = header
		return nil
	})
	return out, err
}

// casHeader writes remain/status guarded by the version read under lock
func (r *repository) casHeader(ctx context.Context, header *PaymentHeader, remain int64, status Status) error {
	res := r.db.WithContext(ctx).Model(&PaymentHeader{}).
		Where("payment_no = ? AND version = ?", header.PaymentNo, header.Version).
		Updates(map[string]interface{}{
			"payment_remain": remain,
			"payment_status": status,
			"version":        gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update payment %d: %w", header.PaymentNo, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConcurrentModification
	}

	header.PaymentRemain = remain
	header.Status = status
	header.Version++
	return nil
}

// CANCELLATION RECORDS

// RecordCancellation stores c unless its key exists, and returns the stored row
func (r *repository) RecordCancellation(ctx context.Context, c *PaymentCancellation) (*PaymentCancellation, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "idempotency_key"}}, DoNothing: true}).
		Create(c).Error
	if err != nil {
		return nil, fmt.Errorf("failed to record cancellation: %w", err)
	}
	return r.FindCancellation(ctx, c.IdempotencyKey)
}

func (r *repository) FindCancellation(ctx context.Context, key string) (*PaymentCancellation, error) {
	var c PaymentCancellation
	err := r.db.WithContext(ctx).First(&c, "idempotency_key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCancellationNotFound
		}
		return nil, err
	}
	return &c, nil
}

// ListPendingCancellations returns the oldest records the ledger has not applied yet
func (r *repository) ListPendingCancellations(ctx context.Context, createdBefore time.Time, limit int) ([]PaymentCancellation, error) {
	var pending []PaymentCancellation
	err := r.db.WithContext(ctx).
		Where("applied = ? AND created_at < ?", false, createdBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&pending).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending cancellations: %w", err)
	}
	return pending, nil
}

// ListPendingByPayment returns one header's unapplied records, oldest first
func (r *repository) ListPendingByPayment(ctx context.Context, paymentNo int64) ([]PaymentCancellation, error) {
	var pending []PaymentCancellation
	err := r.db.WithContext(ctx).
		Where("payment_no = ? AND applied = ?", paymentNo, false).
		Order("id ASC").
		Find(&pending).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending cancellations: %w", err)
	}
	return pending, nil
}

func (r *repository) lockCancellation(ctx context.Context, key string) (*PaymentCancellation, error) {
	var c PaymentCancellation
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&c, "idempotency_key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCancellationNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *repository) markApplied(ctx context.Context, c *PaymentCancellation) error {
	now := time.Now().UTC()
	err := r.db.WithContext(ctx).Model(&PaymentCancellation{}).
		Where("id = ?", c.ID).
		Updates(map[string]interface{}{"applied": true, "applied_at": now}).Error
	if err != nil {
		return fmt.Errorf("failed to mark cancellation applied: %w", err)
	}
	c.Applied = true
	c.AppliedAt = &now
	return nil
}

// ApplyItemCancellation cancels the recorded line and takes its amount off
// remain. Applying an already-applied record is a no-op.
func (r *repository) ApplyItemCancellation(ctx context.Context, key string) (*PaymentHeader, error) {
	var out *PaymentHeader
	err := r.transaction(ctx, func(tx *repository) error {
		c, err := tx.lockCancellation(ctx, key)
		if err != nil {
			return err
		}
		if !c.IsItem() {
			return ErrInvalidTransition
		}
		if c.Applied {
			out, err = tx.FindHeader(ctx, c.PaymentNo)
			return err
		}

		if err := tx.CancelDetail(ctx, *c.PaymentDetailNo); err != nil {
			return err
		}
		header, err := tx.DecrementIfSufficient(ctx, c.PaymentNo, c.Amount)
		if err != nil {
			return err
		}
		if err := tx.markApplied(ctx, c); err != nil {
			return err
		}
		out = header
		return nil
	})
	return out, err
}

// ApplyFullCancellation zeroes the recorded header. Idempotent like ApplyItemCancellation.
func (r *repository) ApplyFullCancellation(ctx context.Context, key string) (*PaymentHeader, error) {
	var out *PaymentHeader
	err := r.transaction(ctx, func(tx *repository) error {
		c, err := tx.lockCancellation(ctx, key)
		if err != nil {
			return err
		}
		if c.IsItem() {
			return ErrInvalidTransition
		}
		if c.Applied {
			out, err = tx.FindHeader(ctx, c.PaymentNo)
			return err
		}

		header, err := tx.CancelHeader(ctx, c.PaymentNo)
		if err != nil {
			return err
		}
		if err := tx.markApplied(ctx, c); err != nil {
			return err
		}
		out = header
		return nil
	})
	return out, err
}

func (r *repository) UpdateDetail(ctx context.Context, detail *PaymentDetail) error {
	res := r.db.WithContext(ctx).Model(&PaymentDetail{}).
		Where("payment_detail_no = ?", detail.PaymentDetailNo).
		Select(passengerColumns).
		Updates(detail)
	if res.Error != nil {
		return fmt.Errorf("failed to update payment detail: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrDetailNotFound
	}
	return nil
}
