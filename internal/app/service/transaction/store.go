package transaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fatflowers/partypay/internal/models"
	"github.com/fatflowers/partypay/pkg/apperr"
	"github.com/fatflowers/partypay/pkg/logctx"
	"github.com/fatflowers/partypay/pkg/metrics"
	"github.com/fatflowers/partypay/pkg/tool"
	"github.com/fatflowers/partypay/pkg/types"
)

var (
	ErrNotFound       = apperr.New(apperr.CodeNotFound, "transaction not found")
	ErrInvalidState   = apperr.New(apperr.CodeInvalidState, "invalid transaction state")
	ErrConcurrent     = apperr.New(apperr.CodeConflict, "transaction was modified concurrently")
	ErrDuplicateOffer = apperr.New(apperr.CodeConflict, "offer already has a transaction")
)

// Store owns reads and guarded writes of the transaction table.
type Store struct {
	db      *gorm.DB
	logDB   *gorm.DB
	log     *zap.SugaredLogger
	metrics *metrics.Payments
}

func NewStore(db *gorm.DB, log *zap.SugaredLogger, m *metrics.Payments) *Store {
	return &Store{db: db, logDB: db, log: log, metrics: m}
}

// WithTx returns a Store that reads and writes through tx. Audit logs still go
// through the root connection.
func (s *Store) WithTx(tx *gorm.DB) *Store {
	cp := *s
	cp.db = tx
	return &cp
}

func (s *Store) Get(ctx context.Context, id string) (*models.Transaction, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *Store) GetByOrderID(ctx context.Context, orderID string) (*models.Transaction, error) {
	if orderID == "" {
		return nil, fmt.Errorf("%w: empty order id", ErrNotFound)
	}
	return s.first(ctx, "payment_intent_id = ?", orderID)
}

func (s *Store) GetByCaptureID(ctx context.Context, captureID string) (*models.Transaction, error) {
	if captureID == "" {
		return nil, fmt.Errorf("%w: empty capture id", ErrNotFound)
	}
	return s.first(ctx, "payment_method_id = ?", captureID)
}

func (s *Store) GetByOfferID(ctx context.Context, offerID string) (*models.Transaction, error) {
	return s.first(ctx, "offer_id = ?", offerID)
}

func (s *Store) GetByIdempotencyKey(ctx context.Context, key string) (*models.Transaction, error) {
	return s.first(ctx, "idempotency_key = ?", key)
}

func (s *Store) first(ctx context.Context, query string, arg any) (*models.Transaction, error) {
	var t models.Transaction
	if err := s.db.WithContext(ctx).Where(query, arg).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrNotFound, arg)
		}
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}
	return &t, nil
}

// Create inserts a new transaction; the offer and idempotency key must be unused.
func (s *Store) Create(ctx context.Context, t *models.Transaction, actor types.Actor) error {
	if t.ID == "" {
		t.ID = tool.GenerateUUIDV7()
	}
	if t.Status == "" {
		t.Status = types.TransactionStatusPending
	}
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: offer %s", ErrDuplicateOffer, t.OfferID)
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	s.saveLog(ctx, nil, t, actor, "created")
	return nil
}

// TransitionRequest moves a transaction to To. From optionally narrows the accepted
// current statuses further than the transition table does.
type TransitionRequest struct {
	ID      string
	From    []types.TransactionStatus
	To      types.TransactionStatus
	Updates map[string]any
	Actor   types.Actor
	Reason  string
}

// Transition applies req with a conditional update on (id, status, version), so two
// concurrent transitions of the same row cannot both succeed.
func (s *Store) Transition(ctx context.Context, req TransitionRequest) (*models.Transaction, error) {
	before, err := s.Get(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(before, req.From, req.To); err != nil {
		return nil, err
	}

	updates := make(map[string]any, len(req.Updates)+3)
	for k, v := range req.Updates {
		updates[k] = v
	}
	updates["status"] = req.To
	updates["version"] = gorm.Expr("version + 1")
	updates["updated_at"] = time.Now()

	after, err := s.guardedUpdate(ctx, before, updates)
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(string(before.Status), string(after.Status))
	logctx.FromCtx(ctx, s.log).Infow("transaction_transition",
		"transaction_id", after.ID, "from", before.Status, "to", after.Status, "actor", req.Actor.Label(), "reason", req.Reason)
	s.saveLog(ctx, before, after, req.Actor, req.Reason)
	return after, nil
}

// Update writes columns without changing status, guarded the same way as Transition.
func (s *Store) Update(ctx context.Context, id string, expected types.TransactionStatus, updates map[string]any) (*models.Transaction, error) {
	before, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if before.Status != expected {
		return nil, fmt.Errorf("%w: transaction %s is %s, expected %s", ErrInvalidState, id, before.Status, expected)
	}
	cols := make(map[string]any, len(updates)+2)
	for k, v := range updates {
		cols[k] = v
	}
	cols["version"] = gorm.Expr("version + 1")
	cols["updated_at"] = time.Now()
	return s.guardedUpdate(ctx, before, cols)
}

func (s *Store) guardedUpdate(ctx context.Context, before *models.Transaction, updates map[string]any) (*models.Transaction, error) {
	res := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ? AND status = ? AND version = ?", before.ID, before.Status, before.Version).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update transaction: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		current, err := s.Get(ctx, before.ID)
		if err != nil {
			return nil, err
		}
		if current.Status != before.Status {
			return nil, fmt.Errorf("%w: transaction %s moved to %s", ErrInvalidState, before.ID, current.Status)
		}
		return nil, fmt.Errorf("%w: transaction %s", ErrConcurrent, before.ID)
	}
	return s.Get(ctx, before.ID)
}

func checkTransition(t *models.Transaction, from []types.TransactionStatus, to types.TransactionStatus) error {
	allowed := len(from) == 0
	for _, st := range from {
		if st == t.Status {
			allowed = true
			break
		}
	}
	if !allowed || !t.Status.CanTransitionTo(to) {
		return fmt.Errorf("%w: transaction %s is %s, cannot move to %s", ErrInvalidState, t.ID, t.Status, to)
	}
	return nil
}

// saveLog writes the audit row asynchronously; errors are logged but not returned.
func (s *Store) saveLog(ctx context.Context, before, after *models.Transaction, actor types.Actor, reason string) {
	entry := &models.TransactionLog{
		ID:            tool.GenerateUUIDV7(),
		TransactionID: after.ID,
		ToStatus:      after.Status,
		Actor:         actor.Label(),
		Reason:        reason,
		Before:        datatypes.NewJSONType(before),
		After:         datatypes.NewJSONType(after),
		TraceID:       logctx.TraceID(ctx),
	}
	if before != nil {
		entry.FromStatus = before.Status
	}
	ctx = logctx.Detached(ctx)
	go func() {
		if err := s.logDB.WithContext(ctx).Create(entry).Error; err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to save transaction log: %v", err)
		}
	}()
}

var Module = fx.Options(
	fx.Provide(NewStore),
)
