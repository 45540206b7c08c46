package debts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/iwvelando/payoff/internal/advisor"
	"github.com/iwvelando/payoff/internal/store"
	"github.com/iwvelando/payoff/pkg/amortization"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a debt does not exist.
var ErrNotFound = store.ErrNotFound

// Service is the calling layer over the document store, the calculator and
// the advisor. All collaborators are passed in.
type Service struct {
	store   store.Store
	advisor advisor.Generator
	logger  *zap.Logger
	newID   func() string
}

// NewService constructs a Service.
func NewService(logger *zap.Logger, s store.Store, g advisor.Generator) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if g == nil {
		g = advisor.NewRuleGenerator()
	}
	return &Service{
		store:   s,
		advisor: g,
		logger:  logger,
		newID:   uuid.NewString,
	}
}

func (s *Service) key(userID, id string) store.Key {
	return store.Key{UserID: userID, Collection: Collection, ID: id}
}

// Create stores a new debt, assigning an ID when none is given. A caller
// supplied ID that is already in use yields ErrDebtExists.
func (s *Service) Create(ctx context.Context, userID string, debt Debt) (Debt, error) {
	if err := debt.Validate(); err != nil {
		return Debt{}, err
	}
	if debt.ID == "" {
		debt.ID = s.newID()
	} else if err := s.ensureAbsent(ctx, userID, debt.ID); err != nil {
		return Debt{}, err
	}

	saved, err := s.put(ctx, userID, debt, time.Time{})
	if err != nil {
		return Debt{}, err
	}

	s.logger.Info("debt created",
		zap.String("op", "debts.Create"),
		zap.String("user", userID),
		zap.String("id", saved.ID),
	)
	return saved, nil
}

// Get returns one debt.
func (s *Service) Get(ctx context.Context, userID, id string) (Debt, error) {
	doc, err := s.store.Get(ctx, s.key(userID, id))
	if err != nil {
		return Debt{}, fmt.Errorf("get debt %s: %w", id, err)
	}
	return decode(doc)
}

// List returns the user's debts ordered by ID.
func (s *Service) List(ctx context.Context, userID string) ([]Debt, error) {
	docs, err := s.store.List(ctx, userID, Collection)
	if err != nil {
		return nil, fmt.Errorf("list debts: %w", err)
	}

	debts := make([]Debt, 0, len(docs))
	for _, doc := range docs {
		debt, err := decode(doc)
		if err != nil {
			return nil, err
		}
		debts = append(debts, debt)
	}
	return debts, nil
}

// Update replaces an existing debt, keeping its creation time.
func (s *Service) Update(ctx context.Context, userID, id string, debt Debt) (Debt, error) {
	existing, err := s.Get(ctx, userID, id)
	if err != nil {
		return Debt{}, err
	}
	if err := debt.Validate(); err != nil {
		return Debt{}, err
	}
	debt.ID = id

	saved, err := s.put(ctx, userID, debt, existing.CreatedAt)
	if err != nil {
		return Debt{}, err
	}

	s.logger.Info("debt updated",
		zap.String("op", "debts.Update"),
		zap.String("user", userID),
		zap.String("id", id),
	)
	return saved, nil
}

// Delete removes a debt.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if err := s.store.Delete(ctx, s.key(userID, id)); err != nil {
		return fmt.Errorf("delete debt %s: %w", id, err)
	}

	s.logger.Info("debt deleted",
		zap.String("op", "debts.Delete"),
		zap.String("user", userID),
		zap.String("id", id),
	)
	return nil
}

// Import stores many debts in one atomic batch. Nothing is written when any
// debt is invalid, repeats an ID of the batch, or reuses a stored ID.
func (s *Service) Import(ctx context.Context, userID string, debts []Debt) ([]Debt, error) {
	if len(debts) == 0 {
		return nil, fmt.Errorf("%w: nothing to import", ErrInvalidDebt)
	}

	now := time.Now().UTC()
	batch := store.NewBatch()
	imported := make([]Debt, 0, len(debts))
	seen := make(map[string]int, len(debts))
	for i, debt := range debts {
		if err := debt.Validate(); err != nil {
			return nil, fmt.Errorf("debt %d: %w", i+1, err)
		}
		if debt.ID == "" {
			debt.ID = s.newID()
		} else if err := s.ensureAbsent(ctx, userID, debt.ID); err != nil {
			return nil, fmt.Errorf("debt %d: %w", i+1, err)
		}
		if first, dup := seen[debt.ID]; dup {
			return nil, fmt.Errorf("debt %d: %w: id %q repeats debt %d", i+1, ErrInvalidDebt, debt.ID, first)
		}
		seen[debt.ID] = i + 1
		debt.CreatedAt, debt.UpdatedAt = now, now

		data, err := json.Marshal(debt)
		if err != nil {
			return nil, fmt.Errorf("encode debt %d: %w", i+1, err)
		}
		batch.Set(store.Document{Key: s.key(userID, debt.ID), Data: data})
		imported = append(imported, debt)
	}

	if err := s.store.Commit(ctx, batch); err != nil {
		return nil, fmt.Errorf("import debts: %w", err)
	}

	s.logger.Info("debts imported",
		zap.String("op", "debts.Import"),
		zap.String("user", userID),
		zap.Int("count", len(imported)),
	)
	return imported, nil
}

// Schedule computes the payoff schedule for a stored debt. The calculator's
// sentinel errors are returned unwrapped so callers can tell them apart.
func (s *Service) Schedule(ctx context.Context, userID, id string) (Debt, amortization.Schedule, error) {
	debt, err := s.Get(ctx, userID, id)
	if err != nil {
		return Debt{}, amortization.Schedule{}, err
	}

	schedule, err := amortization.Compute(debt.Input())
	if err != nil {
		s.logger.Debug("no schedule for debt",
			zap.String("op", "debts.Schedule"),
			zap.String("user", userID),
			zap.String("id", id),
			zap.Error(err),
		)
	}
	return debt, schedule, err
}

func (s *Service) ensureAbsent(ctx context.Context, userID, id string) error {
	_, err := s.store.Get(ctx, s.key(userID, id))
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s", ErrDebtExists, id)
	case errors.Is(err, store.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("check debt %s: %w", id, err)
	}
}

func (s *Service) put(ctx context.Context, userID string, debt Debt, createdAt time.Time) (Debt, error) {
	now := time.Now().UTC()
	if createdAt.IsZero() {
		createdAt = now
	}
	debt.CreatedAt, debt.UpdatedAt = createdAt, now

	data, err := json.Marshal(debt)
	if err != nil {
		return Debt{}, fmt.Errorf("encode debt %s: %w", debt.ID, err)
	}
	if _, err := s.store.Put(ctx, store.Document{Key: s.key(userID, debt.ID), Data: data}); err != nil {
		return Debt{}, fmt.Errorf("save debt %s: %w", debt.ID, err)
	}
	return debt, nil
}

func decode(doc store.Document) (Debt, error) {
	var debt Debt
	if err := json.Unmarshal(doc.Data, &debt); err != nil {
		return Debt{}, fmt.Errorf("decode debt %s: %w", doc.ID, err)
	}
	debt.ID = doc.ID
	return debt, nil
}
