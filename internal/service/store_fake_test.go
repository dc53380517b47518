package service

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/DukeRupert/challan/internal/domain"
)

// memStore is an in-memory domain.Store. InTx restores the previous state
// when fn fails.
type memStore struct {
	mu       sync.Mutex
	txMu     sync.Mutex
	users    map[uuid.UUID]domain.User
	challans map[uuid.UUID]domain.Challan
	payments map[uuid.UUID]domain.Payment

	// conflicts makes the next n SaveChallan calls fail with ECONFLICT.
	conflicts int
	// failTransition makes TransitionChallan fail with an internal error.
	failTransition bool
}

func newMemStore(users ...*domain.User) *memStore {
	s := &memStore{
		users:    map[uuid.UUID]domain.User{},
		challans: map[uuid.UUID]domain.Challan{},
		payments: map[uuid.UUID]domain.Payment{},
	}
	for _, u := range users {
		s.users[u.ID] = *u
	}
	return s
}

func (s *memStore) FindUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.NotFound("store.find_user", "user", id.String())
	}
	return &u, nil
}

func (s *memStore) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, domain.NotFound("store.find_user_by_email", "user", email)
}

func (s *memStore) FindChallanByID(ctx context.Context, id uuid.UUID) (*domain.Challan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challans[id]
	if !ok {
		return nil, domain.NotFound("store.find_challan", "challan", id.String())
	}
	return &c, nil
}

func (s *memStore) SaveChallan(ctx context.Context, c *domain.Challan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conflicts > 0 {
		s.conflicts--
		return domain.Errorf(domain.ECONFLICT, "store.save_challan", "challan number %s already exists", c.Number)
	}
	s.challans[c.ID] = *c
	return nil
}

func (s *memStore) TransitionChallan(ctx context.Context, c *domain.Challan, from domain.ChallanStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failTransition {
		return domain.Internal(context.DeadlineExceeded, "store.transition_challan", "failed to update challan")
	}
	cur, ok := s.challans[c.ID]
	if !ok || cur.Status != from {
		return domain.Errorf(domain.ETRANSITION, "store.transition_challan", "challan %s is no longer %s", c.Number, from)
	}
	s.challans[c.ID] = *c
	return nil
}

func (s *memStore) FindPaymentByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, domain.NotFound("store.find_payment", "payment", id.String())
	}
	return &p, nil
}

func (s *memStore) FindPaymentsByChallan(ctx context.Context, challanID uuid.UUID) ([]domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Payment
	for _, p := range s.payments {
		if p.ChallanID == challanID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memStore) SavePayment(ctx context.Context, p *domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.payments {
		if existing.ChallanID == p.ChallanID && existing.Status == domain.PaymentStatusCompleted {
			return domain.Errorf(domain.ETRANSITION, "store.save_payment", "challan already has a completed payment")
		}
	}
	s.payments[p.ID] = *p
	return nil
}

func (s *memStore) UpdatePayment(ctx context.Context, p *domain.Payment, from domain.PaymentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.payments[p.ID]
	if !ok || cur.Status != from {
		return domain.Errorf(domain.ETRANSITION, "store.update_payment", "payment %s is no longer %s", p.TransactionID, from)
	}
	s.payments[p.ID] = *p
	return nil
}

func (s *memStore) match(q domain.ChallanQuery) []domain.Challan {
	var out []domain.Challan
	for _, c := range s.challans {
		if q.CitizenID != nil && c.CitizenID() != *q.CitizenID {
			continue
		}
		if q.OfficerID != nil && c.OfficerID() != *q.OfficerID {
			continue
		}
		if q.Status != "" && c.Status != q.Status {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *memStore) CountChallans(ctx context.Context, q domain.ChallanQuery) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.match(q))), nil
}

func (s *memStore) ListChallans(ctx context.Context, q domain.ChallanQuery, limit, offset int) ([]domain.Challan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.match(q)
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (s *memStore) SummarizeChallans(ctx context.Context, q domain.ChallanQuery) ([]domain.StatusSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	by := map[domain.ChallanStatus]*domain.StatusSummary{}
	for _, c := range s.match(q) {
		sum, ok := by[c.Status]
		if !ok {
			sum = &domain.StatusSummary{Status: c.Status, Total: decimal.Zero}
			by[c.Status] = sum
		}
		sum.Count++
		sum.Total = sum.Total.Add(c.Fine)
	}
	out := make([]domain.StatusSummary, 0, len(by))
	for _, sum := range by {
		out = append(out, *sum)
	}
	return out, nil
}

func (s *memStore) InTx(ctx context.Context, fn func(domain.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	challans := make(map[uuid.UUID]domain.Challan, len(s.challans))
	for k, v := range s.challans {
		challans[k] = v
	}
	payments := make(map[uuid.UUID]domain.Payment, len(s.payments))
	for k, v := range s.payments {
		payments[k] = v
	}
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.challans, s.payments = challans, payments
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *memStore) paymentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payments)
}

var _ domain.Store = (*memStore)(nil)
