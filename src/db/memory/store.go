// Package memory is an in-process ledger store. Each user's data sits
// behind its own mutex; a unit of work edits a private copy that replaces
// the user's state only when the work succeeds.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"budgee-ledger/src/ledger"
	"budgee-ledger/src/models"
	"budgee-ledger/src/plaid"
	"budgee-ledger/src/rules"
)

var (
	_ ledger.Store           = (*Store)(nil)
	_ ledger.AutomationQueue = (*Store)(nil)
	_ ledger.UserDirectory   = (*Store)(nil)
	_ ledger.Tx              = (*Tx)(nil)
	_ rules.Store            = (*Store)(nil)
	_ plaid.ItemStore        = (*Store)(nil)
)

type Store struct {
	mu         sync.Mutex
	users      map[int64]*userLedger
	taskOwners map[int64]int64
	itemOwners map[string]int64
	nextID     atomic.Int64
	now        func() time.Time
}

type userLedger struct {
	mu    sync.Mutex
	state *state
}

type state struct {
	accounts     map[int64]models.Account
	envelopes    map[int64]models.Envelope
	transactions map[int64]models.Transaction
	transfers    map[int64]models.Transfer
	goals        map[int64]models.Goal
	tasks        map[int64]models.AutomationTask
	items        map[int64]models.PlaidItem
	rules        map[int64]models.TransactionRule
	rollovers    []models.Rollover
}

func newState() *state {
	return &state{
		accounts:     map[int64]models.Account{},
		envelopes:    map[int64]models.Envelope{},
		transactions: map[int64]models.Transaction{},
		transfers:    map[int64]models.Transfer{},
		goals:        map[int64]models.Goal{},
		tasks:        map[int64]models.AutomationTask{},
		items:        map[int64]models.PlaidItem{},
		rules:        map[int64]models.TransactionRule{},
	}
}

func cloneMap[V any](m map[int64]V) map[int64]V {
	out := make(map[int64]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		accounts:     cloneMap(s.accounts),
		envelopes:    cloneMap(s.envelopes),
		transactions: cloneMap(s.transactions),
		transfers:    cloneMap(s.transfers),
		goals:        cloneMap(s.goals),
		tasks:        cloneMap(s.tasks),
		items:        cloneMap(s.items),
		rules:        cloneMap(s.rules),
		rollovers:    append([]models.Rollover(nil), s.rollovers...),
	}
}

func New() *Store {
	return &Store{
		users:      map[int64]*userLedger{},
		taskOwners: map[int64]int64{},
		itemOwners: map[string]int64{},
		now:        time.Now,
	}
}

// WithClock replaces the store's time source for created/updated stamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) ledgerFor(userID int64) *userLedger {
	s.mu.Lock()
	defer s.mu.Unlock()
	ul, ok := s.users[userID]
	if !ok {
		ul = &userLedger{state: newState()}
		s.users[userID] = ul
	}
	return ul
}

func (s *Store) id() int64 {
	return s.nextID.Add(1)
}

// WithinUserTx runs fn against a copy of the user's state and keeps the
// copy only if fn returns nil.
func (s *Store) WithinUserTx(ctx context.Context, userID int64, fn func(ledger.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ul := s.ledgerFor(userID)
	ul.mu.Lock()
	defer ul.mu.Unlock()

	tx := &Tx{store: s, userID: userID, st: ul.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	ul.state = tx.st
	s.mu.Lock()
	for id := range tx.st.tasks {
		s.taskOwners[id] = userID
	}
	s.mu.Unlock()
	return nil
}

func (s *Store) ListUserIDs(ctx context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Store) owner(m map[int64]int64, id int64) (*userLedger, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := m[id]
	if !ok {
		return nil, false
	}
	return s.users[userID], true
}

func (s *Store) DueAutomationTasks(ctx context.Context, now time.Time, limit int) ([]models.AutomationTask, error) {
	s.mu.Lock()
	users := make([]*userLedger, 0, len(s.users))
	for _, ul := range s.users {
		users = append(users, ul)
	}
	s.mu.Unlock()

	var due []models.AutomationTask
	for _, ul := range users {
		ul.mu.Lock()
		for _, t := range ul.state.tasks {
			if t.Status == models.AutomationPending && !t.NextAttemptAt.After(now) {
				due = append(due, t)
			}
		}
		ul.mu.Unlock()
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].NextAttemptAt.Equal(due[j].NextAttemptAt) {
			return due[i].NextAttemptAt.Before(due[j].NextAttemptAt)
		}
		return due[i].ID < due[j].ID
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *Store) updateTask(id int64, fn func(*models.AutomationTask)) error {
	ul, ok := s.owner(s.taskOwners, id)
	if !ok {
		return ledger.NotFound("automation task", id)
	}
	ul.mu.Lock()
	defer ul.mu.Unlock()
	t, ok := ul.state.tasks[id]
	if !ok {
		return ledger.NotFound("automation task", id)
	}
	fn(&t)
	t.UpdatedAt = s.now()
	// Edits committed state in place; the user's lock is held.
	ul.state.tasks[id] = t
	return nil
}

func (s *Store) RetryAutomationTask(ctx context.Context, id int64, lastErr string, next time.Time) error {
	return s.updateTask(id, func(t *models.AutomationTask) {
		t.Attempts++
		t.LastError = lastErr
		t.NextAttemptAt = next
	})
}

func (s *Store) FailAutomationTask(ctx context.Context, id int64, lastErr string) error {
	return s.updateTask(id, func(t *models.AutomationTask) {
		t.Attempts++
		t.LastError = lastErr
		t.Status = models.AutomationFailed
	})
}

func (s *Store) PurgeAutomationTasks(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	users := make([]*userLedger, 0, len(s.users))
	for _, ul := range s.users {
		users = append(users, ul)
	}
	s.mu.Unlock()

	var purged []int64
	for _, ul := range users {
		ul.mu.Lock()
		for id, t := range ul.state.tasks {
			if t.Status != models.AutomationPending && t.UpdatedAt.Before(before) {
				delete(ul.state.tasks, id)
				purged = append(purged, id)
			}
		}
		ul.mu.Unlock()
	}
	s.mu.Lock()
	for _, id := range purged {
		delete(s.taskOwners, id)
	}
	s.mu.Unlock()
	return int64(len(purged)), nil
}

// Tx is one unit of work for one user.
type Tx struct {
	store  *Store
	userID int64
	st     *state
}

func (tx *Tx) UserID() int64 { return tx.userID }

func (tx *Tx) ListAccounts(ctx context.Context) ([]models.Account, error) {
	out := make([]models.Account, 0, len(tx.st.accounts))
	for _, a := range tx.st.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (tx *Tx) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	a, ok := tx.st.accounts[id]
	if !ok {
		return nil, ledger.NotFound("account", id)
	}
	return &a, nil
}

func (tx *Tx) GetAccountByExternalID(ctx context.Context, externalID string) (*models.Account, error) {
	for _, a := range tx.st.accounts {
		if externalID != "" && a.ExternalID == externalID {
			return &a, nil
		}
	}
	return nil, &ledger.Error{Kind: ledger.KindNotFound, Entity: "account", Msg: fmt.Sprintf("external id %q not found", externalID)}
}

func (tx *Tx) CreateAccount(ctx context.Context, a *models.Account) (*models.Account, error) {
	if a.ExternalID != "" {
		if _, err := tx.GetAccountByExternalID(ctx, a.ExternalID); err == nil {
			return nil, ledger.Conflict("account", "external id %q already exists", a.ExternalID)
		}
	}
	created := *a
	created.ID = tx.store.id()
	created.UserID = tx.userID
	created.CreatedAt = tx.store.now()
	created.UpdatedAt = created.CreatedAt
	tx.st.accounts[created.ID] = created
	return &created, nil
}

func (tx *Tx) UpdateAccount(ctx context.Context, a *models.Account) (*models.Account, error) {
	current, ok := tx.st.accounts[a.ID]
	if !ok {
		return nil, ledger.NotFound("account", a.ID)
	}
	updated := *a
	updated.UserID = tx.userID
	updated.CreatedAt = current.CreatedAt
	updated.UpdatedAt = tx.store.now()
	tx.st.accounts[a.ID] = updated
	return &updated, nil
}

func (tx *Tx) AdjustAccountBalance(ctx context.Context, id int64, delta models.Cents) error {
	a, ok := tx.st.accounts[id]
	if !ok {
		return ledger.NotFound("account", id)
	}
	a.Balance += delta
	a.UpdatedAt = tx.store.now()
	tx.st.accounts[id] = a
	return nil
}

func (tx *Tx) ListEnvelopes(ctx context.Context, p models.Period) ([]models.Envelope, error) {
	var out []models.Envelope
	for _, e := range tx.st.envelopes {
		if e.Period() == p {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (tx *Tx) GetEnvelope(ctx context.Context, id int64) (*models.Envelope, error) {
	e, ok := tx.st.envelopes[id]
	if !ok {
		return nil, ledger.NotFound("envelope", id)
	}
	return &e, nil
}

func (tx *Tx) FindEnvelope(ctx context.Context, name string, p models.Period) (*models.Envelope, error) {
	for _, e := range tx.st.envelopes {
		if e.Period() == p && models.SameName(e.Name, name) {
			return &e, nil
		}
	}
	return nil, &ledger.Error{Kind: ledger.KindNotFound, Entity: "envelope", Msg: fmt.Sprintf("%q not found in %s", name, p)}
}

func (tx *Tx) CreateEnvelope(ctx context.Context, e *models.Envelope) (*models.Envelope, error) {
	if _, err := tx.FindEnvelope(ctx, e.Name, e.Period()); err == nil {
		return nil, ledger.Conflict("envelope", "%q already exists for %s", e.Name, e.Period())
	}
	created := *e
	created.ID = tx.store.id()
	created.UserID = tx.userID
	created.CreatedAt = tx.store.now()
	created.UpdatedAt = created.CreatedAt
	tx.st.envelopes[created.ID] = created
	return &created, nil
}

func (tx *Tx) SetEnvelopeAllocated(ctx context.Context, id int64, allocated models.Cents) error {
	e, ok := tx.st.envelopes[id]
	if !ok {
		return ledger.NotFound("envelope", id)
	}
	e.Allocated = allocated
	e.UpdatedAt = tx.store.now()
	tx.st.envelopes[id] = e
	return nil
}

func (tx *Tx) AdjustEnvelopeSpent(ctx context.Context, id int64, delta models.Cents) error {
	e, ok := tx.st.envelopes[id]
	if !ok {
		return ledger.NotFound("envelope", id)
	}
	e.Spent += delta
	e.UpdatedAt = tx.store.now()
	tx.st.envelopes[id] = e
	return nil
}

func (tx *Tx) DeleteEnvelope(ctx context.Context, id int64) error {
	if _, ok := tx.st.envelopes[id]; !ok {
		return ledger.NotFound("envelope", id)
	}
	delete(tx.st.envelopes, id)
	for tid, t := range tx.st.transactions {
		if t.EnvelopeID != nil && *t.EnvelopeID == id {
			t.EnvelopeID = nil
			tx.st.transactions[tid] = t
		}
	}
	for tid, t := range tx.st.transfers {
		changed := false
		if t.FromEnvelopeID != nil && *t.FromEnvelopeID == id {
			t.FromEnvelopeID = nil
			changed = true
		}
		if t.ToEnvelopeID != nil && *t.ToEnvelopeID == id {
			t.ToEnvelopeID = nil
			changed = true
		}
		if changed {
			tx.st.transfers[tid] = t
		}
	}
	return nil
}

func (tx *Tx) ListTransactions(ctx context.Context, f ledger.TransactionFilter) ([]models.Transaction, error) {
	var out []models.Transaction
	for _, t := range tx.st.transactions {
		if f.Period != nil && t.Period() != *f.Period {
			continue
		}
		if f.AccountID != nil && t.AccountID != *f.AccountID {
			continue
		}
		if f.EnvelopeID != nil && (t.EnvelopeID == nil || *t.EnvelopeID != *f.EnvelopeID) {
			continue
		}
		if f.Category != "" && !strings.EqualFold(strings.TrimSpace(t.Category), strings.TrimSpace(f.Category)) {
			continue
		}
		if f.OutflowsOnly && !t.IsOutflow() {
			continue
		}
		if f.AccountType != "" {
			a, ok := tx.st.accounts[t.AccountID]
			if !ok || a.Type != f.AccountType {
				continue
			}
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (tx *Tx) GetTransaction(ctx context.Context, id int64) (*models.Transaction, error) {
	t, ok := tx.st.transactions[id]
	if !ok {
		return nil, ledger.NotFound("transaction", id)
	}
	return &t, nil
}

func (tx *Tx) GetTransactionByExternalID(ctx context.Context, externalID string) (*models.Transaction, error) {
	for _, t := range tx.st.transactions {
		if externalID != "" && t.ExternalID == externalID {
			return &t, nil
		}
	}
	return nil, &ledger.Error{Kind: ledger.KindNotFound, Entity: "transaction", Msg: fmt.Sprintf("external id %q not found", externalID)}
}

func (tx *Tx) CreateTransaction(ctx context.Context, t *models.Transaction) (*models.Transaction, error) {
	if t.ExternalID != "" {
		if _, err := tx.GetTransactionByExternalID(ctx, t.ExternalID); err == nil {
			return nil, ledger.Conflict("transaction", "external id %q already exists", t.ExternalID)
		}
	}
	created := *t
	created.ID = tx.store.id()
	created.UserID = tx.userID
	created.CreatedAt = tx.store.now()
	created.UpdatedAt = created.CreatedAt
	tx.st.transactions[created.ID] = created
	return &created, nil
}

func (tx *Tx) UpdateTransaction(ctx context.Context, t *models.Transaction) (*models.Transaction, error) {
	current, ok := tx.st.transactions[t.ID]
	if !ok {
		return nil, ledger.NotFound("transaction", t.ID)
	}
	updated := *t
	updated.UserID = tx.userID
	updated.CreatedAt = current.CreatedAt
	updated.UpdatedAt = tx.store.now()
	tx.st.transactions[t.ID] = updated
	return &updated, nil
}

func (tx *Tx) DeleteTransaction(ctx context.Context, id int64) error {
	if _, ok := tx.st.transactions[id]; !ok {
		return ledger.NotFound("transaction", id)
	}
	delete(tx.st.transactions, id)
	for tid, t := range tx.st.transfers {
		if t.TransactionID != nil && *t.TransactionID == id {
			t.TransactionID = nil
			tx.st.transfers[tid] = t
		}
	}
	return nil
}

func (tx *Tx) CreateTransfer(ctx context.Context, t *models.Transfer) (*models.Transfer, error) {
	created := *t
	created.ID = tx.store.id()
	created.UserID = tx.userID
	created.CreatedAt = tx.store.now()
	tx.st.transfers[created.ID] = created
	return &created, nil
}

func (tx *Tx) ListTransfers(ctx context.Context, f ledger.TransferFilter) ([]models.Transfer, error) {
	var out []models.Transfer
	for _, t := range tx.st.transfers {
		if f.FromEnvelopeID != nil && (t.FromEnvelopeID == nil || *t.FromEnvelopeID != *f.FromEnvelopeID) {
			continue
		}
		if f.ToEnvelopeID != nil && (t.ToEnvelopeID == nil || *t.ToEnvelopeID != *f.ToEnvelopeID) {
			continue
		}
		if f.TransactionIDs != nil && (t.TransactionID == nil || !containsID(f.TransactionIDs, *t.TransactionID)) {
			continue
		}
		if f.ReversalOf != nil && (t.ReversalOf == nil || !containsID(f.ReversalOf, *t.ReversalOf)) {
			continue
		}
		if len(f.Kinds) > 0 && !containsKind(f.Kinds, t.Kind) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func containsKind(kinds []models.TransferKind, k models.TransferKind) bool {
	for _, v := range kinds {
		if v == k {
			return true
		}
	}
	return false
}

func (tx *Tx) ListGoals(ctx context.Context) ([]models.Goal, error) {
	out := make([]models.Goal, 0, len(tx.st.goals))
	for _, g := range tx.st.goals {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (tx *Tx) CreateGoal(ctx context.Context, g *models.Goal) (*models.Goal, error) {
	created := *g
	created.ID = tx.store.id()
	created.UserID = tx.userID
	created.CreatedAt = tx.store.now()
	created.UpdatedAt = created.CreatedAt
	tx.st.goals[created.ID] = created
	return &created, nil
}

func (tx *Tx) DeleteGoal(ctx context.Context, id int64) error {
	if _, ok := tx.st.goals[id]; !ok {
		return ledger.NotFound("goal", id)
	}
	delete(tx.st.goals, id)
	return nil
}

func (tx *Tx) EnqueueAutomationTask(ctx context.Context, task models.AutomationTask) (*models.AutomationTask, error) {
	now := tx.store.now()
	for id, t := range tx.st.tasks {
		if t.Status == models.AutomationPending && t.EnvelopeID == task.EnvelopeID && t.Year == task.Year && t.Month == task.Month {
			t.Delta += task.Delta
			t.NextAttemptAt = task.NextAttemptAt
			t.UpdatedAt = now
			tx.st.tasks[id] = t
			return &t, nil
		}
	}
	created := task
	created.ID = tx.store.id()
	created.UserID = tx.userID
	created.Status = models.AutomationPending
	created.CreatedAt = now
	created.UpdatedAt = now
	tx.st.tasks[created.ID] = created
	return &created, nil
}

func (tx *Tx) GetAutomationTask(ctx context.Context, id int64) (*models.AutomationTask, error) {
	t, ok := tx.st.tasks[id]
	if !ok {
		return nil, ledger.NotFound("automation task", id)
	}
	return &t, nil
}

func (tx *Tx) CompleteAutomationTask(ctx context.Context, id int64) error {
	t, ok := tx.st.tasks[id]
	if !ok {
		return ledger.NotFound("automation task", id)
	}
	t.Status = models.AutomationDone
	t.UpdatedAt = tx.store.now()
	tx.st.tasks[id] = t
	return nil
}

func (tx *Tx) RecordRollover(ctx context.Context, r models.Rollover) error {
	for _, existing := range tx.st.rollovers {
		if existing.From == r.From && existing.To == r.To {
			return ledger.Conflict("rollover", "%s to %s already recorded", r.From, r.To)
		}
	}
	r.UserID = tx.userID
	tx.st.rollovers = append(tx.st.rollovers, r)
	return nil
}

func (tx *Tx) HasRollover(ctx context.Context, from, to models.Period) (bool, error) {
	for _, r := range tx.st.rollovers {
		if r.From == from && r.To == to {
			return true, nil
		}
	}
	return false, nil
}
