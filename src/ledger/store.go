package ledger

import (
	"context"
	"time"

	"budgee-ledger/src/models"
)

// Store runs units of work. Work for one user is serialized and atomic;
// different users never block each other.
type Store interface {
	WithinUserTx(ctx context.Context, userID int64, fn func(Tx) error) error
}

// AutomationQueue is the cross-user bookkeeping side of the automation task table.
type AutomationQueue interface {
	DueAutomationTasks(ctx context.Context, now time.Time, limit int) ([]models.AutomationTask, error)
	RetryAutomationTask(ctx context.Context, id int64, lastErr string, next time.Time) error
	FailAutomationTask(ctx context.Context, id int64, lastErr string) error
	PurgeAutomationTasks(ctx context.Context, before time.Time) (int64, error)
}

// UserDirectory lists users that own ledger data.
type UserDirectory interface {
	ListUserIDs(ctx context.Context) ([]int64, error)
}

type TransactionFilter struct {
	Period       *models.Period
	AccountID    *int64
	EnvelopeID   *int64
	Category     string
	AccountType  models.AccountType
	OutflowsOnly bool
	Limit        int
}

type TransferFilter struct {
	FromEnvelopeID *int64
	ToEnvelopeID   *int64
	TransactionIDs []int64
	ReversalOf     []int64
	Kinds          []models.TransferKind
}

// Tx is a unit of work scoped to a single user. Lookups of rows owned by
// another user fail with a NotFound error. ListTransactions returns newest
// first; ListTransfers returns oldest first.
type Tx interface {
	UserID() int64

	ListAccounts(ctx context.Context) ([]models.Account, error)
	GetAccount(ctx context.Context, id int64) (*models.Account, error)
	GetAccountByExternalID(ctx context.Context, externalID string) (*models.Account, error)
	CreateAccount(ctx context.Context, a *models.Account) (*models.Account, error)
	UpdateAccount(ctx context.Context, a *models.Account) (*models.Account, error)
	AdjustAccountBalance(ctx context.Context, id int64, delta models.Cents) error

	ListEnvelopes(ctx context.Context, p models.Period) ([]models.Envelope, error)
	GetEnvelope(ctx context.Context, id int64) (*models.Envelope, error)
	FindEnvelope(ctx context.Context, name string, p models.Period) (*models.Envelope, error)
	CreateEnvelope(ctx context.Context, e *models.Envelope) (*models.Envelope, error)
	SetEnvelopeAllocated(ctx context.Context, id int64, allocated models.Cents) error
	AdjustEnvelopeSpent(ctx context.Context, id int64, delta models.Cents) error
	// DeleteEnvelope unlinks the envelope's transactions and detaches its transfers.
	DeleteEnvelope(ctx context.Context, id int64) error

	ListTransactions(ctx context.Context, f TransactionFilter) ([]models.Transaction, error)
	GetTransaction(ctx context.Context, id int64) (*models.Transaction, error)
	GetTransactionByExternalID(ctx context.Context, externalID string) (*models.Transaction, error)
	CreateTransaction(ctx context.Context, t *models.Transaction) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, t *models.Transaction) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error

	CreateTransfer(ctx context.Context, t *models.Transfer) (*models.Transfer, error)
	ListTransfers(ctx context.Context, f TransferFilter) ([]models.Transfer, error)

	ListGoals(ctx context.Context) ([]models.Goal, error)
	CreateGoal(ctx context.Context, g *models.Goal) (*models.Goal, error)
	DeleteGoal(ctx context.Context, id int64) error

	// EnqueueAutomationTask merges into the pending task for the same
	// envelope and period when one exists.
	EnqueueAutomationTask(ctx context.Context, task models.AutomationTask) (*models.AutomationTask, error)
	GetAutomationTask(ctx context.Context, id int64) (*models.AutomationTask, error)
	CompleteAutomationTask(ctx context.Context, id int64) error

	RecordRollover(ctx context.Context, r models.Rollover) error
	HasRollover(ctx context.Context, from, to models.Period) (bool, error)
}
