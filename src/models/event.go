package models

type EventKind string

const (
	EventAccountsChanged     EventKind = "accounts-changed"
	EventEnvelopesChanged    EventKind = "envelopes-changed"
	EventTransactionsChanged EventKind = "transactions-changed"
)
