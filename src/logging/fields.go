package logging

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldOperation   = "op"
	FieldRequestID   = "request_id"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
	FieldErrorKind   = "error_kind"
	FieldUserID      = "user_id"
	FieldPeriod      = "period"
	FieldEnvelopeID  = "envelope_id"
	FieldTransaction = "transaction_id"
	FieldAccountID   = "account_id"
	FieldTaskID      = "task_id"
	FieldAmountCents = "amount_cents"
	FieldEventKind   = "event_kind"
	FieldItemID      = "item_id"
)

// Components
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentLedger     = "ledger"
	ComponentAutomation = "automation"
	ComponentRollover   = "rollover"
	ComponentStorage    = "storage"
	ComponentNotify     = "notify"
	ComponentPlaid      = "plaid"
	ComponentCache      = "cache"
	ComponentWorker     = "worker"
)

// Operations
const (
	OpCreate    = "create"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpAllocate  = "allocate"
	OpTransfer  = "transfer"
	OpRollover  = "rollover"
	OpImport    = "import"
	OpCoverage  = "coverage"
	OpReconcile = "reconcile"
	OpPublish   = "publish"
	OpSync      = "sync"
	OpStartup   = "startup"
	OpShutdown  = "shutdown"
)
