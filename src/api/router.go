package api

import (
	"net/http"

	"budgee-ledger/src/handlers"
	"budgee-ledger/src/ledger"
	"budgee-ledger/src/logging"
	"budgee-ledger/src/middleware"
	"budgee-ledger/src/plaid"
	"budgee-ledger/src/rules"

	"github.com/go-chi/chi/v5"
)

type Deps struct {
	Ledger *ledger.Service
	Rules  *rules.Service
	// Plaid routes are only mounted when Syncer is set.
	Syncer   *plaid.Syncer
	Webhooks handlers.WebhookVerifier
	Logger   *logging.Logger

	JWTSecret  string
	CORSOrigin string
	IsDemo     bool
}

func NewRouter(d Deps) *chi.Mux {
	log := d.Logger
	if log == nil {
		log = logging.Nop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.CORSMiddleware(d.CORSOrigin))
	r.Use(middleware.DemoModeMiddleware(d.IsDemo))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		if d.Syncer != nil && d.Webhooks != nil {
			r.Post("/plaid/webhook", handlers.PlaidWebhook(d.Webhooks, d.Syncer))
		}

		// Protected routes
		r.With(middleware.JWTAuthMiddleware(d.JWTSecret)).Group(func(r chi.Router) {
			r.Get("/dashboard", handlers.GetDashboard(d.Ledger))

			// Accounts
			r.Get("/accounts", handlers.GetAccounts(d.Ledger))
			r.Post("/accounts", handlers.CreateAccount(d.Ledger))
			r.Patch("/accounts/{account_id}", handlers.UpdateAccount(d.Ledger))

			// Envelopes
			r.Get("/envelopes", handlers.GetEnvelopes(d.Ledger))
			r.Post("/envelopes", handlers.CreateEnvelope(d.Ledger))
			r.Put("/envelopes/allocation", handlers.AllocateByName(d.Ledger))
			r.Post("/envelopes/move", handlers.MoveMoney(d.Ledger))
			r.Post("/envelopes/cover-overspending", handlers.CoverOverspending(d.Ledger))
			r.Delete("/envelopes/{envelope_id}", handlers.DeleteEnvelope(d.Ledger))
			r.Put("/envelopes/{envelope_id}/allocation", handlers.AllocateEnvelope(d.Ledger))
			r.Get("/transfers", handlers.GetTransfers(d.Ledger))
			r.Post("/rollover", handlers.Rollover(d.Ledger))

			// Transactions
			r.Get("/transactions", handlers.GetTransactions(d.Ledger))
			r.Post("/transactions", handlers.CreateTransaction(d.Ledger))
			r.Patch("/transactions/{transaction_id}", handlers.UpdateTransaction(d.Ledger))
			r.Delete("/transactions/{transaction_id}", handlers.DeleteTransaction(d.Ledger))

			// Goals
			r.Get("/goals", handlers.GetGoals(d.Ledger))
			r.Post("/goals", handlers.CreateGoal(d.Ledger))
			r.Delete("/goals/{goal_id}", handlers.DeleteGoal(d.Ledger))

			// Plaid
			if d.Syncer != nil {
				r.Post("/plaid/create-link-token", handlers.CreateLinkToken(d.Syncer))
				r.Post("/plaid/exchange-public-token", handlers.ExchangePublicToken(d.Syncer))
				r.Get("/plaid/items", handlers.GetPlaidItems(d.Syncer))
				r.Delete("/plaid/items/{item_id}", handlers.DeletePlaidItem(d.Syncer))
				r.Post("/plaid/items/{item_id}/sync", handlers.SyncTransactions(d.Syncer))
				r.Post("/plaid/sync", handlers.SyncAllTransactions(d.Syncer))
			}

			// Transaction Rules
			if d.Rules != nil {
				r.Post("/transaction-rules", handlers.CreateTransactionRule(d.Rules))
				r.Post("/transaction-rules/trigger", handlers.TriggerTransactionRules(d.Rules))
				r.Get("/transaction-rules", handlers.GetAllTransactionRules(d.Rules))
				r.Get("/transaction-rules/{rule_id}", handlers.GetTransactionRuleByID(d.Rules))
				r.Put("/transaction-rules/{rule_id}", handlers.UpdateTransactionRule(d.Rules))
				r.Delete("/transaction-rules/{rule_id}", handlers.DeleteTransactionRule(d.Rules))
			}
		})
	})

	return r
}
