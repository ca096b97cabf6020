package ledger

import (
	"testing"

	"budgee-ledger/src/models"

	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	accounts := []models.Account{
		{Name: "Checking", Type: models.AccountTypeCash, Balance: 100000},
		{Name: "Overdrawn", Type: models.AccountTypeCash, Balance: -2500},
		{Name: "Brokerage", Type: models.AccountTypeInvestment, Balance: 50000},
		{Name: "Watched", Type: models.AccountTypeCash, Balance: 99999, JustWatching: true},
		{Name: "Visa", Type: models.AccountTypeCredit, Balance: -12000},
		{Name: "Car", Type: models.AccountTypeLoan, Balance: -300000},
		{Name: "Misc", Type: models.AccountTypeOther, Balance: 700},
	}
	envelopes := []models.Envelope{
		{Name: "Groceries", Allocated: 30000, Spent: 5000},
		{Name: "Dining", Allocated: 10000, Spent: 12000},
		{Name: models.ToBeAssignedName, Allocated: 123456},
	}

	got := Calculate(accounts, envelopes)

	assert.Equal(t, models.Cents(150000), got.Cash)
	assert.Equal(t, models.Cents(-312000), got.Debt)
	assert.Equal(t, models.Cents(-162000), got.NetWorth)
	assert.Equal(t, models.Cents(40000), got.Allocated)
	assert.Equal(t, models.Cents(17000), got.Spent)
	assert.Equal(t, models.Cents(110000), got.ToBeAssigned)
	assert.Equal(t, got.Cash, got.Allocated+got.ToBeAssigned)
}

func TestCalculateIsRepeatable(t *testing.T) {
	accounts := []models.Account{{Type: models.AccountTypeCash, Balance: 100000}}
	envelopes := []models.Envelope{{Name: "Groceries", Allocated: 30000}}

	first := Calculate(accounts, envelopes)
	second := Calculate(accounts, envelopes)
	assert.Equal(t, first, second)
	assert.Equal(t, models.Cents(70000), first.ToBeAssigned)
}
