package plaid

import (
	"fmt"
	"strings"
	"time"

	"budgee-ledger/src/ledger"
	"budgee-ledger/src/models"
	"budgee-ledger/src/rules"
)

// Personal finance categories that mark money arriving to be budgeted.
var incomeCategories = map[string]bool{
	"INCOME":      true,
	"TRANSFER_IN": true,
}

// AccountType maps a Plaid account type onto the ledger's account types.
func AccountType(plaidType string) models.AccountType {
	switch strings.ToLower(plaidType) {
	case "depository":
		return models.AccountTypeCash
	case "credit":
		return models.AccountTypeCredit
	case "loan":
		return models.AccountTypeLoan
	case "investment", "brokerage":
		return models.AccountTypeInvestment
	default:
		return models.AccountTypeOther
	}
}

// NormalizeAccount converts a Plaid account. Plaid reports what is owed on
// credit and loan accounts as a positive balance; the ledger stores it negative.
func NormalizeAccount(itemID *int64, ra RemoteAccount) ledger.ImportedAccount {
	typ := AccountType(ra.Type)
	var balance models.Cents
	if ra.Current != nil {
		balance = models.CentsFromFloat(*ra.Current)
	}
	if typ.IsLiability() {
		balance = -balance
	}
	var available *models.Cents
	if ra.Available != nil {
		a := models.CentsFromFloat(*ra.Available)
		available = &a
	}
	name := ra.Name
	if name == "" {
		name = ra.OfficialName
	}
	return ledger.ImportedAccount{
		ItemID:       itemID,
		ExternalID:   ra.ID,
		Name:         name,
		OfficialName: ra.OfficialName,
		Mask:         ra.Mask,
		Type:         typ,
		Subtype:      ra.Subtype,
		Balance:      balance,
		Available:    available,
	}
}

type accountRef struct {
	typ  models.AccountType
	name string
}

// Normalizer turns Plaid transactions into ledger imports for one user.
type Normalizer struct {
	accounts map[string]accountRef
	matcher  *rules.Matcher
}

func NewNormalizer(matcher *rules.Matcher) *Normalizer {
	return &Normalizer{accounts: map[string]accountRef{}, matcher: matcher}
}

// AddAccount registers the ledger type of a Plaid account id. Transactions
// on unregistered accounts are treated as cash.
func (n *Normalizer) AddAccount(externalID string, typ models.AccountType, name string) {
	n.accounts[externalID] = accountRef{typ: typ, name: name}
}

// Transaction converts one Plaid transaction. Credit and loan amounts keep
// Plaid's sign; every other account type has it inverted.
func (n *Normalizer) Transaction(rt RemoteTransaction) (ledger.ImportedTransaction, error) {
	date, err := time.Parse(time.DateOnly, rt.Date)
	if err != nil {
		return ledger.ImportedTransaction{}, fmt.Errorf("transaction %s: invalid date %q", rt.ID, rt.Date)
	}

	account := n.accounts[rt.AccountID]
	amount := models.CentsFromFloat(rt.Amount)
	if !account.typ.IsLiability() {
		amount = -amount
	}

	category := models.DefaultCategoryName
	switch {
	case amount > 0 && incomeCategories[rt.Category]:
		category = models.ToBeAssignedName
	case rt.Category != "":
		category = humanizeCategory(rt.Category)
	}
	if c, ok := n.matcher.Match(rules.Subject{
		Name:         rt.Name,
		MerchantName: rt.MerchantName,
		AccountName:  account.name,
		Amount:       amount,
	}); ok {
		category = c
	}

	return ledger.ImportedTransaction{
		ExternalID:        rt.ID,
		AccountExternalID: rt.AccountID,
		Amount:            amount,
		Description:       rt.Name,
		MerchantName:      rt.MerchantName,
		Category:          category,
		Date:              date,
		Pending:           rt.Pending,
	}, nil
}

// humanizeCategory turns FOOD_AND_DRINK into "Food and Drink".
func humanizeCategory(primary string) string {
	words := strings.Fields(strings.ToLower(strings.ReplaceAll(primary, "_", " ")))
	for i, w := range words {
		if i > 0 && (w == "and" || w == "or" || w == "of") {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
