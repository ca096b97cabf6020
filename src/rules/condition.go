package rules

import (
	"encoding/json"
	"fmt"
	"strings"

	"budgee-ledger/src/models"

	"github.com/shopspring/decimal"
)

// Subject is the view of a transaction that rule conditions are evaluated against.
type Subject struct {
	Name         string
	MerchantName string
	AccountName  string
	Amount       models.Cents
}

var (
	stringFields = map[string]bool{"name": true, "merchant_name": true, "account": true}
	numericOps   = map[string]bool{"gt": true, "gte": true, "lt": true, "lte": true}
)

// ParseCondition decodes a condition tree and checks every leaf names a
// known field and operator.
func ParseCondition(raw json.RawMessage) (models.Condition, error) {
	var cond models.Condition
	if len(raw) == 0 {
		return cond, fmt.Errorf("conditions are required")
	}
	if err := json.Unmarshal(raw, &cond); err != nil {
		return cond, fmt.Errorf("invalid conditions: %w", err)
	}
	return cond, validate(cond)
}

func validate(cond models.Condition) error {
	if cond.IsGroup() {
		for _, c := range append(append([]models.Condition{}, cond.And...), cond.Or...) {
			if err := validate(c); err != nil {
				return err
			}
		}
		return nil
	}
	if !stringFields[cond.Field] && cond.Field != "amount" {
		return fmt.Errorf("unknown field %q", cond.Field)
	}
	switch {
	case cond.Op == "equals", cond.Op == "contains", cond.Op == "in":
	case numericOps[cond.Op]:
		if cond.Field != "amount" {
			return fmt.Errorf("operator %q only applies to amount", cond.Op)
		}
	default:
		return fmt.Errorf("unknown operator %q", cond.Op)
	}
	return nil
}

// Evaluate reports whether s satisfies cond. And wins over Or when a node has both.
func Evaluate(cond models.Condition, s Subject) bool {
	if len(cond.And) > 0 {
		for _, c := range cond.And {
			if !Evaluate(c, s) {
				return false
			}
		}
		return true
	}
	if len(cond.Or) > 0 {
		for _, c := range cond.Or {
			if Evaluate(c, s) {
				return true
			}
		}
		return false
	}

	if cond.Field == "amount" {
		return compareAmount(cond.Op, s.Amount.Decimal(), cond.Value)
	}
	var field string
	switch cond.Field {
	case "name":
		field = s.Name
	case "merchant_name":
		field = s.MerchantName
	case "account":
		field = s.AccountName
	default:
		return false
	}
	switch cond.Op {
	case "equals":
		val, ok := cond.Value.(string)
		return ok && strings.EqualFold(field, val)
	case "contains":
		val, ok := cond.Value.(string)
		return ok && strings.Contains(strings.ToLower(field), strings.ToLower(val))
	case "in":
		arr, ok := cond.Value.([]interface{})
		if !ok {
			return false
		}
		for _, v := range arr {
			if str, ok := v.(string); ok && strings.EqualFold(field, str) {
				return true
			}
		}
	}
	return false
}

func compareAmount(op string, amount decimal.Decimal, value interface{}) bool {
	val, ok := toDecimal(value)
	if !ok {
		return false
	}
	switch op {
	case "equals":
		return amount.Equal(val)
	case "gt":
		return amount.GreaterThan(val)
	case "gte":
		return amount.GreaterThanOrEqual(val)
	case "lt":
		return amount.LessThan(val)
	case "lte":
		return amount.LessThanOrEqual(val)
	}
	return false
}

func toDecimal(v interface{}) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), true
	case string:
		d, err := decimal.NewFromString(n)
		return d, err == nil
	}
	return decimal.Decimal{}, false
}
