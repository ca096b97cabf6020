package models

// Condition is either a leaf comparison (Field, Op, Value) or a group of
// nested conditions combined with And or Or.
type Condition struct {
	Field string      `json:"field,omitempty"`
	Op    string      `json:"op,omitempty"`
	Value interface{} `json:"value,omitempty"`
	And   []Condition `json:"and,omitempty"`
	Or    []Condition `json:"or,omitempty"`
}

func (c Condition) IsGroup() bool {
	return len(c.And) > 0 || len(c.Or) > 0
}
