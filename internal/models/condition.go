package models

// Condition grades the physical state of a card, ordered best to worst.
type Condition string

const (
	ConditionMint      Condition = "mint"
	ConditionNearMint  Condition = "near-mint"
	ConditionExcellent Condition = "excellent"
	ConditionGood      Condition = "good"
	ConditionPlayed    Condition = "played"
	ConditionPoor      Condition = "poor"
)

// Conditions returns all grades in order, best first.
func Conditions() []Condition {
	return []Condition{
		ConditionMint,
		ConditionNearMint,
		ConditionExcellent,
		ConditionGood,
		ConditionPlayed,
		ConditionPoor,
	}
}

// Valid reports whether c is one of the six known grades.
func (c Condition) Valid() bool {
	switch c {
	case ConditionMint, ConditionNearMint, ConditionExcellent,
		ConditionGood, ConditionPlayed, ConditionPoor:
		return true
	}
	return false
}
