package promo

import (
	"encoding/json"
	"errors"
	"fmt"
)

type RuleKind string

const (
	// RuleDepositBonus pays a bonus once incoming transfers since the
	// promotion's creation reach the threshold.
	RuleDepositBonus RuleKind = "deposit_bonus"

	// RuleTransferBonus is the outgoing-transfer counterpart.
	RuleTransferBonus RuleKind = "transfer_bonus"
)

var ErrInvalidRule = errors.New("invalid promotion rule")

// Rule is the structured form of a promotion, decided when the promotion
// is created and stored as JSON in its detail column. Free text that does
// not decode as a rule is not evaluated here.
type Rule struct {
	Kind           RuleKind `json:"kind"`
	AccountID      string   `json:"account_id"`
	ThresholdCents int64    `json:"threshold_cents"`
	BonusCents     int64    `json:"bonus_cents"`
}

func ParseRule(detail string) (Rule, error) {
	var rule Rule
	if err := json.Unmarshal([]byte(detail), &rule); err != nil {
		return Rule{}, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	if rule.Kind != RuleDepositBonus && rule.Kind != RuleTransferBonus {
		return Rule{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidRule, rule.Kind)
	}
	if rule.AccountID == "" {
		return Rule{}, fmt.Errorf("%w: missing account_id", ErrInvalidRule)
	}
	if rule.ThresholdCents <= 0 {
		return Rule{}, fmt.Errorf("%w: threshold must be positive", ErrInvalidRule)
	}
	if rule.BonusCents <= 0 {
		return Rule{}, fmt.Errorf("%w: bonus must be positive", ErrInvalidRule)
	}

	return rule, nil
}

func (r Rule) Encode() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return string(data), nil
}
