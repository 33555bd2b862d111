package password

import (
	"strings"
	"unicode"

	appErrors "github.com/lexfirm/lexcase-api/pkg/errors"
)

// Rule identifies one requirement of the complexity policy.
type Rule string

const (
	RuleMinLength Rule = "min_length"
	RuleUppercase Rule = "uppercase"
	RuleLowercase Rule = "lowercase"
	RuleDigit     Rule = "digit"
	RuleSpecial   Rule = "special"
)

// Policy describes the password complexity requirements. Every candidate
// password must satisfy all five rules; validation reports every rule the
// candidate misses, not just the first.
type Policy struct {
	MinLength int
}

// DefaultPolicy is the policy applied when configuration does not override it.
var DefaultPolicy = Policy{MinLength: 8}

// Violation describes one unmet rule.
type Violation struct {
	Rule    Rule   `json:"rule"`
	Message string `json:"message"`
}

// Check returns every rule the candidate password violates. An empty slice
// means the password is acceptable.
func (p Policy) Check(candidate string) []Violation {
	minLength := p.MinLength
	if minLength <= 0 {
		minLength = DefaultPolicy.MinLength
	}

	var violations []Violation
	if len([]rune(candidate)) < minLength {
		violations = append(violations, Violation{
			Rule:    RuleMinLength,
			Message: "password is too short",
		})
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range candidate {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}

	if !hasUpper {
		violations = append(violations, Violation{Rule: RuleUppercase, Message: "password needs at least one uppercase letter"})
	}
	if !hasLower {
		violations = append(violations, Violation{Rule: RuleLowercase, Message: "password needs at least one lowercase letter"})
	}
	if !hasDigit {
		violations = append(violations, Violation{Rule: RuleDigit, Message: "password needs at least one digit"})
	}
	if !hasSpecial {
		violations = append(violations, Violation{Rule: RuleSpecial, Message: "password needs at least one special character"})
	}

	return violations
}

// Validate converts violations into a typed error listing each unmet rule.
func (p Policy) Validate(candidate string) error {
	violations := p.Check(candidate)
	if len(violations) == 0 {
		return nil
	}

	parts := make([]string, len(violations))
	for i, v := range violations {
		parts[i] = string(v.Rule)
	}
	return appErrors.Clone(appErrors.ErrWeakPassword, "password rejected: "+strings.Join(parts, ", "))
}
