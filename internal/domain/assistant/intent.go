package assistant

import (
	"regexp"
	"strings"
)

type Intent string

const (
	IntentCheckBalance Intent = "check_balance"
	IntentLeaveHistory Intent = "leave_history"
	IntentApplyLeave   Intent = "apply_leave"
	IntentPolicies     Intent = "policies"
	IntentUnknown      Intent = "unknown"
)

var (
	typoTale     = regexp.MustCompile(`(?i)\btale\b`)
	dayCountHint = regexp.MustCompile(`\b(\d+|one|two|three|four|five|six|seven|eight|nine|ten)\b.*\b(day|days|leave)\b`)

	balanceKeywords = []string{"leave balance", "balance", "remaining leaves", "how many leaves"}
	historyKeywords = []string{"leave history", "history of leaves", "past leaves"}
	applyKeywords   = []string{"apply leave", "book leave", "request leave", "take leave", "i want to take", "i want to apply", "i want to book"}
	policyKeywords  = []string{"policy", "policies", "holiday", "holidays"}
)

// FixTypos rewrites the common "tale" for "take" slip before any matching.
func FixTypos(text string) string {
	return typoTale.ReplaceAllString(text, "take")
}

// ClassifyIntent routes an utterance by keyword. Rules are checked in order and the first hit
// wins, so "apply leave, what is my balance" is a balance question.
func ClassifyIntent(text string) Intent {
	t := strings.ToLower(FixTypos(text))
	if strings.TrimSpace(t) == "" {
		return IntentUnknown
	}
	switch {
	case containsAny(t, balanceKeywords):
		return IntentCheckBalance
	case containsAny(t, historyKeywords):
		return IntentLeaveHistory
	case containsAny(t, applyKeywords):
		return IntentApplyLeave
	case dayCountHint.MatchString(t):
		return IntentApplyLeave
	case containsAny(t, []string{"apply", "take", "book"}) && strings.Contains(t, "leave"):
		return IntentApplyLeave
	case containsAny(t, policyKeywords):
		return IntentPolicies
	}
	return IntentUnknown
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}
