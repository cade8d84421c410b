package agent

import "strings"

// TriggerPhrase flips a conversation turn from free-form streaming into the
// structured trade-initiation path.
const TriggerPhrase = "you have convinced me"

// isTradeTrigger is the single place trigger detection lives. Exact
// case-folded equality on the raw chat text is brittle, but it is the
// contract the frontend relies on; swapping in a real intent classifier
// later only touches this function.
func isTradeTrigger(content string) bool {
	return strings.EqualFold(strings.TrimSpace(content), TriggerPhrase)
}
