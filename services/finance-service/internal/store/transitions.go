package store

import "payaid/internal/gst"

const (
	ActionIssue  = "issue"
	ActionCancel = "cancel"
)

var transitionMap = map[string][]string{
	ActionIssue:  {gst.InvoiceDraft},
	ActionCancel: {gst.InvoiceDraft, gst.InvoiceIssued},
}

func ValidTransition(action, fromStatus string) bool {
	allowed, ok := transitionMap[action]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == fromStatus {
			return true
		}
	}
	return false
}

func KnownAction(action string) bool {
	_, ok := transitionMap[action]
	return ok
}
