package store

import "payaid/services/hr-service/internal/models"

const (
	ActionProcess = "process"
	ActionApprove = "approve"
	ActionPay     = "pay"
	ActionCancel  = "cancel"
)

var transitionMap = map[string][]string{
	ActionProcess: {models.CycleDraft, models.CycleProcessed},
	ActionApprove: {models.CycleProcessed},
	ActionPay:     {models.CycleApproved},
	ActionCancel:  {models.CycleDraft, models.CycleProcessed},
}

var transitionTarget = map[string]string{
	ActionProcess: models.CycleProcessed,
	ActionApprove: models.CycleApproved,
	ActionPay:     models.CyclePaid,
	ActionCancel:  models.CycleCancelled,
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

// TargetStatus is the status a cycle moves to after action.
func TargetStatus(action string) (string, bool) {
	status, ok := transitionTarget[action]
	return status, ok
}
