package sink

import (
	"context"
	"fmt"

	"kontrakpro/internal/audit/models"
	notificationModels "kontrakpro/internal/notification/models"
)

// Notifier creates a notification at most once per dedupe key.
type Notifier interface {
	CreateOnce(ctx context.Context, in notificationModels.CreateInput) (*notificationModels.Notification, bool, error)
}

const maxMessageLen = 2000

var notifyOn = map[models.EventType]notificationModels.Priority{
	models.EventContractShared:    notificationModels.PriorityMedium,
	models.EventContractSigned:    notificationModels.PriorityHigh,
	models.EventContractApproved:  notificationModels.PriorityMedium,
	models.EventPermissionChanged: notificationModels.PriorityMedium,
}

// Notifications turns contract collaboration events into dashboard
// notifications linked to the contract.
type Notifications struct {
	notifier Notifier
}

func NewNotifications(n Notifier) *Notifications {
	return &Notifications{notifier: n}
}

func (n *Notifications) Name() string { return "notifications" }

func (n *Notifications) Deliver(ctx context.Context, e *models.Event) error {
	priority, ok := notifyOn[e.Type]
	if !ok || e.ContractID == "" {
		return nil
	}
	_, _, err := n.notifier.CreateOnce(ctx, notificationModels.CreateInput{
		Type:         string(e.Type),
		Title:        e.Title(),
		Message:      truncate(e.Message(), maxMessageLen),
		Priority:     priority,
		ResourceType: "contract",
		ResourceID:   e.ContractID,
		DedupeKey:    DedupeKey(e),
	})
	if err != nil {
		return fmt.Errorf("notify %s: %w", e.Type, err)
	}
	return nil
}

// DedupeKey ties a notification to the audit event that produced it.
func DedupeKey(e *models.Event) string {
	return string(e.Type) + ":" + e.ID.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
