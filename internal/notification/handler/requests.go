package handler

import (
	"strings"

	"kontrakpro/internal/notification/models"
	dErrors "kontrakpro/pkg/domain-errors"
)

// CreateRequest is the body of POST /notifications.
type CreateRequest struct {
	Type         string `json:"type"`
	Title        string `json:"title" validate:"required,max=200"`
	Message      string `json:"message" validate:"max=2000"`
	Priority     string `json:"priority"`
	ResourceType string `json:"resourceType"`
	ResourceID   string `json:"resourceId"`
	DedupeKey    string `json:"dedupeKey"`
}

func (r *CreateRequest) Prepare() {
	r.Type = strings.TrimSpace(r.Type)
	r.Title = strings.TrimSpace(r.Title)
	r.Message = strings.TrimSpace(r.Message)
	r.Priority = strings.ToLower(strings.TrimSpace(r.Priority))
	r.ResourceType = strings.TrimSpace(r.ResourceType)
	r.ResourceID = strings.TrimSpace(r.ResourceID)
	r.DedupeKey = strings.TrimSpace(r.DedupeKey)
}

func (r *CreateRequest) Validate() error {
	if r.Priority != "" && !models.Priority(r.Priority).IsValid() {
		return dErrors.Validation("priority", "priority must be one of: low medium high")
	}
	return nil
}

func (r *CreateRequest) toInput() models.CreateInput {
	return models.CreateInput{
		Type:         r.Type,
		Title:        r.Title,
		Message:      r.Message,
		Priority:     models.Priority(r.Priority),
		ResourceType: r.ResourceType,
		ResourceID:   r.ResourceID,
		DedupeKey:    r.DedupeKey,
	}
}

type UnreadCountResponse struct {
	Count int `json:"count"`
}
