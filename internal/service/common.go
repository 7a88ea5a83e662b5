package service

import (
	"encoding/json"
	"errors"
	"strings"

	"garmentflow/internal/model"
	"garmentflow/pkg/apperror"
	"garmentflow/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Actor is the authenticated user behind a request
type Actor struct {
	UserID   string
	Username string
	Role     string
}

// auditUserID returns the actor's id for audit rows, nil for system jobs
func (a Actor) auditUserID() *uuid.UUID {
	if parsed, err := uuid.Parse(a.UserID); err == nil {
		return &parsed
	}
	return nil
}

// name returns the username, falling back to "system"
func (a Actor) name() string {
	if a.Username != "" {
		return a.Username
	}
	return "system"
}

// EventPublisher pushes live events to connected boards
type EventPublisher interface {
	Publish(event string, data interface{})
}

func publish(p EventPublisher, event string, data interface{}) {
	if p != nil {
		p.Publish(event, data)
	}
}

func parseID(raw, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperror.Validation(apperror.CodeInvalidInput, "invalid %s id", what)
	}
	return id, nil
}

// lookupErr converts a repository lookup failure: missing rows become
// NotFound with the given code, anything else is internal.
func lookupErr(err error, code, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound(code, "%s not found", what)
	}
	return apperror.Internal("failed to load "+what, err)
}

// isDuplicateKey reports a unique constraint violation from either driver
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

func auditEntry(actor Actor, action, entityID, entityName string, details interface{}) *model.AuditLog {
	raw, _ := json.Marshal(details)
	return &model.AuditLog{
		UserID:     actor.auditUserID(),
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    string(raw),
	}
}

func normalizePage(page, limit int) (int, int) {
	p := pagination.New(page, limit)
	return p.Page, p.Limit
}
