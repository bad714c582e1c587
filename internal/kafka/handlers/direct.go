package handlers

import (
	"encoding/json"

	"github.com/vidmesh/realtime/internal/domain"
)

func init() {
	RegisterDirect("notification-commands", handleDirectCommand)
}

// handleDirectCommand accepts fully-formed notifications from internal
// services (moderation, announcements). Unknown types degrade to system.
func handleDirectCommand(data []byte) *domain.CreateNotificationInput {
	var cmd struct {
		CommandID   string `json:"commandId"`
		RecipientID string `json:"recipientId"`
		Type        string `json:"type"`
		Message     string `json:"message"`
		CauserID    string `json:"causerId"`
		SubjectID   string `json:"subjectId"`
	}

	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil
	}
	if cmd.RecipientID == "" || cmd.Message == "" {
		return nil
	}

	notifType := domain.NotificationType(cmd.Type)
	if !notifType.Valid() {
		notifType = domain.TypeSystem
	}

	return &domain.CreateNotificationInput{
		RecipientID:   cmd.RecipientID,
		Type:          notifType,
		Message:       cmd.Message,
		CauserID:      cmd.CauserID,
		SubjectID:     cmd.SubjectID,
		SourceEventID: cmd.CommandID,
	}
}
