package handlers

import (
	"encoding/json"

	"github.com/vidmesh/realtime/internal/domain"
	"github.com/vidmesh/realtime/internal/messages"
)

func init() {
	Register("social-events", "USER_FOLLOWED", handleUserFollowed)
	Register("social-events", "USER_MENTIONED", handleUserMentioned)
}

type followedEnv struct {
	EventType string `json:"eventType"`
	EventID   string `json:"eventId"`
	Payload   struct {
		FollowerID       string `json:"followerId"`
		FollowerUsername string `json:"followerUsername"`
		FollowedID       string `json:"followedId"`
	} `json:"payload"`
}

func handleUserFollowed(data []byte) *domain.CreateNotificationInput {
	var env followedEnv
	if err := json.Unmarshal(data, &env); err != nil {
		return nil
	}
	if env.Payload.FollowedID == "" || env.Payload.FollowerID == env.Payload.FollowedID {
		return nil
	}
	return &domain.CreateNotificationInput{
		RecipientID:   env.Payload.FollowedID,
		Type:          domain.TypeFollow,
		Message:       messages.Followed(env.Payload.FollowerUsername),
		CauserID:      env.Payload.FollowerID,
		SubjectID:     env.Payload.FollowerID,
		SourceEventID: env.EventID,
	}
}

type mentionedEnv struct {
	EventType string `json:"eventType"`
	EventID   string `json:"eventId"`
	Payload   struct {
		MentionerID       string `json:"mentionerId"`
		MentionerUsername string `json:"mentionerUsername"`
		MentionedID       string `json:"mentionedId"`
		CommentID         string `json:"commentId"`
	} `json:"payload"`
}

func handleUserMentioned(data []byte) *domain.CreateNotificationInput {
	var env mentionedEnv
	if err := json.Unmarshal(data, &env); err != nil {
		return nil
	}
	if env.Payload.MentionedID == "" || env.Payload.MentionerID == env.Payload.MentionedID {
		return nil
	}
	return &domain.CreateNotificationInput{
		RecipientID:   env.Payload.MentionedID,
		Type:          domain.TypeMention,
		Message:       messages.Mentioned(env.Payload.MentionerUsername),
		CauserID:      env.Payload.MentionerID,
		SubjectID:     env.Payload.CommentID,
		SourceEventID: env.EventID,
	}
}
