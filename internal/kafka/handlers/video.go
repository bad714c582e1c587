package handlers

import (
	"encoding/json"

	"github.com/vidmesh/realtime/internal/domain"
	"github.com/vidmesh/realtime/internal/messages"
)

func init() {
	Register("video-events", "VIDEO_LIKED", handleVideoLiked)
	Register("video-events", "VIDEO_COMMENTED", handleVideoCommented)
	Register("video-events", "COMMENT_REPLIED", handleCommentReplied)
	Register("video-events", "VIDEO_SHARED", handleVideoShared)
}

// videoEnv covers the video-events envelope. Self-actions (owner liking
// their own video) never notify.
type videoEnv struct {
	EventType string `json:"eventType"`
	EventID   string `json:"eventId"`
	Payload   struct {
		VideoID       string `json:"videoId"`
		VideoTitle    string `json:"videoTitle"`
		OwnerID       string `json:"ownerId"`
		ActorID       string `json:"actorId"`
		ActorUsername string `json:"actorUsername"`
		CommentID     string `json:"commentId"`
	} `json:"payload"`
}

func parseVideoEnv(data []byte) (*videoEnv, bool) {
	var env videoEnv
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, false
	}
	if env.Payload.OwnerID == "" || env.Payload.ActorID == env.Payload.OwnerID {
		return nil, false
	}
	return &env, true
}

func handleVideoLiked(data []byte) *domain.CreateNotificationInput {
	env, ok := parseVideoEnv(data)
	if !ok {
		return nil
	}
	return &domain.CreateNotificationInput{
		RecipientID:   env.Payload.OwnerID,
		Type:          domain.TypeLike,
		Message:       messages.VideoLiked(env.Payload.ActorUsername, env.Payload.VideoTitle),
		CauserID:      env.Payload.ActorID,
		SubjectID:     env.Payload.VideoID,
		SourceEventID: env.EventID,
	}
}

func handleVideoCommented(data []byte) *domain.CreateNotificationInput {
	env, ok := parseVideoEnv(data)
	if !ok {
		return nil
	}
	return &domain.CreateNotificationInput{
		RecipientID:   env.Payload.OwnerID,
		Type:          domain.TypeComment,
		Message:       messages.VideoCommented(env.Payload.ActorUsername, env.Payload.VideoTitle),
		CauserID:      env.Payload.ActorID,
		SubjectID:     env.Payload.VideoID,
		SourceEventID: env.EventID,
	}
}

// handleCommentReplied notifies the parent comment's author, not the video
// owner, so the envelope carries its own recipient.
func handleCommentReplied(data []byte) *domain.CreateNotificationInput {
	var env struct {
		EventType string `json:"eventType"`
		EventID   string `json:"eventId"`
		Payload   struct {
			VideoID         string `json:"videoId"`
			CommentID       string `json:"commentId"`
			ParentAuthorID  string `json:"parentAuthorId"`
			ReplierID       string `json:"replierId"`
			ReplierUsername string `json:"replierUsername"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil
	}
	if env.Payload.ParentAuthorID == "" || env.Payload.ReplierID == env.Payload.ParentAuthorID {
		return nil
	}
	return &domain.CreateNotificationInput{
		RecipientID:   env.Payload.ParentAuthorID,
		Type:          domain.TypeReply,
		Message:       messages.CommentReplied(env.Payload.ReplierUsername),
		CauserID:      env.Payload.ReplierID,
		SubjectID:     env.Payload.CommentID,
		SourceEventID: env.EventID,
	}
}

func handleVideoShared(data []byte) *domain.CreateNotificationInput {
	env, ok := parseVideoEnv(data)
	if !ok {
		return nil
	}
	return &domain.CreateNotificationInput{
		RecipientID:   env.Payload.OwnerID,
		Type:          domain.TypeShare,
		Message:       messages.VideoShared(env.Payload.ActorUsername, env.Payload.VideoTitle),
		CauserID:      env.Payload.ActorID,
		SubjectID:     env.Payload.VideoID,
		SourceEventID: env.EventID,
	}
}
