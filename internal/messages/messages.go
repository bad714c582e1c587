// Package messages renders the user-facing notification texts. Builders stay
// free of domain types so Kafka handlers and the message relay can share them.
package messages

import "fmt"

// ─── Social builders ─────────────────────────────────────────────────────────

func Followed(username string) string {
	return fmt.Sprintf(FollowedBody, username)
}

func Mentioned(username string) string {
	return fmt.Sprintf(MentionedBody, username)
}

// ─── Video builders ──────────────────────────────────────────────────────────

func VideoLiked(username, videoTitle string) string {
	return fmt.Sprintf(VideoLikedBody, username, videoTitle)
}

func VideoCommented(username, videoTitle string) string {
	return fmt.Sprintf(VideoCommentedBody, username, videoTitle)
}

func CommentReplied(username string) string {
	return fmt.Sprintf(CommentRepliedBody, username)
}

func VideoShared(username, videoTitle string) string {
	return fmt.Sprintf(VideoSharedBody, username, videoTitle)
}

// ─── Messaging builders ──────────────────────────────────────────────────────

func NewDirectMessage(username string) string {
	return fmt.Sprintf(NewDirectMessageBody, username)
}
