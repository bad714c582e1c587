package messages

// ─── Social ──────────────────────────────────────────────────────────────────

const (
	FollowedBody  = "%s started following you"
	MentionedBody = "%s mentioned you in a comment"
)

// ─── Video ───────────────────────────────────────────────────────────────────

const (
	VideoLikedBody     = "%s liked your video \"%s\""
	VideoCommentedBody = "%s commented on your video \"%s\""
	CommentRepliedBody = "%s replied to your comment"
	VideoSharedBody    = "%s shared your video \"%s\""
)

// ─── Messaging ───────────────────────────────────────────────────────────────

const (
	NewDirectMessageBody = "New message from %s"
)
