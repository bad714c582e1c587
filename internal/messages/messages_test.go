package messages_test

import (
	"testing"

	"github.com/vidmesh/realtime/internal/messages"
)

func TestBuilders(t *testing.T) {
	cases := []struct {
		name string
		got  string
		want string
	}{
		{"followed", messages.Followed("alice"), "alice started following you"},
		{"mentioned", messages.Mentioned("alice"), "alice mentioned you in a comment"},
		{"video liked", messages.VideoLiked("bob", "Street Food Tour"), `bob liked your video "Street Food Tour"`},
		{"video commented", messages.VideoCommented("bob", "Street Food Tour"), `bob commented on your video "Street Food Tour"`},
		{"comment replied", messages.CommentReplied("carol"), "carol replied to your comment"},
		{"video shared", messages.VideoShared("bob", "Street Food Tour"), `bob shared your video "Street Food Tour"`},
		{"direct message", messages.NewDirectMessage("alice"), "New message from alice"},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, tc.got, tc.want)
		}
	}
}
