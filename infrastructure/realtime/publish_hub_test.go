package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crosspost/domain/model"
)

func TestBroadcastReachesOwnersSubscribersOnly(t *testing.T) {
	hub := NewPublishHub()
	mine := make(chan PublishEvent, 8)
	theirs := make(chan PublishEvent, 8)
	hub.addSubscriber("u1", mine)
	hub.addSubscriber("u2", theirs)

	hub.BroadcastResult("u1", model.PlatformResult{
		Platform: "x",
		Status:   model.PlatformStatusSuccess,
		Post:     &model.Post{ID: "111"},
	})

	require.Len(t, mine, 1)
	evt := <-mine
	assert.Equal(t, "publish_status", evt.Type)
	assert.Equal(t, "x", evt.Platform)
	assert.Equal(t, model.PlatformStatusSuccess, evt.Status)
	require.NotNil(t, evt.Post)
	assert.Equal(t, "111", evt.Post.ID)
	assert.Empty(t, theirs)
}

func TestBroadcastNeverBlocksOnFullSubscriber(t *testing.T) {
	hub := NewPublishHub()
	full := make(chan PublishEvent, 1)
	hub.addSubscriber("u1", full)

	hub.BroadcastResult("u1", model.PlatformResult{Platform: "x", Status: model.PlatformStatusSuccess})
	// Second send hits a full buffer and must be dropped, not block.
	hub.BroadcastResult("u1", model.PlatformResult{Platform: "tiktok", Status: model.PlatformStatusFailed})

	require.Len(t, full, 1)
	evt := <-full
	assert.Equal(t, "x", evt.Platform)
}

func TestRemoveSubscriberClosesChannel(t *testing.T) {
	hub := NewPublishHub()
	ch := make(chan PublishEvent, 1)
	hub.addSubscriber("u1", ch)
	hub.removeSubscriber("u1", ch)

	_, open := <-ch
	assert.False(t, open)

	// Broadcasting after the last subscriber left is a no-op.
	hub.BroadcastResult("u1", model.PlatformResult{Platform: "x", Status: model.PlatformStatusSuccess})
}
