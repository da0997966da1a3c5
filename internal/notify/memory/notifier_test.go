package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/brochure-capture/internal/notify"
)

func TestNotifierRecordsEvents(t *testing.T) {
	t.Parallel()

	n := New()
	require.NoError(t, n.Notify(context.Background(), notify.Event{Slug: "tokyo-fuji"}))
	require.NoError(t, n.Notify(context.Background(), notify.Event{Slug: "kyoto"}))

	events := n.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "tokyo-fuji", events[0].Slug)

	events[0].Slug = "mutated"
	assert.Equal(t, "tokyo-fuji", n.Events()[0].Slug)
	assert.NoError(t, n.Close())
}

func TestNotifierFailWith(t *testing.T) {
	t.Parallel()

	boom := errors.New("topic deleted")
	n := New()
	n.FailWith(boom)
	assert.ErrorIs(t, n.Notify(context.Background(), notify.Event{}), boom)
	assert.Empty(t, n.Events())
}
