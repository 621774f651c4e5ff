package notify_test

import (
	"testing"

	"github.com/jrsteele09/go-auth-session/notify"
	"github.com/stretchr/testify/require"
)

func TestQueue_DrainIsOneShot(t *testing.T) {
	q := notify.NewQueue()
	q.Notify(notify.Notification{Level: notify.LevelError, Message: "authentication unavailable"})
	q.Notify(notify.Notification{Level: notify.LevelInfo, Message: "signed in"})

	drained := q.Drain()
	require.Len(t, drained, 2)
	require.Equal(t, "authentication unavailable", drained[0].Message)
	require.Empty(t, q.Drain())
}

func TestFanout(t *testing.T) {
	a, b := notify.NewQueue(), notify.NewQueue()
	notify.Fanout{a, b, notify.LogNotifier{}}.Notify(notify.Notification{Level: notify.LevelInfo, Message: "hi"})
	require.Len(t, a.Drain(), 1)
	require.Len(t, b.Drain(), 1)
}
