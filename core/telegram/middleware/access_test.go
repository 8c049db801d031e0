package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tele "gopkg.in/telebot.v4"
)

func contextFrom(t *testing.T, userID int64) tele.Context {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	return b.NewContext(tele.Update{ID: 1, Message: &tele.Message{
		Sender: &tele.User{ID: userID},
		Chat:   &tele.Chat{ID: userID},
		Text:   "/admin",
	}})
}

func TestRequireAdmin(t *testing.T) {
	var passed, rejected int
	next := func(tele.Context) error { passed++; return nil }
	reject := func(tele.Context) error { rejected++; return nil }

	h := RequireAdmin(1000, reject)(next)
	require.NoError(t, h(contextFrom(t, 1000)))
	require.NoError(t, h(contextFrom(t, 42)))
	assert.Equal(t, 1, passed)
	assert.Equal(t, 1, rejected)

	silent := RequireAdmin(0, nil)(next)
	require.NoError(t, silent(contextFrom(t, 0)))
	assert.Equal(t, 1, passed)
}
