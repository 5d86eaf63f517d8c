package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rubbergod.cz/discord-bot/internal/bot/middleware"
	"rubbergod.cz/discord-bot/internal/chat/chattest"
	"rubbergod.cz/discord-bot/internal/config"
)

type fakeNameday struct {
	text string
	err  error
	lang string
}

func (f *fakeNameday) NamedayText(_ context.Context, lang string) (string, error) {
	f.lang = lang
	return f.text, f.err
}

func testConfig() *config.Config {
	return &config.Config{
		AppTimezone:      "Europe/Prague",
		NamedayChannelID: "400",
		NamedayCron:      "0 7 * * *",
	}
}

func TestPostNameday(t *testing.T) {
	session := chattest.NewSession("1")
	source := &fakeNameday{text: "Dnes má svátek Petr"}
	s := NewScheduler(testConfig(), session, nil, source)

	require.NoError(t, s.PostNameday(context.Background()))
	require.Len(t, session.Sent, 1)
	assert.Equal(t, "400", session.Sent[0].ChannelID)
	assert.Equal(t, "Dnes má svátek Petr", session.Sent[0].Content)
	assert.Equal(t, "cs", source.lang)
}

func TestPostNamedayErrors(t *testing.T) {
	session := chattest.NewSession("1")
	s := NewScheduler(testConfig(), session, nil, &fakeNameday{err: errors.New("upstream down")})
	assert.Error(t, s.PostNameday(context.Background()))
	assert.Empty(t, session.Sent)

	session.SendErr = errors.New("missing access")
	s = NewScheduler(testConfig(), session, nil, &fakeNameday{text: "x"})
	assert.Error(t, s.PostNameday(context.Background()))
}

func TestCleanupCooldowns(t *testing.T) {
	limiter := middleware.NewRateLimiter(nil, middleware.Limit{Requests: 1, Window: time.Nanosecond})
	limiter.Allow("default", "7")
	time.Sleep(time.Millisecond)

	s := NewScheduler(testConfig(), chattest.NewSession("1"), limiter, nil)
	s.CleanupCooldowns()
	assert.Equal(t, 0, limiter.Len())
}

func TestStartRejectsBadNamedaySchedule(t *testing.T) {
	cfg := testConfig()
	cfg.NamedayCron = "not a schedule"
	s := NewScheduler(cfg, chattest.NewSession("1"), nil, &fakeNameday{})
	assert.Error(t, s.Start(context.Background()))
}

func TestStartAndStop(t *testing.T) {
	s := NewScheduler(testConfig(), chattest.NewSession("1"), nil, &fakeNameday{})
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
}
