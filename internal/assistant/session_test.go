package assistant_test

import (
	"context"
	"errors"
	"io"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sproutwatch/sproutwatch/internal/activity"
	"github.com/sproutwatch/sproutwatch/internal/assistant"
	"github.com/sproutwatch/sproutwatch/internal/llm"
	"github.com/sproutwatch/sproutwatch/internal/profiles"
	"github.com/sproutwatch/sproutwatch/internal/store"
	"github.com/sproutwatch/sproutwatch/pkg/models"
)

func sse(parts ...string) []string {
	out := make([]string, 0, len(parts)+1)
	for _, p := range parts {
		out = append(out, `data: {"choices":[{"delta":{"content":"`+p+`"}}]}`+"\n\n")
	}
	return append(out, "data: [DONE]\n\n")
}

// fragmentBody yields one fragment per Read, then err (io.EOF by default).
type fragmentBody struct {
	frags  []string
	err    error
	closed bool
}

func (b *fragmentBody) Read(p []byte) (int, error) {
	if len(b.frags) == 0 {
		if b.err != nil {
			return 0, b.err
		}
		return 0, io.EOF
	}
	n := copy(p, b.frags[0])
	b.frags[0] = b.frags[0][n:]
	if b.frags[0] == "" {
		b.frags = b.frags[1:]
	}
	return n, nil
}

func (b *fragmentBody) Close() error { b.closed = true; return nil }

type fakeStreamer struct {
	body  io.ReadCloser
	err   error
	calls int
	plant string
	sent  []models.ChatMessage
	block chan struct{}
}

func (f *fakeStreamer) Stream(ctx context.Context, transcript []models.ChatMessage, plant string) (io.ReadCloser, error) {
	f.calls++
	f.plant = plant
	f.sent = transcript
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.body, nil
}

type fixture struct {
	session  *assistant.Session
	profiles *profiles.Service
	activity *activity.Log
	notices  []models.Notice
	partials []string
	changes  []models.ProfileChange
}

func newFixture(t *testing.T, s assistant.Streamer) *fixture {
	t.Helper()
	f := &fixture{
		profiles: profiles.NewService(store.NewMemoryStore()),
		activity: activity.NewLog(activity.DefaultCapacity),
	}
	f.session = assistant.NewSession(s, f.profiles, f.activity)
	f.session.OnNotice(func(n models.Notice) { f.notices = append(f.notices, n) })
	f.session.OnPartial(func(p models.ChatPartial) { f.partials = append(f.partials, p.Content) })
	f.profiles.Subscribe(func(c models.ProfileChange) { f.changes = append(f.changes, c) })
	return f
}

func TestSendStreamsAndAppliesDirective(t *testing.T) {
	body := &fragmentBody{frags: sse("Switching to Cili Padi! ", "UPDATE_PLANT:Cili Padi:25:32:60:80:70")}
	streamer := &fakeStreamer{body: body}
	f := newFixture(t, streamer)

	reply, err := f.session.Send(context.Background(), "  I want to grow chilli  ")
	require.NoError(t, err)

	assert.Equal(t, "Tomato", streamer.plant)
	require.Len(t, streamer.sent, 2, "greeting plus user message")
	assert.Equal(t, "I want to grow chilli", streamer.sent[1].Content)

	assert.Equal(t, "Switching to Cili Padi! UPDATE_PLANT:Cili Padi:25:32:60:80:70", reply.Message.Content)
	require.NotNil(t, reply.Profile)
	assert.Equal(t, "cili_padi", reply.Profile.ID)
	assert.Equal(t, "cili_padi", f.profiles.Active().ID)

	require.Len(t, f.changes, 1, "exactly one profile notification")
	assert.Equal(t, models.ProfileSourceAssistant, f.changes[0].Source)

	// One publish per fragment, the buffer only grows.
	require.Len(t, f.partials, 3)
	assert.Equal(t, "Switching to Cili Padi! ", f.partials[0])
	assert.Equal(t, reply.Message.Content, f.partials[2])

	msgs := f.session.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, models.RoleAssistant, msgs[2].Role)
	assert.Equal(t, reply.Message.Content, msgs[2].Content)

	require.Len(t, f.notices, 1)
	assert.Equal(t, "Plant updated!", f.notices[0].Title)
	assert.Equal(t, "Assistant switched monitoring to Cili Padi", f.activity.Entries(1)[0].Message)
	assert.True(t, body.closed)
}

func TestSendWithoutDirectiveLeavesProfile(t *testing.T) {
	f := newFixture(t, &fakeStreamer{body: &fragmentBody{frags: sse("Basil likes ", "warm weather.")}})

	reply, err := f.session.Send(context.Background(), "Tell me about basil")
	require.NoError(t, err)
	assert.Nil(t, reply.Profile)
	assert.Equal(t, "tomato", f.profiles.Active().ID)
	assert.Empty(t, f.changes)
	assert.Empty(t, f.notices)
}

func TestSendRejectsInvertedDirective(t *testing.T) {
	f := newFixture(t, &fakeStreamer{body: &fragmentBody{frags: sse("UPDATE_PLANT:Kangkung:32:24:70:90:85")}})

	reply, err := f.session.Send(context.Background(), "switch to kangkung")
	require.NoError(t, err)
	assert.Nil(t, reply.Profile)
	assert.Equal(t, "tomato", f.profiles.Active().ID)
	assert.Empty(t, f.changes)
}

func TestSendInterruptedDiscardsPartialReply(t *testing.T) {
	body := &fragmentBody{
		frags: []string{
			`data: {"choices":[{"delta":{"content":"Half a "}}]}` + "\n\n",
			`data: {"choices":[{"delta":{"content":"thought"}}]}` + "\n\n",
		},
		err: errors.New("connection reset by peer"),
	}
	f := newFixture(t, &fakeStreamer{body: body})

	_, err := f.session.Send(context.Background(), "hello?")
	require.ErrorIs(t, err, assistant.ErrStreamInterrupted)

	msgs := f.session.Messages()
	require.Len(t, msgs, 2, "greeting and user message only")
	assert.Equal(t, models.RoleUser, msgs[1].Role)
	for _, m := range msgs {
		assert.NotContains(t, m.Content, "Half a")
	}

	assert.Equal(t, []string{"Half a ", "Half a thought"}, f.partials)
	require.Len(t, f.notices, 1)
	assert.Equal(t, "Failed to send message", f.notices[0].Title)
	assert.False(t, f.session.Busy())
}

func TestSendRateLimitedAndQuota(t *testing.T) {
	tests := []struct {
		err   error
		title string
	}{
		{llm.ErrRateLimited, "Rate limit exceeded"},
		{llm.ErrQuotaExceeded, "Payment required"},
	}
	for _, tt := range tests {
		f := newFixture(t, &fakeStreamer{err: tt.err})
		_, err := f.session.Send(context.Background(), "hi")
		require.ErrorIs(t, err, tt.err)

		require.Len(t, f.notices, 1)
		assert.Equal(t, tt.title, f.notices[0].Title)
		assert.Equal(t, "tomato", f.profiles.Active().ID)

		msgs := f.session.Messages()
		require.Len(t, msgs, 2)
		assert.Equal(t, models.RoleUser, msgs[1].Role)
	}
}

func TestSendUpstreamFailure(t *testing.T) {
	f := newFixture(t, &fakeStreamer{err: &llm.StatusError{Code: 500, Body: "boom"}})
	_, err := f.session.Send(context.Background(), "hi")
	require.ErrorIs(t, err, assistant.ErrUpstream)
	require.Len(t, f.notices, 1)
	assert.Equal(t, "Failed to send message", f.notices[0].Title)
}

func TestSendRejectsEmptyAndConcurrent(t *testing.T) {
	streamer := &fakeStreamer{body: &fragmentBody{frags: sse("ok")}, block: make(chan struct{})}
	f := newFixture(t, streamer)

	_, err := f.session.Send(context.Background(), "   ")
	require.ErrorIs(t, err, assistant.ErrEmptyMessage)

	done := make(chan error, 1)
	go func() {
		_, err := f.session.Send(context.Background(), "first")
		done <- err
	}()

	// Wait until the first request holds the in-flight slot.
	for !f.session.Busy() {
		runtime.Gosched()
	}
	_, err = f.session.Send(context.Background(), "second")
	require.ErrorIs(t, err, assistant.ErrBusy)
	require.ErrorIs(t, f.session.Reset(), assistant.ErrBusy)

	close(streamer.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, streamer.calls)
}

func TestReset(t *testing.T) {
	f := newFixture(t, &fakeStreamer{body: &fragmentBody{frags: sse("hi")}})
	_, err := f.session.Send(context.Background(), "hello")
	require.NoError(t, err)
	require.Len(t, f.session.Messages(), 3)

	require.NoError(t, f.session.Reset())
	msgs := f.session.Messages()
	require.Len(t, msgs, 1)
	assert.True(t, strings.HasPrefix(msgs[0].Content, "Selamat datang!"))
}

// cancelAfterBody cancels the request once its last fragment has been read.
type cancelAfterBody struct {
	*fragmentBody
	cancel context.CancelFunc
}

func (b *cancelAfterBody) Read(p []byte) (int, error) {
	n, err := b.fragmentBody.Read(p)
	if len(b.fragmentBody.frags) == 0 {
		b.cancel()
	}
	return n, err
}

func TestSendCompleteReplySurvivesLateCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	body := &cancelAfterBody{fragmentBody: &fragmentBody{frags: sse("UPDATE_PLANT:Kangkung:24:32:70:90:85")}, cancel: cancel}
	f := newFixture(t, &fakeStreamer{body: body})

	reply, err := f.session.Send(ctx, "switch to kangkung")
	require.NoError(t, err)
	require.NotNil(t, reply.Profile)
	assert.Equal(t, "kangkung", f.profiles.Active().ID)
	require.Len(t, f.session.Messages(), 3)
}

func TestSendCancelledBeforeSentinelIsInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	frags := []string{`data: {"choices":[{"delta":{"content":"UPDATE_PLANT:Kangkung:24:32:70:90:85"}}]}` + "\n\n"}
	body := &cancelAfterBody{fragmentBody: &fragmentBody{frags: frags}, cancel: cancel}
	f := newFixture(t, &fakeStreamer{body: body})

	_, err := f.session.Send(ctx, "switch to kangkung")
	require.ErrorIs(t, err, assistant.ErrStreamInterrupted)
	assert.Equal(t, "tomato", f.profiles.Active().ID)
	assert.Len(t, f.session.Messages(), 2)
}

func TestSendOptionsOnlySeeTheirOwnRequest(t *testing.T) {
	streamer := &fakeStreamer{body: &fragmentBody{frags: sse("Hi ", "there")}}
	f := newFixture(t, streamer)

	var mine []string
	var myNotices []models.Notice
	_, err := f.session.Send(context.Background(), "hello",
		assistant.WithPartial(func(p models.ChatPartial) { mine = append(mine, p.Content) }),
		assistant.WithNotice(func(n models.Notice) { myNotices = append(myNotices, n) }),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hi ", "Hi there", "Hi there"}, mine)

	streamer.body = nil
	streamer.err = llm.ErrRateLimited
	_, err = f.session.Send(context.Background(), "again")
	require.ErrorIs(t, err, llm.ErrRateLimited)

	assert.Empty(t, myNotices, "a later request does not reach earlier callbacks")
	assert.Len(t, f.partials, 3, "session subscribers still see every partial")
	require.Len(t, f.notices, 1)
}
