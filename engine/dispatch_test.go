package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/d1nch8g/lingolive/live"
	"github.com/d1nch8g/lingolive/sound"
	"github.com/d1nch8g/lingolive/transcript"
)

// newDispatcher builds an engine with an installed session and no loop, so
// handleMessage can be driven directly.
func newDispatcher() (*Engine, *fakeOutput) {
	out := &fakeOutput{}
	e := NewEngine(EngineConfig{}, newFakeMic(), nil, &fakeDialer{}, nil)

	scheduler := sound.NewScheduler(out, func(fn func()) { fn() }, zap.NewNop())
	scheduler.OnSpeaking(e.setSpeaking)
	e.sess = &session{gen: 1, scheduler: scheduler}
	return e, out
}

func TestHandleMessageRunsEveryHandler(t *testing.T) {
	e, out := newDispatcher()

	e.handleMessage(live.Message{InputTranscriptionDelta: "hi"})
	e.handleMessage(live.Message{
		AudioPayload:             audioPayload(480),
		OutputTranscriptionDelta: "Hola",
		TurnComplete:             true,
	})

	require.Len(t, out.played(), 1)
	assert.True(t, e.Speaking())

	entries := e.Transcript()
	require.Len(t, entries, 2)
	assert.Equal(t, transcript.User, entries[0].Speaker)
	assert.Equal(t, "hi", entries[0].Text)
	assert.Equal(t, transcript.AI, entries[1].Speaker)
	assert.Equal(t, "Hola", entries[1].Text)
	assert.Empty(t, e.userText.String())
	assert.Empty(t, e.aiText.String())
}

func TestHandleMessageAudioThenInterrupt(t *testing.T) {
	e, out := newDispatcher()

	// Audio and interruption in one message: the chunk is scheduled and
	// immediately discarded.
	e.handleMessage(live.Message{AudioPayload: audioPayload(480), Interrupted: true})

	require.Len(t, out.played(), 1)
	assert.True(t, out.played()[0].isStopped())
	assert.False(t, e.Speaking())
	assert.Equal(t, 0, e.sess.scheduler.Active())
}

func TestHandleMessageEmpty(t *testing.T) {
	e, out := newDispatcher()

	e.handleMessage(live.Message{})

	assert.Empty(t, out.played())
	assert.Empty(t, e.Transcript())
	assert.False(t, e.Speaking())
}

func TestTurnEntriesMatchAccumulatedText(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		e, _ := newDispatcher()

		word := rapid.StringMatching(`[ a-zñ]{0,6}`)
		var user, ai strings.Builder
		var want []transcript.Entry

		steps := rapid.IntRange(1, 30).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			msg := live.Message{
				InputTranscriptionDelta:  word.Draw(t, "user"),
				OutputTranscriptionDelta: word.Draw(t, "ai"),
				TurnComplete:             rapid.Bool().Draw(t, "turnComplete"),
			}
			user.WriteString(msg.InputTranscriptionDelta)
			ai.WriteString(msg.OutputTranscriptionDelta)

			if msg.TurnComplete {
				if text := strings.TrimSpace(user.String()); text != "" {
					want = append(want, transcript.Entry{Speaker: transcript.User, Text: text})
				}
				if text := strings.TrimSpace(ai.String()); text != "" {
					want = append(want, transcript.Entry{Speaker: transcript.AI, Text: text})
				}
				user.Reset()
				ai.Reset()
			}
			e.handleMessage(msg)
		}

		got := e.Transcript()
		if len(got) != len(want) {
			t.Fatalf("got %d entries, want %d", len(got), len(want))
		}
		ids := make(map[string]bool)
		for i := range want {
			if got[i].Speaker != want[i].Speaker || got[i].Text != want[i].Text {
				t.Fatalf("entry %d = %s %q, want %s %q", i, got[i].Speaker, got[i].Text, want[i].Speaker, want[i].Text)
			}
			if ids[got[i].ID] {
				t.Fatalf("duplicate entry id %q", got[i].ID)
			}
			ids[got[i].ID] = true
		}
	})
}
