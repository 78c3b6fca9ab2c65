package engine

import (
	"go.uber.org/zap"

	"github.com/d1nch8g/lingolive/live"
	"github.com/d1nch8g/lingolive/pcm"
	"github.com/d1nch8g/lingolive/transcript"
)

// handleMessage routes one inbound message. The conditions are independent:
// a message carrying several fields runs every matching handler, in order.
func (e *Engine) handleMessage(msg live.Message) {
	if msg.AudioPayload != "" {
		e.playAudio(msg.AudioPayload)
	}
	if msg.Interrupted {
		e.metrics.Interruptions.Inc()
		e.sess.scheduler.Interrupt()
	}
	if msg.InputTranscriptionDelta != "" {
		e.userText.WriteString(msg.InputTranscriptionDelta)
	}
	if msg.OutputTranscriptionDelta != "" {
		e.aiText.WriteString(msg.OutputTranscriptionDelta)
	}
	if msg.TurnComplete {
		e.completeTurn()
	}
}

func (e *Engine) playAudio(payload string) {
	raw, err := pcm.Decode(payload)
	if err == nil {
		var chunk *pcm.Chunk
		chunk, err = pcm.DecodeAudioData(raw, e.config.PlaybackSampleRate, 1)
		if err == nil {
			if _, err := e.sess.scheduler.Schedule(chunk); err != nil {
				e.logger.Warn("failed to schedule audio", zap.Error(err))
				return
			}
			e.metrics.ChunksScheduled.Inc()
			return
		}
	}

	e.metrics.DecodeErrors.Inc()
	e.logger.Warn("skipping undecodable audio payload", zap.Error(err))
}

// completeTurn finalizes both accumulators into transcript entries
func (e *Engine) completeTurn() {
	entries := transcript.Assemble(e.userText.String(), e.aiText.String(), e.newID, e.now)
	e.userText.Reset()
	e.aiText.Reset()

	e.transcript.Append(entries...)
	for _, entry := range entries {
		e.metrics.TranscriptEntries.WithLabelValues(string(entry.Speaker)).Inc()
		e.observer.TranscriptAppended(entry)
	}
}
