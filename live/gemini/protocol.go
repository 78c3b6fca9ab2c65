package gemini

import (
	"strings"

	"github.com/d1nch8g/lingolive/live"
	"github.com/d1nch8g/lingolive/pcm"
)

// Client messages of the BidiGenerateContent protocol

type setupMessage struct {
	Setup setup `json:"setup"`
}

type setup struct {
	Model                    string            `json:"model"`
	GenerationConfig         generationConfig  `json:"generationConfig"`
	SystemInstruction        *content          `json:"systemInstruction,omitempty"`
	InputAudioTranscription  *transcribeConfig `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *transcribeConfig `json:"outputAudioTranscription,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type transcribeConfig struct{}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string `json:"text,omitempty"`
	InlineData *blob  `json:"inlineData,omitempty"`
}

type blob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type realtimeInputMessage struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type realtimeInput struct {
	Audio *blob `json:"audio,omitempty"`
}

// Server messages

type serverMessage struct {
	SetupComplete *struct{}      `json:"setupComplete,omitempty"`
	ServerContent *serverContent `json:"serverContent,omitempty"`
	GoAway        *goAway        `json:"goAway,omitempty"`
}

type serverContent struct {
	ModelTurn           *content       `json:"modelTurn,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	InputTranscription  *transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *transcription `json:"outputTranscription,omitempty"`
}

type transcription struct {
	Text string `json:"text"`
}

type goAway struct {
	TimeLeft string `json:"timeLeft"`
}

func modelResource(model string) string {
	if strings.HasPrefix(model, "models/") {
		return model
	}
	return "models/" + model
}

func newSetupMessage(cfg live.Config) setupMessage {
	s := setup{Model: modelResource(cfg.Model)}

	if cfg.AudioResponseRequested {
		s.GenerationConfig.ResponseModalities = []string{"AUDIO"}
	}
	if cfg.Voice != "" {
		s.GenerationConfig.SpeechConfig = &speechConfig{
			VoiceConfig: voiceConfig{PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: cfg.Voice}},
		}
	}
	if cfg.SystemPrompt != "" {
		s.SystemInstruction = &content{Parts: []part{{Text: cfg.SystemPrompt}}}
	}
	if cfg.CaptureInputTranscription {
		s.InputAudioTranscription = &transcribeConfig{}
	}
	if cfg.CaptureOutputTranscription {
		s.OutputAudioTranscription = &transcribeConfig{}
	}

	return setupMessage{Setup: s}
}

func newAudioMessage(b pcm.Blob) realtimeInputMessage {
	return realtimeInputMessage{
		RealtimeInput: realtimeInput{Audio: &blob{MIMEType: b.MIMEType, Data: b.Data}},
	}
}

// toMessage flattens a server message into the transport-neutral shape.
// Only the first audio part of a model turn is taken.
func (m serverMessage) toMessage() live.Message {
	var out live.Message

	c := m.ServerContent
	if c == nil {
		return out
	}

	if c.ModelTurn != nil {
		for _, p := range c.ModelTurn.Parts {
			if p.InlineData == nil || p.InlineData.Data == "" {
				continue
			}
			if p.InlineData.MIMEType != "" && !strings.HasPrefix(p.InlineData.MIMEType, "audio/") {
				continue
			}
			out.AudioPayload = p.InlineData.Data
			break
		}
	}

	out.Interrupted = c.Interrupted
	if c.InputTranscription != nil {
		out.InputTranscriptionDelta = c.InputTranscription.Text
	}
	if c.OutputTranscription != nil {
		out.OutputTranscriptionDelta = c.OutputTranscription.Text
	}
	out.TurnComplete = c.TurnComplete

	return out
}
