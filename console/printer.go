package console

import (
	"fmt"
	"io"
	"sync"

	"github.com/d1nch8g/lingolive/engine"
	"github.com/d1nch8g/lingolive/transcript"
)

// Printer writes engine events to the terminal. It is the engine's
// observer and shares its writer with the console.
type Printer struct {
	out io.Writer
	mu  sync.Mutex
}

var _ engine.Observer = (*Printer)(nil)

func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

func (p *Printer) StateChanged(state engine.State) {
	switch state {
	case engine.StateConnecting:
		p.Printf("* connecting...\n")
	case engine.StateOpen:
		p.Printf("* session live, start speaking\n")
	case engine.StateIdle:
		p.Printf("* session ended\n")
	}
}

func (p *Printer) SpeakingChanged(speaking bool) {
	if speaking {
		p.Printf("* Lingo is speaking\n")
	}
}

func (p *Printer) TranscriptAppended(entry transcript.Entry) {
	p.Printf("%s\n", formatEntry(entry))
}

func (p *Printer) Notice(message string) {
	p.Printf("! %s\n", message)
}

// Printf writes one message without interleaving with other writers
func (p *Printer) Printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}

func speakerLabel(s transcript.Speaker) string {
	if s == transcript.AI {
		return "Lingo"
	}
	return "You"
}

func formatEntry(entry transcript.Entry) string {
	return fmt.Sprintf("[%s] %s: %s", entry.Timestamp.Format("15:04:05"), speakerLabel(entry.Speaker), entry.Text)
}
