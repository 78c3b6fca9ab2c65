package transcript

import (
	"strings"
	"sync"
	"time"
)

// Speaker tags who said an entry
type Speaker string

const (
	User Speaker = "user"
	AI   Speaker = "ai"
)

// Entry is one finalized line of the conversation
type Entry struct {
	ID        string
	Speaker   Speaker
	Text      string
	Timestamp time.Time
}

// Assemble turns the text accumulated during a turn into finalized entries.
// Whitespace-only text yields no entry; the user entry precedes the model entry.
func Assemble(userText, aiText string, newID func() string, now func() time.Time) []Entry {
	var entries []Entry

	if text := strings.TrimSpace(userText); text != "" {
		entries = append(entries, Entry{ID: newID(), Speaker: User, Text: text, Timestamp: now()})
	}
	if text := strings.TrimSpace(aiText); text != "" {
		entries = append(entries, Entry{ID: newID(), Speaker: AI, Text: text, Timestamp: now()})
	}

	return entries
}

// Log is the in-memory transcript, ordered by insertion
type Log struct {
	entries []Entry
	mu      sync.RWMutex
}

// NewLog creates an empty transcript
func NewLog() *Log {
	return &Log{entries: make([]Entry, 0)}
}

// Append adds entries to the end of the transcript
func (l *Log) Append(entries ...Entry) {
	if len(entries) == 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, entries...)
}

// Entries returns a copy of the transcript
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entries := make([]Entry, len(l.entries))
	copy(entries, l.entries)
	return entries
}

// Len returns the number of entries
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Clear empties the transcript
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = l.entries[:0]
}
