// Package console drives the engine from line commands on a terminal.
package console

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/d1nch8g/lingolive/engine"
	"github.com/d1nch8g/lingolive/transcript"
	"github.com/d1nch8g/lingolive/tutor"
)

// Controller is the part of the engine the console drives
type Controller interface {
	Start(settings tutor.Settings) error
	Stop() error
	Active() bool
	State() engine.State
	Speaking() bool
	Notice() string
	Transcript() []transcript.Entry
	ClearTranscript()
}

type Console struct {
	ctl      Controller
	printer  *Printer
	settings tutor.Settings
	logger   *zap.Logger
}

func New(ctl Controller, printer *Printer, settings tutor.Settings, logger *zap.Logger) *Console {
	return &Console{
		ctl:      ctl,
		printer:  printer,
		settings: settings,
		logger:   logger.With(zap.String("component", "console")),
	}
}

// Settings returns the currently selected session parameters
func (c *Console) Settings() tutor.Settings {
	return c.settings
}

// Run reads commands from in until /quit, end of input or ctx is done
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			c.logger.Warn("error reading input", zap.Error(err))
		}
	}()

	c.printer.Printf("LingoLive: %s speaker learning %s (%s). Type /help for commands.\n",
		c.settings.Native, c.settings.Target, c.settings.Level)

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := c.Execute(line); quit {
				return nil
			}
		}
	}
}

// Execute runs one command line and reports whether the console should exit
func (c *Console) Execute(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	command, args := strings.ToLower(fields[0]), fields[1:]

	switch command {
	case "/start":
		c.start()
	case "/stop":
		c.stop()
	case "/toggle":
		if c.ctl.Active() {
			c.stop()
		} else {
			c.start()
		}
	case "/native", "/target", "/level":
		c.selectSetting(command, args)
	case "/clear":
		c.ctl.ClearTranscript()
		c.printer.Printf("* transcript cleared\n")
	case "/transcript":
		c.printTranscript()
	case "/status":
		c.printStatus()
	case "/languages":
		c.printLanguages()
	case "/help":
		c.printHelp()
	case "/quit", "/exit":
		if c.ctl.Active() {
			c.stop()
		}
		return true
	default:
		c.printer.Printf("unknown command %q, type /help\n", fields[0])
	}
	return false
}

func (c *Console) start() {
	err := c.ctl.Start(c.settings)
	switch {
	case err == nil:
	case errors.Is(err, engine.ErrSessionActive):
		c.printer.Printf("a session is already active, /stop it first\n")
	case c.ctl.Notice() != "":
		// Already reported through the observer.
		c.logger.Debug("start failed", zap.Error(err))
	default:
		c.printer.Printf("could not start: %v\n", err)
	}
}

func (c *Console) stop() {
	if !c.ctl.Active() {
		c.printer.Printf("no active session\n")
		return
	}
	if err := c.ctl.Stop(); err != nil {
		c.printer.Printf("could not stop: %v\n", err)
	}
}

func (c *Console) selectSetting(command string, args []string) {
	if c.ctl.Active() {
		c.printer.Printf("settings cannot change during a session, /stop first\n")
		return
	}
	if len(args) != 1 {
		c.printer.Printf("usage: %s <value>\n", command)
		return
	}

	switch command {
	case "/native", "/target":
		lang, err := tutor.ParseLanguage(args[0])
		if err != nil {
			c.printer.Printf("%v, see /languages\n", err)
			return
		}
		if command == "/native" {
			c.settings.Native = lang
		} else {
			c.settings.Target = lang
		}
	case "/level":
		level, err := tutor.ParseProficiency(args[0])
		if err != nil {
			c.printer.Printf("%v, see /languages\n", err)
			return
		}
		c.settings.Level = level
	}

	c.printer.Printf("* %s speaker learning %s (%s)\n", c.settings.Native, c.settings.Target, c.settings.Level)
}

func (c *Console) printTranscript() {
	entries := c.ctl.Transcript()
	if len(entries) == 0 {
		c.printer.Printf("transcript is empty\n")
		return
	}
	for _, entry := range entries {
		c.printer.Printf("%s\n", formatEntry(entry))
	}
}

func (c *Console) printStatus() {
	c.printer.Printf("state: %s, speaking: %t\n", c.ctl.State(), c.ctl.Speaking())
	c.printer.Printf("settings: %s speaker learning %s (%s)\n", c.settings.Native, c.settings.Target, c.settings.Level)
	c.printer.Printf("transcript entries: %d\n", len(c.ctl.Transcript()))
	if notice := c.ctl.Notice(); notice != "" {
		c.printer.Printf("last notice: %s\n", notice)
	}
}

func (c *Console) printLanguages() {
	names := make([]string, 0, len(tutor.Languages()))
	for _, lang := range tutor.Languages() {
		names = append(names, string(lang))
	}
	levels := make([]string, 0, len(tutor.Proficiencies()))
	for _, level := range tutor.Proficiencies() {
		levels = append(levels, string(level))
	}
	c.printer.Printf("languages: %s\n", strings.Join(names, ", "))
	c.printer.Printf("levels: %s\n", strings.Join(levels, ", "))
}

func (c *Console) printHelp() {
	c.printer.Printf(`commands:
  /start              start a learning session
  /stop               end the session
  /toggle             start or stop
  /native <language>  set your native language
  /target <language>  set the language to learn
  /level <level>      set your proficiency
  /languages          list languages and levels
  /transcript         print the transcript
  /clear              clear the transcript
  /status             show session state
  /quit               exit
`)
}
