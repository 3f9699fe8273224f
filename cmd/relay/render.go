package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/fwojciec/relay"
)

var (
	heartbeatColor = color.New(color.Faint)
	retryColor     = color.New(color.FgYellow)
	failColor      = color.New(color.FgRed, color.Bold)
	doneColor      = color.New(color.FgGreen)
)

// render drains s, writing text to stdout and everything else to stderr.
// A fatal error event is returned as an error.
func render(s *relay.Stream, stdout, stderr io.Writer) error {
	for {
		e, err := s.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		switch ev := e.(type) {
		case relay.EventChunk:
			fmt.Fprint(stdout, ev.Delta)
			for _, c := range ev.Citations {
				heartbeatColor.Fprintf(stderr, "[cite %d-%d] %s\n", c.StartIndex, c.EndIndex, c.URI)
			}
		case relay.EventHeartbeat:
			heartbeatColor.Fprintf(stderr, "… waiting (%s)\n", ev.Time.Format("15:04:05"))
		case relay.EventError:
			if ev.Retryable {
				retryColor.Fprintf(stderr, "retry %d: %s: %s\n", ev.Attempt, ev.Kind, ev.Message)
				continue
			}
			fmt.Fprintln(stdout)
			failColor.Fprintf(stderr, "failed (%s) after %d retries: %s\n", ev.Kind, ev.Attempt, ev.Message)
			return fmt.Errorf("session %s: %s", s.SessionID(), ev.Kind)
		case relay.EventComplete:
			fmt.Fprintln(stdout)
			doneColor.Fprintf(stderr, "done: %d chunks, %s\n", ev.TotalChunks, ev.FinishReason)
		}
	}
}
