package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"gwi.com/chat-memory/internal/core"
	"gwi.com/chat-memory/internal/extract"
)

const replHelp = `Type a question and press enter.
  /file <path>  attach a file to the next question
  /save         store this conversation for later retrieval
  exit          quit`

// runREPL chats on the console until "exit", end of input or ctx is done.
// Input is scanned on its own goroutine so cancellation does not wait for
// the next line; that goroutine stays blocked in Read until in yields.
func runREPL(ctx context.Context, svc *core.ChatService, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	id := svc.OpenSession()
	defer svc.CloseSession(id)

	fmt.Fprintln(out, replHelp)
	sink := func(ev core.Event) {
		switch ev.Kind {
		case core.EventAssistantChunk:
			fmt.Fprint(out, ev.Text)
		case core.EventAssistantComplete:
			fmt.Fprintln(out)
		case core.EventAssistantError:
			fmt.Fprintln(out, ev.Text)
		}
	}

	lines, scanErr := scanLines(ctx, in)
	var fileText string
	for {
		fmt.Fprint(out, "> ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case l, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			line = strings.TrimSpace(l)
		}

		switch {
		case line == "":
			continue
		case line == "exit":
			return nil
		case line == "/save":
			report, err := svc.SaveSession(ctx, id)
			if err != nil {
				fmt.Fprintf(out, "Save failed: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "Saved %d turns (%d embeddings).\n", report.Turns, report.Vectors)
		case strings.HasPrefix(line, "/file "):
			fileText = extract.Text(strings.TrimSpace(strings.TrimPrefix(line, "/file ")))
			if fileText == "" {
				fmt.Fprintln(out, "No text extracted!")
				continue
			}
			fmt.Fprintf(out, "File loaded (%d characters).\n", len(fileText))
		default:
			svc.Send(ctx, id, line, fileText, sink)
			fileText = ""
		}
	}
}

// scanLines delivers the lines of in until it ends or ctx is done. The scan
// error, if any, is ready on the second channel once lines is closed.
func scanLines(ctx context.Context, in io.Reader) (<-chan string, <-chan error) {
	lines := make(chan string)
	scanErr := make(chan error, 1)
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
		scanErr <- scanner.Err()
	}()
	return lines, scanErr
}
