package promptchannel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// StdioChannel is the default ("ui") prompt channel driver: it reads
// answers from an io.Reader (os.Stdin in production) and writes prompts to
// an io.Writer (os.Stdout in production). It stands in for the TUI
// collaborator spec.md places out of scope.
type StdioChannel struct {
	in  *bufio.Reader
	out io.Writer

	mu     sync.Mutex
	screen string
}

func NewStdioChannel(in io.Reader, out io.Writer) *StdioChannel {
	return &StdioChannel{in: bufio.NewReader(in), out: out}
}

func (c *StdioChannel) SetOutput(text string) {
	c.mu.Lock()
	c.screen = text
	c.mu.Unlock()
}

func (c *StdioChannel) UserInput(ctx context.Context, prompt string) (string, error) {
	if prompt != "" {
		fmt.Fprintln(c.out, prompt)
	}
	return c.readLine(ctx)
}

func (c *StdioChannel) UserChoice(ctx context.Context, description string, options []string) (string, error) {
	if description != "" {
		fmt.Fprintln(c.out, description)
	}
	if len(options) == 0 {
		// spec.md §4.6: an empty list blocks until cancellation.
		<-ctx.Done()
		return "", ErrCancelled
	}
	keys := ChoiceKeys(len(options))
	for i, opt := range options {
		fmt.Fprintf(c.out, "  %s) %s\n", keys[i], opt)
	}
	for {
		answer, err := c.readLine(ctx)
		if err != nil {
			return "", err
		}
		if _, ok := ResolveChoice(options, answer); ok {
			return answer, nil
		}
		fmt.Fprintf(c.out, "invalid choice %q, try again\n", answer)
	}
}

// readLine blocks on the underlying reader in a background goroutine so
// that ctx cancellation can interrupt a pending prompt, per spec.md §5
// ("waits on the prompt channel return cancelled"). bufio.Reader is not
// itself cancellable; this is the standard fan-in idiom for bridging a
// blocking read with context cancellation.
func (c *StdioChannel) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		line, err := c.in.ReadString('\n')
		done <- result{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ErrCancelled
	case r := <-done:
		if r.err != nil && r.err != io.EOF {
			return "", r.err
		}
		return strings.TrimRight(r.line, "\r\n"), nil
	}
}
