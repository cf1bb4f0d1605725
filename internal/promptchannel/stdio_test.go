package promptchannel

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestStdioChannel_UserInputReturnsRawLine(t *testing.T) {
	in := strings.NewReader("hello world\n")
	var out bytes.Buffer
	ch := NewStdioChannel(in, &out)

	got, err := ch.UserInput(context.Background(), "name?")
	if err != nil {
		t.Fatalf("UserInput: %v", err)
	}
	if got != "hello world" {
		t.Fatalf("got %q", got)
	}
	if !strings.Contains(out.String(), "name?") {
		t.Fatalf("expected prompt echoed, got %q", out.String())
	}
}

func TestStdioChannel_UserChoiceResolvesPositionalKey(t *testing.T) {
	in := strings.NewReader("2\n")
	var out bytes.Buffer
	ch := NewStdioChannel(in, &out)

	got, err := ch.UserChoice(context.Background(), "pick one", []string{"red", "green", "blue"})
	if err != nil {
		t.Fatalf("UserChoice: %v", err)
	}
	if got != "2" {
		t.Fatalf("got %q", got)
	}
}

func TestStdioChannel_UserChoiceEmptyOptionsBlocksUntilCancelled(t *testing.T) {
	in := strings.NewReader("")
	var out bytes.Buffer
	ch := NewStdioChannel(in, &out)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := ch.UserChoice(ctx, "nothing to pick", nil)
	if err != ErrCancelled {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestStdioChannel_SetOutputIsConcurrencySafe(t *testing.T) {
	ch := NewStdioChannel(strings.NewReader(""), &bytes.Buffer{})
	done := make(chan struct{})
	go func() {
		ch.SetOutput("from goroutine")
		close(done)
	}()
	<-done
}
