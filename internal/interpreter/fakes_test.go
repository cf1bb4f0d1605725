package interpreter

import (
	"context"

	"looma/internal/inserts"
	"looma/internal/program"
	"looma/internal/promptchannel"
	"looma/internal/value"
)

// scriptedChannel answers user_input/user_choice from fixed queues, for
// deterministic dispatch tests that never touch a real terminal.
type scriptedChannel struct {
	inputs  []string
	choices []string
	screens []string
}

func (c *scriptedChannel) UserInput(ctx context.Context, prompt string) (string, error) {
	if len(c.inputs) == 0 {
		return "", promptchannel.ErrCancelled
	}
	next := c.inputs[0]
	c.inputs = c.inputs[1:]
	return next, nil
}

func (c *scriptedChannel) UserChoice(ctx context.Context, description string, options []string) (string, error) {
	if len(c.choices) == 0 {
		return "", promptchannel.ErrCancelled
	}
	next := c.choices[0]
	c.choices = c.choices[1:]
	return next, nil
}

func (c *scriptedChannel) SetOutput(text string) {
	c.screens = append(c.screens, text)
}

// fakeChatClient returns a fixed response, or an error when configured to.
type fakeChatClient struct {
	resp ChatResponse
	err  error
	reqs []ChatRequest
}

func (f *fakeChatClient) Complete(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return ChatResponse{}, f.err
	}
	return f.resp, nil
}

func newProgram(order []program.Task) *program.Program {
	return &program.Program{
		Order:          order,
		NamedTasks:     map[string]program.Task{},
		DefaultState:   map[string]any{},
		SaveStates:     map[string]any{},
		CompletionArgs: map[string]any{},
	}
}

// newTestInterpreter builds an Interpreter over order with a fresh insert
// store seeded from seed, and a scriptedChannel as its prompt channel.
func newTestInterpreter(order []program.Task, seed map[string]any) (*Interpreter, *inserts.Store, *scriptedChannel) {
	store := inserts.New(inserts.Options{})
	for k, v := range seed {
		store.Set(k, value.FromAny(v))
	}
	ch := &scriptedChannel{}
	in := New(newProgram(order), store, ch)
	return in, store, ch
}
