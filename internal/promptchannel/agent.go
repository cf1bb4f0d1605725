package promptchannel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// pollInterval is the agent-mode driver's input-file poll cadence, ported
// verbatim from AgentIo::user_input's sleep(Duration::from_millis(100)).
const pollInterval = 100 * time.Millisecond

// AgentChannel is the "agent" mode prompt channel driver: it communicates
// with an external collaborator over two fixed filesystem paths instead of
// a terminal, per spec.md §6's "Agent-mode driver".
//
// Ported from original_source/rust-project/src/runtime.rs's AgentIo: writes
// a JSON payload to OutputPath describing the current screen text and the
// pending prompt, then polls InputPath until it appears, reads its first
// line, and deletes it.
type AgentChannel struct {
	InputPath  string
	OutputPath string

	mu     sync.Mutex
	screen string
}

func NewAgentChannel(inputPath, outputPath string) *AgentChannel {
	return &AgentChannel{InputPath: inputPath, OutputPath: outputPath}
}

func (c *AgentChannel) SetOutput(text string) {
	c.mu.Lock()
	c.screen = text
	c.mu.Unlock()
}

type agentPayload struct {
	Type    string            `json:"type"`
	Output  string            `json:"output"`
	Prompt  string            `json:"prompt,omitempty"`
	Choices map[string]string `json:"choices,omitempty"`
}

func (c *AgentChannel) currentScreen() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.screen
}

func (c *AgentChannel) writePayload(p agentPayload) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	_ = os.Remove(c.InputPath)
	return os.WriteFile(c.OutputPath, data, 0o644)
}

// awaitInput polls InputPath until it exists, consumes its first line, and
// deletes the file, or returns ErrCancelled if ctx is done first.
func (c *AgentChannel) awaitInput(ctx context.Context) (string, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return "", ErrCancelled
		case <-ticker.C:
			data, err := os.ReadFile(c.InputPath)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					continue
				}
				return "", err
			}
			_ = os.Remove(c.InputPath)
			line, _, _ := strings.Cut(string(data), "\n")
			return strings.TrimRight(line, "\r"), nil
		}
	}
}

func (c *AgentChannel) UserInput(ctx context.Context, prompt string) (string, error) {
	if err := c.writePayload(agentPayload{
		Type:   "user_input",
		Output: c.currentScreen(),
		Prompt: prompt,
	}); err != nil {
		return "", fmt.Errorf("agent channel: write prompt: %w", err)
	}
	return c.awaitInput(ctx)
}

func (c *AgentChannel) UserChoice(ctx context.Context, description string, options []string) (string, error) {
	choices := map[string]string{}
	if len(options) > 0 {
		keys := ChoiceKeys(len(options))
		for i, opt := range options {
			choices[keys[i]] = opt
		}
	}
	if err := c.writePayload(agentPayload{
		Type:    "user_choice",
		Output:  c.currentScreen(),
		Prompt:  description,
		Choices: choices,
	}); err != nil {
		return "", fmt.Errorf("agent channel: write prompt: %w", err)
	}
	if len(options) == 0 {
		// spec.md §4.6 requires blocking until cancellation here, diverging
		// from AgentIo::select_index's original behavior of resolving to
		// index 0 on any non-empty input line.
		<-ctx.Done()
		return "", ErrCancelled
	}
	for {
		answer, err := c.awaitInput(ctx)
		if err != nil {
			return "", err
		}
		if _, ok := ResolveChoice(options, answer); ok {
			return answer, nil
		}
		return "", fmt.Errorf("agent channel: invalid choice %q", answer)
	}
}
