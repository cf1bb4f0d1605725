// Package chatclient implements the HTTP chat transport of spec.md §6:
// an OpenAI-compatible POST /v1/chat/completions call with optional SSE
// streaming, start/stop-delimited multi-output segmentation, a
// hide-delimited visual filter, JSON-schema-constrained "choice" output,
// and short-response retrying.
//
// Ported from original_source/rust-project/src/chat.rs (request shaping,
// normalize_api_url, choices_list schema) and filter.rs (OutputFilter/
// InvertedFilter, see filter.go), with the streaming transport idiom taken
// from reusee-tai/generators/open_ai.go: plain net/http plus
// bufio.Scanner line-prefix-matching "data: ", breaking on
// "data: [DONE]" rather than a dedicated SSE library (none exist in the
// retrieved pack). The shared *http.Client's Transport is upgraded with
// golang.org/x/net/http2.ConfigureTransport, mirroring
// reusee-tai/nets/http_client.go's pattern of a purpose-built shared
// client.
package chatclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/net/http2"

	"looma/internal/interpreter"
)

// DefaultAPIURL and DefaultAPIKey match spec.md §6: "default endpoint
// http://localhost:8080; API key defaults to unused".
const (
	DefaultAPIURL = "http://localhost:8080"
	DefaultAPIKey = "unused"
)

// maxShortResponseRetries caps the "retry until satisfied" loop of
// spec.md §6's "on a short response, retry until satisfied or a retry cap
// is hit" so a persistently under-producing endpoint cannot hang a
// program forever.
const maxShortResponseRetries = 3

// Client is the interpreter's ChatClient implementation. It satisfies
// looma/internal/interpreter.ChatClient.
type Client struct {
	HTTPClient *http.Client
	APIURL     string
	APIKey     string
}

// NewClient builds a Client with a shared, HTTP/2-upgraded transport.
func NewClient(apiURL, apiKey string) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if apiKey == "" {
		apiKey = DefaultAPIKey
	}
	transport := &http.Transport{}
	_ = http2.ConfigureTransport(transport)
	return &Client{
		HTTPClient: &http.Client{Transport: transport},
		APIURL:     apiURL,
		APIKey:     apiKey,
	}
}

var _ interpreter.ChatClient = (*Client)(nil)

// Complete implements interpreter.ChatClient, retrying the whole request
// when fewer outputs came back than requested.
func (c *Client) Complete(ctx context.Context, req interpreter.ChatRequest) (interpreter.ChatResponse, error) {
	var outputs []string
	for attempt := 0; ; attempt++ {
		got, err := c.completeOnce(ctx, req.Body, req.NOutputs)
		if err != nil {
			return interpreter.ChatResponse{}, err
		}
		outputs = got
		if len(outputs) >= req.NOutputs || attempt >= maxShortResponseRetries {
			break
		}
	}
	return interpreter.ChatResponse{Outputs: outputs}, nil
}

// chatControlKeys are the task-level fields that steer this client's own
// filtering/retry behavior; they are stripped from the request body
// before it reaches the chat completions endpoint.
var chatControlKeys = []string{
	"start_str", "stop_str", "hide_start_str", "hide_stop_str",
	"shown", "choices_list", "n_outputs", "api_url", "api_key",
}

func (c *Client) completeOnce(ctx context.Context, body map[string]any, nOutputs int) ([]string, error) {
	startStr, _ := body["start_str"].(string)
	stopStr, _ := body["stop_str"].(string)
	hideStartStr, _ := body["hide_start_str"].(string)
	hideStopStr, _ := body["hide_stop_str"].(string)
	var choicesList []string
	if raw, ok := body["choices_list"].([]any); ok {
		for _, e := range raw {
			if s, ok := e.(string); ok {
				choicesList = append(choicesList, s)
			}
		}
	}

	if (startStr != "") != (stopStr != "") {
		return nil, fmt.Errorf("chatclient: you can either set both start_str and stop_str or none")
	}
	if choicesList != nil {
		if startStr != "" {
			return nil, fmt.Errorf("chatclient: filtering is not supported when using choices")
		}
		if nOutputs != 1 {
			return nil, fmt.Errorf("chatclient: multiple outputs not supported when using choices")
		}
	}

	apiBody := make(map[string]any, len(body))
	for k, v := range body {
		apiBody[k] = v
	}
	for _, k := range chatControlKeys {
		delete(apiBody, k)
	}
	apiBody["stream"] = true
	if v, ok := apiBody["max_completion_tokens"]; ok {
		delete(apiBody, "max_completion_tokens")
		apiBody["max_tokens"] = v
	}
	if nOutputs > 1 {
		apiBody["n"] = nOutputs
	}

	if choicesList != nil {
		schema := choiceSchema(choicesList)
		prompt := fmt.Sprintf(
			"Respond only with a valid JSON object conforming to this schema: %s. Do not add any additional text.",
			mustMarshal(schema),
		)
		messages, _ := apiBody["messages"].([]any)
		messages = append(append([]any(nil), messages...), map[string]any{
			"role":    "user",
			"content": prompt,
		})
		apiBody["messages"] = messages
		apiBody["response_format"] = map[string]any{
			"type":        "json_schema",
			"json_schema": schema,
		}
	}

	payload, err := json.Marshal(apiBody)
	if err != nil {
		return nil, fmt.Errorf("chatclient: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, normalizeAPIURL(c.APIURL), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("chatclient: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &interpreter.RuntimeError{Kind: interpreter.ErrCancelled, Msg: "chat request cancelled"}
		}
		return nil, fmt.Errorf("chatclient: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(resp.Body)
		return nil, fmt.Errorf("chatclient: request failed: %d %s", resp.StatusCode, buf.String())
	}

	outputFilter := NewOutputFilter(startStr, stopStr, nOutputs > 1)
	hideFilter := NewInvertedFilter(hideStartStr, hideStopStr)

	raw := new(strings.Builder)
	ranOutOfContext := false

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil, &interpreter.RuntimeError{Kind: interpreter.ErrCancelled, Msg: "chat stream cancelled"}
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "data: [DONE]") {
			break
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := line[len("data: "):]

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil, fmt.Errorf("chatclient: decode stream chunk: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if chunk.Choices[0].FinishReason == "length" {
			ranOutOfContext = true
		}
		if delta != "" {
			raw.WriteString(delta)
			fragment := outputFilter.Update(delta)
			_ = hideFilter.Update(fragment)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("chatclient: read stream: %w", err)
	}

	if ranOutOfContext {
		return nil, fmt.Errorf("chatclient: generation exceeded context length")
	}

	if choicesList != nil {
		var parsed struct {
			Choice string `json:"choice"`
		}
		if err := json.Unmarshal([]byte(raw.String()), &parsed); err != nil || parsed.Choice == "" {
			return nil, fmt.Errorf("chatclient: choice schema response missing 'choice'")
		}
		return []string{parsed.Choice}, nil
	}

	outs := outputFilter.Outputs()
	trimmed := make([]string, len(outs))
	for i, o := range outs {
		trimmed[i] = strings.TrimSpace(o)
	}
	return trimmed, nil
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func choiceSchema(choices []string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"choice": map[string]any{"enum": choices},
		},
		"required":             []string{"choice"},
		"additionalProperties": false,
	}
}

func mustMarshal(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// normalizeAPIURL mirrors chat.rs's normalize_api_url: strips all trailing
// slashes, then appends "/chat/completions" (appending "/v1" first unless
// the base already ends in it).
func normalizeAPIURL(apiURL string) string {
	base := strings.TrimRight(apiURL, "/")
	if strings.HasSuffix(base, "/v1") {
		return base + "/chat/completions"
	}
	return base + "/v1/chat/completions"
}
