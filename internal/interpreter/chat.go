package interpreter

import (
	"context"

	"looma/internal/program"
	"looma/internal/trace"
	"looma/internal/value"
)

// ChatRequest is the interpreter's view of one "chat" task: the fully
// merged, interpolated request body (program completion_args, task
// fields minus interpreter-internal keys, extra_body flattened in) plus
// the requested output count. internal/chatclient owns turning this into
// an actual HTTP request and retrying short responses.
type ChatRequest struct {
	Body     map[string]any
	NOutputs int
}

// ChatResponse carries back however many completions the transport
// obtained (one per requested output, after any short-response retries).
type ChatResponse struct {
	Outputs []string
}

// chatInternalKeys are stripped from a chat task before it is merged into
// the request body, per spec.md §6's "per-task fields minus
// interpreter-internal keys (cmd, output_name, line, and traceback_label
// if present)".
var chatInternalKeys = map[string]bool{
	"cmd":             true,
	"output_name":     true,
	"line":            true,
	"traceback_label": true,
}

// cmdChat builds the request body by merging completion_args under the
// task's own fields, flattening extra_body into the top level, then
// interpolating the whole tree before dispatching to the configured
// ChatClient, per spec.md §4.6/§6.
func (in *Interpreter) cmdChat(ctx context.Context, task program.Task) error {
	if in.Chat == nil {
		return runtimeErr(ErrTransport, task.Line(), "chat: no chat client configured")
	}

	body := make(map[string]any, len(in.Program.CompletionArgs)+len(task))
	for k, v := range in.Program.CompletionArgs {
		body[k] = v
	}
	for k, v := range task {
		if chatInternalKeys[k] {
			continue
		}
		body[k] = v
	}
	if extra, ok := body["extra_body"]; ok {
		delete(body, "extra_body")
		if m, ok := extra.(map[string]any); ok {
			for k, v := range m {
				body[k] = v
			}
		}
	}

	resolvedAny, err := in.interpolateTree(task.Line(), body)
	if err != nil {
		return err
	}
	resolvedBody, _ := resolvedAny.(map[string]any)

	nOutputs := 1
	switch n := resolvedBody["n_outputs"].(type) {
	case int64:
		nOutputs = int(n)
	case float64:
		nOutputs = int(n)
	}
	if nOutputs < 1 {
		nOutputs = 1
	}

	trace.SafeRecord(in.Trace, trace.TraceEvent{Kind: trace.EventChatStart, TaskID: taskID(task)})
	resp, err := in.Chat.Complete(ctx, ChatRequest{Body: resolvedBody, NOutputs: nOutputs})
	if err != nil {
		trace.SafeRecord(in.Trace, trace.TraceEvent{Kind: trace.EventChatError, TaskID: taskID(task), Detail: err.Error()})
		if isCancelled(err) {
			return runtimeErr(ErrCancelled, task.Line(), "chat cancelled")
		}
		return wrapErr(ErrTransport, task.Line(), err)
	}
	trace.SafeRecord(in.Trace, trace.TraceEvent{Kind: trace.EventChatDone, TaskID: taskID(task)})

	if len(resp.Outputs) == 0 {
		return runtimeErr(ErrTransport, task.Line(), "chat: empty response")
	}

	outputName, _ := stringField(task, "output_name")
	if nOutputs <= 1 {
		in.Store.Set(outputName, value.Str(resp.Outputs[0]))
		return nil
	}
	items := make([]value.Value, len(resp.Outputs))
	for i, o := range resp.Outputs {
		items[i] = value.Str(o)
	}
	in.Store.Set(outputName, value.List(items))
	return nil
}
