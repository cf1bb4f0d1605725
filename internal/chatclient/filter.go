package chatclient

// OutputFilter segments a raw streamed token sequence into zero or more
// discrete "outputs" delimited by startStr/stopStr markers, optionally
// numbering each output as it opens. With no delimiters configured, every
// chunk belongs to a single unnamed output and is passed through
// unchanged.
//
// Ported from original_source/rust-project/src/filter.rs's OutputFilter.
type OutputFilter struct {
	startStr         string
	stopStr          string
	enumerateOutputs bool

	buffer  string
	shown   bool
	outputs []string
}

func NewOutputFilter(startStr, stopStr string, enumerateOutputs bool) *OutputFilter {
	return &OutputFilter{startStr: startStr, stopStr: stopStr, enumerateOutputs: enumerateOutputs}
}

// Update feeds the next chunk of raw text and returns the fragment (if
// any) that should be shown to the caller, including any "N. " enumeration
// prefix emitted when a new output opens.
func (f *OutputFilter) Update(chunk string) string {
	if f.startStr == "" || f.stopStr == "" {
		if len(f.outputs) == 0 {
			f.outputs = append(f.outputs, "")
		}
		f.outputs[len(f.outputs)-1] += chunk
		return chunk
	}

	f.buffer += chunk
	nextStr := f.startStr
	if f.shown {
		nextStr = f.stopStr
	}

	enumeration := ""
	if nextStr != "" && hasPrefix(f.buffer, nextStr) {
		f.buffer = f.buffer[len(nextStr):]
		f.shown = !f.shown
		if f.shown {
			f.outputs = append(f.outputs, "")
			if f.enumerateOutputs {
				if len(f.outputs) > 1 {
					enumeration += "\n\n"
				}
				enumeration += itoa(len(f.outputs)) + ". "
			}
		}
	}

	safe := safeIndex(f.buffer, nextStr)
	delta := ""
	if f.shown {
		delta = f.buffer[:safe]
	}
	f.buffer = f.buffer[safe:]
	if f.shown && len(f.outputs) > 0 {
		f.outputs[len(f.outputs)-1] += delta
	}
	return enumeration + delta
}

// Outputs returns every output opened so far, in order.
func (f *OutputFilter) Outputs() []string {
	out := make([]string, len(f.outputs))
	copy(out, f.outputs)
	return out
}

// InvertedFilter is the dual of OutputFilter: text is shown by default and
// hidden between startStr/stopStr markers (used for hide_start_str/
// hide_stop_str).
//
// Ported from filter.rs's InvertedFilter.
type InvertedFilter struct {
	startStr string
	stopStr  string
	buffer   string
	shown    bool
}

func NewInvertedFilter(startStr, stopStr string) *InvertedFilter {
	return &InvertedFilter{startStr: startStr, stopStr: stopStr, shown: true}
}

func (f *InvertedFilter) Update(chunk string) string {
	f.buffer += chunk
	nextStr := f.stopStr
	if f.shown {
		nextStr = f.startStr
	}

	if nextStr != "" && hasPrefix(f.buffer, nextStr) {
		f.buffer = f.buffer[len(nextStr):]
		f.shown = !f.shown
	}

	safe := safeIndex(f.buffer, nextStr)
	delta := ""
	if f.shown {
		delta = f.buffer[:safe]
	}
	f.buffer = f.buffer[safe:]
	return delta
}

// safeIndex returns the longest prefix length of buffer that cannot
// possibly be, or become, a prefix of nextStr as more text streams in —
// i.e. the point up to which buffer is safe to flush.
func safeIndex(buffer, nextStr string) int {
	if nextStr == "" {
		return len(buffer)
	}
	safe := len(buffer)
	for i := range buffer {
		if hasPrefix(nextStr, buffer[i:]) {
			safe = i
			break
		}
	}
	return safe
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
