// Package logging provides the operational — human/operator-facing —
// logger for cmd/looma: "task executed", "chat request failed,
// retrying", "cancelled by parallel_race". It is distinct from
// internal/trace's deterministic, diffable execution trace.
//
// Grounded on reusee-tai/logs/logger.go: log/slog fanned out with
// github.com/samber/slog-multi to a terminal text handler and,
// best-effort, github.com/systemd/slog-journal (see New for when each
// handler is used). The teacher wires this construction through its
// own cmds/Module/dscope dependency-injection framework and a
// context-borne tracing span (logs.Handler/Span); neither has any
// equivalent need here, so this package is a plain constructor function
// instead.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	slogmulti "github.com/samber/slog-multi"
	slogjournal "github.com/systemd/slog-journal"
)

// Level is the package-level, runtime-adjustable minimum log level for
// the terminal handler. No CLI flag sets it.
var Level = new(slog.LevelVar)

// New builds the fanned-out operational logger. It writes human-readable
// text to w unless the parent of the /proc/self/cgroup path ends in
// ".service", and adds a structured journal handler whenever one can be
// opened, whether or not that check matched.
func New(w io.Writer) *slog.Logger {
	var handlers []slog.Handler

	isSystemdService := false
	if cgroupPath, err := cgroupPath(); err == nil {
		isSystemdService = strings.HasSuffix(path.Dir(cgroupPath), ".service")
	}

	var terminalHandler slog.Handler
	if !isSystemdService {
		terminalHandler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: Level})
		handlers = append(handlers, terminalHandler)
	}

	journalHandler, err := slogjournal.NewHandler(&slogjournal.Options{
		ReplaceGroup: func(key string) string { return toJournalKey(key) },
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			a.Key = toJournalKey(a.Key)
			return a
		},
	})
	if err != nil {
		if terminalHandler != nil {
			record := slog.NewRecord(time.Now(), slog.LevelWarn, "new systemd journal handler", 0)
			record.Add("error", err)
			_ = terminalHandler.Handle(context.Background(), record)
		}
	} else {
		handlers = append(handlers, journalHandler)
	}

	return slog.New(slogmulti.Fanout(handlers...))
}

func toJournalKey(str string) string {
	str = strings.ToUpper(str)
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, str)
}

func cgroupPath() (string, error) {
	content, err := os.ReadFile("/proc/self/cgroup")
	if err != nil {
		return "", err
	}
	parts := strings.Split(string(content), ":")
	if len(parts) >= 3 {
		return parts[2], nil
	}
	return "", nil
}
