package framework

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/windflowlabs/windflow/pkg/executor"
)

// ScriptedExecutor records every command it is asked to run and
// answers through Respond. With no Respond set, everything exits 0.
type ScriptedExecutor struct {
	mu       sync.Mutex
	commands []string
	respond  func(command string) *executor.Result
	written  map[string][]byte
}

// Respond installs the answer function for subsequent commands.
func (f *ScriptedExecutor) Respond(fn func(command string) *executor.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.respond = fn
}

func (f *ScriptedExecutor) Run(ctx context.Context, command string, timeout time.Duration, requireSuccess bool) (*executor.Result, error) {
	f.mu.Lock()
	f.commands = append(f.commands, command)
	respond := f.respond
	f.mu.Unlock()
	if respond != nil {
		return respond(command), nil
	}
	return &executor.Result{ExitStatus: 0}, nil
}

func (f *ScriptedExecutor) WriteFile(ctx context.Context, path string, data []byte, mode os.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.written == nil {
		f.written = make(map[string][]byte)
	}
	f.written[path] = data
	return nil
}

func (f *ScriptedExecutor) Describe() string { return "scripted-host" }
func (f *ScriptedExecutor) Close() error     { return nil }

// Commands returns a copy of everything run so far.
func (f *ScriptedExecutor) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

// Written returns the file contents placed on the fake host, or nil.
func (f *ScriptedExecutor) Written(path string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written[path]
}
