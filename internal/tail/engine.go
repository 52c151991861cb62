package tail

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"tailcast/internal/logging"
)

const defaultCommandBuffer = 64

type commandKind int

const (
	commandRegister commandKind = iota
	commandUnregister
	commandFileChanged
)

type command struct {
	kind     commandKind
	fileName string
	path     string
	conn     Conn
	cursor   int64
	sub      *Subscription
	reply    chan registerReply
	done     chan struct{}
}

type registerReply struct {
	sub *Subscription
	err error
}

// Options configures an Engine.
type Options struct {
	Root          string
	Logger        *logging.Logger
	CatchUp       bool
	CommandBuffer int
	ReadFile      func(path string) ([]byte, error)
}

// Engine runs registration, removal and change handling on a single goroutine.
type Engine struct {
	registry   *Registry
	dispatcher *Dispatcher
	logger     *logging.Logger
	catchUp    bool
	commands   chan command
	stopped    chan struct{}
	running    atomic.Bool
	passes     atomic.Uint64
	readErrors atomic.Uint64
}

// NewEngine creates an Engine with its own Registry.
func NewEngine(options Options) *Engine {
	buffer := options.CommandBuffer
	if buffer <= 0 {
		buffer = defaultCommandBuffer
	}
	registry := NewRegistry()
	return &Engine{
		registry: registry,
		dispatcher: NewDispatcher(registry, DispatcherOptions{
			Root:     options.Root,
			Logger:   options.Logger,
			ReadFile: options.ReadFile,
		}),
		logger:   options.Logger,
		catchUp:  options.CatchUp,
		commands: make(chan command, buffer),
		stopped:  make(chan struct{}),
	}
}

// Registry exposes the engine's registry for read-only inspection.
func (e *Engine) Registry() *Registry {
	if e == nil {
		return nil
	}
	return e.registry
}

// Run processes commands until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return errors.New("tail engine already running")
	}
	defer close(e.stopped)

	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-e.commands:
			e.handle(cmd)
		}
	}
}

// Subscribe registers conn on fileName starting at cursor.
func (e *Engine) Subscribe(ctx context.Context, fileName string, conn Conn, cursor int64) (*Subscription, error) {
	reply := make(chan registerReply, 1)
	cmd := command{
		kind:     commandRegister,
		fileName: fileName,
		conn:     conn,
		cursor:   cursor,
		reply:    reply,
	}
	if err := e.enqueue(ctx, cmd); err != nil {
		return nil, err
	}
	select {
	case result := <-reply:
		return result.sub, result.err
	case <-e.stopped:
		return nil, ErrEngineStopped
	case <-ctx.Done():
	}

	// The register command is already queued; undo it once it lands.
	select {
	case result := <-reply:
		if result.sub != nil {
			e.Unsubscribe(fileName, result.sub)
		}
	case <-e.stopped:
	}
	return nil, ctx.Err()
}

// Unsubscribe removes sub and waits until the removal is applied. It never
// fails; after shutdown it returns immediately.
func (e *Engine) Unsubscribe(fileName string, sub *Subscription) {
	if e == nil || sub == nil {
		return
	}
	done := make(chan struct{})
	cmd := command{
		kind:     commandUnregister,
		fileName: fileName,
		sub:      sub,
		done:     done,
	}
	if err := e.enqueue(context.Background(), cmd); err != nil {
		return
	}
	select {
	case <-done:
	case <-e.stopped:
	}
}

// NotifyChanged queues a delivery pass for path.
func (e *Engine) NotifyChanged(path string) {
	if e == nil || path == "" {
		return
	}
	_ = e.enqueue(context.Background(), command{kind: commandFileChanged, path: path})
}

// Passes reports how many change events have been processed.
func (e *Engine) Passes() uint64 {
	return e.passes.Load()
}

// ReadErrors reports how many change events were dropped on read failure.
func (e *Engine) ReadErrors() uint64 {
	return e.readErrors.Load()
}

func (e *Engine) enqueue(ctx context.Context, cmd command) error {
	select {
	case <-e.stopped:
		return ErrEngineStopped
	default:
	}
	select {
	case e.commands <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.stopped:
		return ErrEngineStopped
	}
}

func (e *Engine) handle(cmd command) {
	defer func() {
		if recovered := recover(); recovered != nil {
			e.logError("tail command panicked", map[string]string{
				"file":  cmd.fileName,
				"path":  cmd.path,
				"panic": fmt.Sprint(recovered),
			})
			if cmd.reply != nil {
				select {
				case cmd.reply <- registerReply{err: fmt.Errorf("tail command panicked: %v", recovered)}:
				default:
				}
			}
			if cmd.done != nil {
				close(cmd.done)
			}
		}
	}()

	switch cmd.kind {
	case commandRegister:
		sub := e.registry.Register(cmd.fileName, cmd.conn, cmd.cursor)
		e.logDebug("tail subscriber registered", map[string]string{
			"file":         cmd.fileName,
			"subscription": sub.ID,
			"cursor":       strconv.FormatInt(cmd.cursor, 10),
		})
		if e.catchUp {
			// A missing file is not fatal here; the viewer waits for the next change.
			_, _ = e.dispatcher.CatchUp(sub)
		}
		cmd.reply <- registerReply{sub: sub}
	case commandUnregister:
		e.registry.Unregister(cmd.fileName, cmd.sub)
		e.logDebug("tail subscriber removed", map[string]string{
			"file":         cmd.fileName,
			"subscription": cmd.sub.ID,
		})
		close(cmd.done)
	case commandFileChanged:
		e.passes.Add(1)
		if _, err := e.dispatcher.OnFileChanged(cmd.path); err != nil {
			e.readErrors.Add(1)
		}
	}
}

func (e *Engine) logDebug(message string, fields map[string]string) {
	if e.logger == nil {
		return
	}
	e.logger.Debug(message, withTailFields(fields))
}

func (e *Engine) logError(message string, fields map[string]string) {
	if e.logger == nil {
		return
	}
	e.logger.Error(message, withTailFields(fields))
}
