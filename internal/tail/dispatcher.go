package tail

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"tailcast/internal/logging"
)

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	Root     string
	Logger   *logging.Logger
	ReadFile func(path string) ([]byte, error)
}

// Stats summarizes one delivery pass.
type Stats struct {
	Subscribers int
	Delivered   int
	Failed      int
	Length      int64
}

// Dispatcher computes and pushes per-subscriber deltas on file changes.
type Dispatcher struct {
	registry *Registry
	root     string
	logger   *logging.Logger
	readFile func(path string) ([]byte, error)
}

// NewDispatcher creates a Dispatcher reading subscribers from registry.
func NewDispatcher(registry *Registry, options DispatcherOptions) *Dispatcher {
	readFile := options.ReadFile
	if readFile == nil {
		readFile = os.ReadFile
	}
	return &Dispatcher{
		registry: registry,
		root:     options.Root,
		logger:   options.Logger,
		readFile: readFile,
	}
}

// OnFileChanged delivers the content appended to filePath since each
// subscriber's cursor. A failed read drops the event without moving any cursor.
func (d *Dispatcher) OnFileChanged(filePath string) (Stats, error) {
	fileName := filepath.Base(filePath)
	subs := d.registry.ListSubscribers(fileName)
	if len(subs) == 0 {
		return Stats{}, nil
	}

	content, err := d.read(filePath)
	if err != nil {
		return Stats{Subscribers: len(subs)}, err
	}
	return d.deliverAll(fileName, content, subs), nil
}

// CatchUp runs a delivery pass for a single subscriber against the current
// file content.
func (d *Dispatcher) CatchUp(sub *Subscription) (Stats, error) {
	if sub == nil {
		return Stats{}, nil
	}
	content, err := d.read(filepath.Join(d.root, sub.FileName))
	if err != nil {
		return Stats{Subscribers: 1}, err
	}
	return d.deliverAll(sub.FileName, content, []*Subscription{sub}), nil
}

func (d *Dispatcher) read(filePath string) ([]byte, error) {
	content, err := d.readFile(filePath)
	if err != nil {
		d.logWarn("tail read failed", map[string]string{
			"path":  filePath,
			"error": err.Error(),
		})
		return nil, fmt.Errorf("%w: %s: %w", ErrReadFailed, filePath, err)
	}
	return content, nil
}

func (d *Dispatcher) deliverAll(fileName string, content []byte, subs []*Subscription) Stats {
	length := int64(len(content))
	stats := Stats{Subscribers: len(subs), Length: length}
	for _, sub := range subs {
		sent, err := d.deliver(sub, content)
		if err != nil {
			stats.Failed++
			d.logWarn("tail delivery failed", map[string]string{
				"file":         fileName,
				"subscription": sub.ID,
				"error":        err.Error(),
			})
		} else if sent {
			stats.Delivered++
		}
		sub.setCursor(length)
	}
	return stats
}

func (d *Dispatcher) deliver(sub *Subscription, content []byte) (bool, error) {
	length := int64(len(content))
	cursor := sub.Cursor()
	if cursor < 0 {
		cursor = 0
	}
	if cursor >= length {
		if cursor > length {
			d.logDebug("tail cursor reset", map[string]string{
				"file":         sub.FileName,
				"subscription": sub.ID,
				"cursor":       strconv.FormatInt(cursor, 10),
				"length":       strconv.FormatInt(length, 10),
			})
		}
		return false, nil
	}
	if sub.conn == nil {
		return false, nil
	}
	err := sub.conn.Send(EventChange, Delivery{
		File:   sub.FileName,
		Data:   string(content[cursor:]),
		Cursor: length,
	})
	return err == nil, err
}

func (d *Dispatcher) logWarn(message string, fields map[string]string) {
	if d == nil || d.logger == nil {
		return
	}
	d.logger.Warn(message, withTailFields(fields))
}

func (d *Dispatcher) logDebug(message string, fields map[string]string) {
	if d == nil || d.logger == nil {
		return
	}
	d.logger.Debug(message, withTailFields(fields))
}

func withTailFields(fields map[string]string) map[string]string {
	merged := make(map[string]string, len(fields)+1)
	merged["tailcast.category"] = "tail"
	for key, value := range fields {
		merged[key] = value
	}
	return merged
}
