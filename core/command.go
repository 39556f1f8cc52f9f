package core

import (
	"errors"
	"sync"

	"l1hal/protocol"
)

// CommandHandler runs a command. It decodes its own arguments, in the order
// of the command's format string.
type CommandHandler func(args *protocol.Decoder) error

// Command is a message known to both ends: a command (host to device) when
// Handler is set, a response (device to host) otherwise.
type Command struct {
	ID      uint16
	Name    string
	Format  string // e.g. "bus=%c addr=%c data=%*s"
	Handler CommandHandler
}

// ErrUnknownCommand is returned for a message id or name not in the registry.
var ErrUnknownCommand = errors.New("unknown command")

type unknownCommandError struct{ id uint16 }

func (e *unknownCommandError) Error() string { return "unknown command ID: " + itoa(int(e.id)) }
func (e *unknownCommandError) Unwrap() error { return ErrUnknownCommand }

// CommandRegistry assigns message ids in registration order.
type CommandRegistry struct {
	mu       sync.RWMutex
	commands []*Command
	nameToID map[string]uint16
}

// NewCommandRegistry returns an empty registry.
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{nameToID: make(map[string]uint16)}
}

// Register adds a command. Registering a name twice returns the first id.
func (r *CommandRegistry) Register(name, format string, handler CommandHandler) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.nameToID[name]; ok {
		return id
	}
	id := uint16(len(r.commands))
	r.commands = append(r.commands, &Command{ID: id, Name: name, Format: format, Handler: handler})
	r.nameToID[name] = id
	return id
}

// RegisterResponse adds a response message.
func (r *CommandRegistry) RegisterResponse(name, format string) uint16 {
	return r.Register(name, format, nil)
}

// Lookup returns the message with the given id.
func (r *CommandRegistry) Lookup(id uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.commands) {
		return nil, false
	}
	return r.commands[id], true
}

// ID returns the id of a message by name.
func (r *CommandRegistry) ID(name string) (uint16, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.nameToID[name]
	return id, ok
}

// Count returns the number of registered messages.
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch runs the handler of command id.
func (r *CommandRegistry) Dispatch(id uint16, args *protocol.Decoder) error {
	cmd, ok := r.Lookup(id)
	if !ok || cmd.Handler == nil {
		return &unknownCommandError{id}
	}
	return cmd.Handler(args)
}

// Message starts a message block for name: its id, ready for arguments to be
// appended.
func (r *CommandRegistry) Message(name string) ([]byte, error) {
	id, ok := r.ID(name)
	if !ok {
		return nil, ErrUnknownCommand
	}
	return protocol.AppendVLQUint(make([]byte, 0, protocol.MaxPayload), uint32(id)), nil
}

// GetCommandsAndResponses returns "name format" strings keyed to their ids,
// split by direction.
func (r *CommandRegistry) GetCommandsAndResponses() (commands, responses map[string]int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	commands = make(map[string]int)
	responses = make(map[string]int)
	for _, cmd := range r.commands {
		key := cmd.Name
		if cmd.Format != "" {
			key += " " + cmd.Format
		}
		if cmd.Handler != nil {
			commands[key] = int(cmd.ID)
		} else {
			responses[key] = int(cmd.ID)
		}
	}
	return commands, responses
}
