// Package simiface is the entry surface the host simulation plugin shim
// calls into. The C FFI layer itself is owned by the host build; this
// package exposes the version handshake and the command entry points and
// routes everything through the dispatcher.
package simiface

import (
	"fmt"
	"strings"
	"time"

	"github.com/simflight/quadext/internal/dispatcher"
	"github.com/simflight/quadext/internal/util"
)

// Config defines how calls to this extension will be handled
var Config configStruct = configStruct{}

func init() {
	Config.Init()
}

// configStruct is the central configuration used by this library
type configStruct struct {
	// version is the value returned by the version handshake when the
	// extension is first loaded by the host
	version string

	// dispatcher handles command routing
	dispatcher *dispatcher.Dispatcher
}

// Init method initializes the config struct
func (c *configStruct) Init() {
	c.version = "No version set"
}

// SetVersion sets the string returned by the version handshake.
func SetVersion(version string) {
	Config.version = version
}

// SetDispatcher sets the command dispatcher.
func SetDispatcher(d *dispatcher.Dispatcher) {
	Config.dispatcher = d
}

// GetDispatcher returns the configured dispatcher, or nil if not set
func GetDispatcher() *dispatcher.Dispatcher {
	return Config.dispatcher
}

// Version is the handshake called by the host when the plugin loads.
func Version() string {
	return Config.version
}

// Call handles a bare command from the host, in the format
// ":COMMAND:" or ":COMMAND:|arg. Pipe-separated arguments are split off
// before dispatch.
func Call(command string) string {
	// Built-in timestamp command
	if command == ":TIMESTAMP:" {
		return getTimestamp()
	}

	parts := strings.Split(command, "|")

	if Config.dispatcher != nil && Config.dispatcher.HasHandler(parts[0]) {
		args := parts[1:]
		for i, a := range args {
			args[i] = util.CleanArg(a)
		}

		event := dispatcher.Event{
			Command:   parts[0],
			Args:      args,
			Timestamp: time.Now(),
		}

		result, err := Config.dispatcher.Dispatch(event)
		return formatDispatchResponse(parts[0], result, err)
	}

	return fmt.Sprintf(`["error", "%s", "no handler registered"]`, command)
}

// CallArgs handles a command with a separate argument array from the host.
// The host passes string arguments quoted; quotes are stripped before
// dispatch.
func CallArgs(command string, args []string) string {
	if Config.dispatcher != nil && Config.dispatcher.HasHandler(command) {
		cleaned := make([]string, len(args))
		for i, a := range args {
			cleaned[i] = util.CleanArg(a)
		}

		event := dispatcher.Event{
			Command:   command,
			Args:      cleaned,
			Timestamp: time.Now(),
		}

		result, err := Config.dispatcher.Dispatch(event)
		return formatDispatchResponse(command, result, err)
	}

	return fmt.Sprintf(`["error", "%s", "no handler registered"]`, command)
}

// formatDispatchResponse formats the dispatcher result for the host
func formatDispatchResponse(command string, result any, err error) string {
	if err != nil {
		return fmt.Sprintf(`["error", "%s", "%s"]`, command, err.Error())
	}
	if result == nil {
		return fmt.Sprintf(`["ok", "%s"]`, command)
	}
	return fmt.Sprintf(`["ok", "%s", "%v"]`, command, result)
}

func getTimestamp() string {
	return fmt.Sprintf("%d", time.Now().UTC().UnixNano())
}
