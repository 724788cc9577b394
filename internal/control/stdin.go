// Package control provides the console command surface that drives the
// session on behalf of the excluded UI layer.
package control

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Command is a console command.
type Command int

const (
	CmdConnect Command = iota
	CmdDisconnect
	CmdStatus
	CmdQuit
)

// Handler receives parsed console commands.
type Handler interface {
	HandleCommand(cmd Command)
}

// StdinMonitor reads commands from standard input.
type StdinMonitor struct {
	handler Handler
	logger  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewStdinMonitor creates a stdin monitor.
func NewStdinMonitor(parentCtx context.Context, handler Handler, logger zerolog.Logger) *StdinMonitor {
	ctx, cancel := context.WithCancel(parentCtx)
	return &StdinMonitor{
		handler: handler,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start starts the monitoring loop.
func (sm *StdinMonitor) Start() error {
	go sm.monitorLoop()
	return nil
}

// Stop stops the monitoring loop.
func (sm *StdinMonitor) Stop() error {
	sm.cancel()
	return nil
}

func (sm *StdinMonitor) monitorLoop() {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("\n=== Voice Assistant Console ===")
	fmt.Println("Enter command:")
	fmt.Println("  c or connect    - connect and start talking")
	fmt.Println("  d or disconnect - end the session")
	fmt.Println("  s or status     - show session state")
	fmt.Println("  q or quit       - exit")
	fmt.Println("===============================")

	for {
		select {
		case <-sm.ctx.Done():
			return
		default:
			fmt.Print("> ")
			input, err := reader.ReadString('\n')
			if err != nil {
				sm.logger.Warn().Err(err).Msg("failed to read input")
				return
			}

			input = strings.TrimSpace(input)
			if input == "" {
				continue
			}
			sm.processCommand(input)
		}
	}
}

func (sm *StdinMonitor) processCommand(input string) {
	switch strings.ToLower(input) {
	case "c", "connect":
		sm.handler.HandleCommand(CmdConnect)
	case "d", "disconnect":
		sm.handler.HandleCommand(CmdDisconnect)
	case "s", "status":
		sm.handler.HandleCommand(CmdStatus)
	case "q", "quit", "exit":
		sm.handler.HandleCommand(CmdQuit)
	default:
		fmt.Printf("Unknown command: %s\n", input)
	}
}
