package flagparse

import (
	"fmt"

	"github.com/paulschiretz/pgl-treesync/pkg/util"
)

// Command is the subcommand selected on the command line.
type Command int

const (
	None Command = iota
	Index
	Compare
	Sync
	Init
	Version
)

var commandToString = map[Command]string{
	None:    "none",
	Index:   "index",
	Compare: "compare",
	Sync:    "sync",
	Init:    "init",
	Version: "version",
}

var stringToCommand map[string]Command

func init() {
	stringToCommand = util.InvertMap(commandToString)
}

func (c Command) String() string {
	if str, ok := commandToString[c]; ok {
		return str
	}
	return fmt.Sprintf("unknown_command(%d)", c)
}

func ParseCommand(s string) (Command, error) {
	if command, ok := stringToCommand[s]; ok && command != None {
		return command, nil
	}
	return None, fmt.Errorf("invalid command: %q. Must be 'index', 'compare', 'sync', 'init' or 'version'", s)
}
