package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command represents a bot command with its handler, description, and metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// Hidden keeps the command out of the client command menu.
	Hidden bool
	// Aliases are extra names, with or without the leading slash.
	Aliases []string
}
