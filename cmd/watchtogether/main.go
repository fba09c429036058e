package main

import (
	"github.com/Ajaxkicker/WatchTogether/internal/commands"
)

func main() {
	commands.Execute()
}
