package main

import (
	"github.com/happyfeetx/kiosk/cmd"
)

func main() {
	cmd.Execute()
}
