package main

import (
	"os"

	"honey-installer/cmd"
)

// main hands control to the cobra command tree and exits with the status it
// reports: 0 when the installer finished or the user aborted, 1 otherwise.
func main() {
	os.Exit(cmd.Execute())
}
