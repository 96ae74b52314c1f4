// Command rshell runs the interactive job-controlling shell.
package main

import (
	"fmt"
	"os"

	"github.com/rtolkacheva/rshell"
	"github.com/rtolkacheva/rshell/internal/shellio"
)

func main() {
	log := shellio.NewLogger()
	defer log.Sync()

	session := shellio.NewSession()
	log.Infow("session started", "session_id", session.SessionID, "user", session.UserName, "host", session.Hostname)

	sh, err := rshell.NewShell(log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rshell: %v\n", err)
		os.Exit(1)
	}

	sh.Run()
}
