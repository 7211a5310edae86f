// Command samp-server-go is the process entrypoint: load configuration,
// build the world and game mode, and run the server until a shutdown
// signal arrives.
package main

import (
	"os"

	"github.com/samp-server-go/netcore/internal/logging"
	"github.com/sirupsen/logrus"
)

// Version is the server's release version, reported in the startup
// banner and by --version.
const Version = "0.1.0"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logging.New(logrus.InfoLevel).WithError(err).Error("samp-server-go exited with error")
		os.Exit(1)
	}
}
