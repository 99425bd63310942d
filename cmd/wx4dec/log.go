package wx4dec

import (
	"fmt"
	"io"
	"path"
	"runtime"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Debug enables verbose logging on both the CLI-facing logrus
	// output and the library-facing zerolog output.
	Debug bool
	// Quiet suppresses informational output and command results; only
	// errors are printed.
	Quiet bool
)

func initLog(cmd *cobra.Command, args []string) {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
		CallerPrettyfier: func(f *runtime.Frame) (string, string) {
			_, filename := path.Split(f.File)
			return "", fmt.Sprintf("%s:%d", filename, f.Line)
		},
	})

	level := zerolog.InfoLevel
	switch {
	case Debug:
		log.SetLevel(log.DebugLevel)
		log.SetReportCaller(true)
		level = zerolog.DebugLevel
	case Quiet:
		log.SetOutput(io.Discard)
		level = zerolog.ErrorLevel
	}

	zlog.Logger = zlog.Logger.Level(level)
}
