// Package logger owns the process-wide logrus logger.
package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log is shared by every package.  It is usable before Init is called
// (logrus defaults) so tests need no setup.
var Log = logrus.New()

type appNameHook struct {
	appName string
}

func (h *appNameHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *appNameHook) Fire(entry *logrus.Entry) error {
	entry.Message = "[" + h.appName + "] " + entry.Message
	return nil
}

// Init configures Log for appName.  An unknown level falls back to info.
func Init(appName, level string) {
	Log.SetOutput(os.Stdout)

	lvlStr := strings.ToLower(strings.TrimSpace(level))
	if lvlStr == "" {
		lvlStr = "info"
	}
	lvl, err := logrus.ParseLevel(lvlStr)
	if err != nil {
		Log.Warnf("invalid LOG_LEVEL %q, defaulting to info", level)
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)

	Log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	Log.AddHook(&appNameHook{appName})
}
