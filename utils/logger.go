package utils

import (
	"io"
	"os"

	"github.com/gofiber/fiber/v2/log"
)

// SetupLogger configures the fiber default logger. Development runs log at
// debug level; when logFile is set, output is also appended to that file.
// The returned closer releases the file and is never nil.
func SetupLogger(goEnv, logFile string) (io.Closer, error) {
	if goEnv == "" || goEnv == "development" {
		log.SetLevel(log.LevelDebug)
	} else {
		log.SetLevel(log.LevelInfo)
	}

	if logFile == "" {
		log.SetOutput(os.Stderr)
		return nopCloser{}, nil
	}

	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nopCloser{}, err
	}
	log.SetOutput(io.MultiWriter(os.Stderr, file))
	return file, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
