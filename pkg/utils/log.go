package utils

import (
	"bufio"
	"io"

	log "github.com/sirupsen/logrus"
)

// LogPipe writes every line read from pipe to the standard logger at level,
// tagged with the name of the tool that produced it.
func LogPipe(pipe io.ReadCloser, level log.Level, tool string) {
	defer pipe.Close()
	entry := log.WithField("tool", tool)
	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		entry.Log(level, scanner.Text())
	}
}
