package database

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// gooseLogger sends goose's progress lines through zerolog instead of the
// standard library logger.
type gooseLogger struct {
	logger *zerolog.Logger
}

func (g gooseLogger) target() *zerolog.Logger {
	if g.logger != nil {
		return g.logger
	}
	return &log.Logger
}

func (g gooseLogger) Printf(format string, v ...interface{}) {
	g.target().Info().Str("component", "migrate").Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (g gooseLogger) Fatalf(format string, v ...interface{}) {
	g.target().Fatal().Str("component", "migrate").Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
