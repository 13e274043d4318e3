package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"enginesis-client/internal/config"
)

var (
	writerMu     sync.Mutex
	activeWriter io.Writer = os.Stdout
)

func Init(cfg config.LogConfig) {
	level := zerolog.InfoLevel
	if v := strings.TrimSpace(cfg.Level); v != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}

	var output io.Writer = os.Stdout
	if cfg.File != "" {
		if w, err := newSizeLimitedWriter(cfg.File, cfg.MaxMB); err == nil {
			output = w
		}
	}

	writerMu.Lock()
	activeWriter = output
	writerMu.Unlock()

	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// Writer returns the sink selected by Init so other logging frontends
// (httplog in the stub service) share the same destination.
func Writer() io.Writer {
	writerMu.Lock()
	defer writerMu.Unlock()
	return activeWriter
}
