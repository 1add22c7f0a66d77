package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/jrick/logrotate/rotator"
	"github.com/mastercactapus/lasersim/config"
)

// logWriter writes to stderr and to the rotated log file.
type logWriter struct {
	r *rotator.Rotator
}

func (w logWriter) Write(p []byte) (int, error) {
	os.Stderr.Write(p)
	w.r.Write(p)
	return len(p), nil
}

// initLogRotator sends the standard logger to cfg.LogFile as well as stderr.
// The returned func restores stderr-only output and closes the file.
func initLogRotator(cfg config.Config) (func(), error) {
	if cfg.LogFile == "" {
		return func() {}, nil
	}

	dir, _ := filepath.Split(cfg.LogFile)
	if dir != "" {
		err := os.MkdirAll(dir, 0700)
		if err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	r, err := rotator.New(cfg.LogFile, cfg.LogMaxKB, false, cfg.LogRolls)
	if err != nil {
		return nil, fmt.Errorf("create file rotator: %w", err)
	}

	log.SetOutput(logWriter{r: r})
	return func() {
		log.SetOutput(os.Stderr)
		r.Close()
	}, nil
}
