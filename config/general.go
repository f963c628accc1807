package config

import (
	"fmt"
	"io"
	"os"

	"github.com/go-ini/ini"
	"github.com/mattn/go-isatty"

	"git.sr.ht/~rjarry/msglist/lib/log"
	"git.sr.ht/~rjarry/msglist/lib/xdg"
)

type GeneralConfig struct {
	LogFile     string       `ini:"log-file"`
	LogLevel    log.LogLevel `ini:"-"`
	SettingsDir string       `ini:"settings-dir"`
}

func defaultGeneralConfig() GeneralConfig {
	return GeneralConfig{
		LogLevel:    log.INFO,
		SettingsDir: xdg.CachePath("settings"),
	}
}

func (config *Config) parseGeneral(file *ini.File) error {
	gen, err := file.GetSection("general")
	if err != nil {
		return nil
	}
	if err := gen.MapTo(&config.General); err != nil {
		return err
	}
	if level, err := gen.GetKey("log-level"); err == nil {
		l, err := log.ParseLevel(level.String())
		if err != nil {
			return err
		}
		config.General.LogLevel = l
	}
	config.General.SettingsDir = xdg.ExpandHome(config.General.SettingsDir)
	log.Debugf("msglist.conf: [general] %#v", config.General)
	return nil
}

// SetupLogging initializes the logger. When stdout is not a terminal, logs
// go there at DEBUG level. Otherwise they go to log-file if set and are
// discarded if not. The returned closer must be closed on exit.
func (gen *GeneralConfig) SetupLogging() (io.Closer, error) {
	var logFile *os.File
	level := gen.LogLevel
	if !isatty.IsTerminal(os.Stdout.Fd()) &&
		!isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		logFile = os.Stdout
		// redirected to file, force DEBUG level
		level = log.DEBUG
	} else if gen.LogFile != "" {
		var err error
		logFile, err = os.OpenFile(xdg.ExpandHome(gen.LogFile),
			os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("log-file: %w", err)
		}
	}
	if logFile == nil {
		log.Init(nil, level)
		return io.NopCloser(nil), nil
	}
	log.Init(logFile, level)
	if logFile == os.Stdout {
		return io.NopCloser(nil), nil
	}
	return logFile, nil
}
