package config

import (
	"errors"
	"os"
	"unicode"

	"github.com/go-ini/ini"

	"git.sr.ht/~rjarry/msglist/lib/log"
	"git.sr.ht/~rjarry/msglist/lib/xdg"
)

type Config struct {
	General GeneralConfig
	View    ViewConfig

	contexts []viewContext
}

// Input: FastPathLimit
// Output: fast-path-limit
func mapName(raw string) string {
	newstr := make([]rune, 0, len(raw))
	for i, chr := range raw {
		if isUpper := 'A' <= chr && chr <= 'Z'; isUpper {
			if i > 0 {
				newstr = append(newstr, '-')
			}
		}
		newstr = append(newstr, unicode.ToLower(chr))
	}
	return string(newstr)
}

func defaultConfig() *Config {
	return &Config{
		General: defaultGeneralConfig(),
		View:    defaultViewConfig(),
	}
}

// LoadFile reads the configuration from filename, msglist.conf in the user
// config dir when empty. A missing file yields the defaults.
func LoadFile(filename string) (*Config, error) {
	if filename == "" {
		filename = xdg.ConfigPath("msglist.conf")
	}
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		log.Debugf("%s not found, using defaults", filename)
		return defaultConfig(), nil
	}
	return Load(filename)
}

// Load parses source, a file name or raw []byte contents.
func Load(source any) (*Config, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		KeyValueDelimiters: "=",
	}, source)
	if err != nil {
		return nil, err
	}
	file.NameMapper = mapName
	config := defaultConfig()
	if err := config.parseGeneral(file); err != nil {
		return nil, err
	}
	if err := config.parseView(file); err != nil {
		return nil, err
	}
	return config, nil
}
