package config

import (
	"fmt"
	"strings"

	"github.com/danwakefield/fnmatch"
	"github.com/go-ini/ini"

	"git.sr.ht/~rjarry/msglist/lib/log"
	"git.sr.ht/~rjarry/msglist/lib/msglist"
	"git.sr.ht/~rjarry/msglist/lib/sort"
)

type ViewConfig struct {
	ThreadingEnabled bool     `ini:"threading-enabled"`
	ThreadBySubject  bool     `ini:"thread-by-subject"`
	ThreadAlgorithm  string   `ini:"thread-algorithm"`
	HideDeleted      bool     `ini:"hide-deleted"`
	Sort             []string `delim:" "`
	FastPathLimit    int      `ini:"fast-path-limit"`
}

func defaultViewConfig() ViewConfig {
	return ViewConfig{
		ThreadAlgorithm: msglist.AlgorithmJWZ,
		FastPathLimit:   msglist.DefaultFastPathLimit,
	}
}

// viewContext is a [view:folder=NAME] or [view:folder~GLOB] section.
type viewContext struct {
	name    string
	glob    bool
	pattern string
	section *ini.Section
}

func (c *viewContext) match(folder string) bool {
	if c.glob {
		return fnmatch.Match(c.pattern, folder, 0)
	}
	return c.pattern == folder
}

func (config *Config) parseView(file *ini.File) error {
	if view, err := file.GetSection("view"); err == nil {
		if err := config.View.parse(view); err != nil {
			return err
		}
	}

	for _, sectionName := range file.SectionStrings() {
		if !strings.HasPrefix(sectionName, "view:") {
			continue
		}
		section, err := file.GetSection(sectionName)
		if err != nil {
			return err
		}
		context := viewContext{name: sectionName, section: section}

		var index int
		switch {
		case strings.Contains(sectionName, "~"):
			index = strings.Index(sectionName, "~")
			context.glob = true
		case strings.Contains(sectionName, "="):
			index = strings.Index(sectionName, "=")
		default:
			return fmt.Errorf("Invalid view context in %s", sectionName)
		}
		if sectionName[5:index] != "folder" {
			return fmt.Errorf("Unknown contextual view section: %s", sectionName)
		}
		context.pattern = sectionName[index+1:]

		// catch invalid values early
		sub := config.View
		if err := sub.parse(section); err != nil {
			return fmt.Errorf("%s: %w", sectionName, err)
		}
		config.contexts = append(config.contexts, context)
	}

	log.Debugf("msglist.conf: [view] %#v", config.View)
	return nil
}

func (config *ViewConfig) parse(section *ini.Section) error {
	if err := section.MapTo(config); err != nil {
		return err
	}
	switch config.ThreadAlgorithm {
	case msglist.AlgorithmJWZ, msglist.AlgorithmReferences:
	default:
		return fmt.Errorf("thread-algorithm: unknown value %q",
			config.ThreadAlgorithm)
	}
	if _, err := sort.GetSortCriteria(config.Sort); err != nil {
		return fmt.Errorf("sort: %w", err)
	}
	return nil
}

// ViewFor returns the view configuration of folder: the [view] section
// overridden by every matching contextual section, in file order.
func (config *Config) ViewFor(folder string) ViewConfig {
	view := config.View
	for _, context := range config.contexts {
		if !context.match(folder) {
			continue
		}
		if err := view.parse(context.section); err != nil {
			log.Warnf("%s: %v", context.name, err)
		}
	}
	return view
}

// Options converts the configuration into engine options.
func (view *ViewConfig) Options() msglist.Options {
	// validated when parsed
	criteria, _ := sort.GetSortCriteria(view.Sort)
	return msglist.Options{
		Threaded:        view.ThreadingEnabled,
		ThreadBySubject: view.ThreadBySubject,
		Algorithm:       view.ThreadAlgorithm,
		HideDeleted:     view.HideDeleted,
		Sort:            criteria,
		FastPathLimit:   view.FastPathLimit,
	}
}
