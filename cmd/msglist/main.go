package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"git.sr.ht/~sircmpwn/getopt"

	"git.sr.ht/~rjarry/msglist/config"
	"git.sr.ht/~rjarry/msglist/lib/hide"
	"git.sr.ht/~rjarry/msglist/lib/log"
	"git.sr.ht/~rjarry/msglist/lib/msglist"
	"git.sr.ht/~rjarry/msglist/lib/regen"
	"git.sr.ht/~rjarry/msglist/lib/settings"
	"git.sr.ht/~rjarry/msglist/lib/xdg"
	"git.sr.ht/~rjarry/msglist/models"
	mboxer "git.sr.ht/~rjarry/msglist/worker/mbox"
	"git.sr.ht/~rjarry/msglist/worker/maildir"
	"git.sr.ht/~rjarry/msglist/worker/types"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [-hfdtT] [-c <config>] [-s <search>] "+
		"[-H <hide>] [-r <lower>:<upper>] <maildir|mbox:file>\n", os.Args[0])
	fmt.Fprint(os.Stderr, `
Print the message list of a maildir folder or an mbox file.

Options:

  -h             Show this help message and exit.
  -c <config>    Configuration file, default msglist.conf in the config dir.
  -t             Thread messages.
  -T             Do not thread messages.
  -d             Hide deleted messages.
  -s <search>    Only list messages matching the search expression.
  -H <hide>      Hide messages matching the expression.
  -r <lo>:<hi>   Only list messages in this index window.
  -f             Keep running and print changes.

When the path is a maildir containing other maildirs, the folders are
listed instead.
`)
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

type closingStore interface {
	types.Store
	Close()
}

func openStore(path string) (closingStore, error) {
	if file, ok := strings.CutPrefix(path, "mbox:"); ok {
		file = xdg.ExpandHome(file)
		return mboxer.Open(filepath.Base(file), file)
	}
	path = xdg.ExpandHome(path)
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return mboxer.Open(filepath.Base(path), path)
	}
	return maildir.NewStore(filepath.Base(path), path)
}

func listFolders(path string) (bool, error) {
	path = xdg.ExpandHome(path)
	if _, err := os.Stat(filepath.Join(path, "cur")); err == nil {
		return false, nil
	}
	c, err := maildir.NewContainer(path)
	if err != nil {
		return false, err
	}
	folders, err := c.ListFolders()
	if err != nil {
		return false, err
	}
	for _, f := range folders {
		fmt.Println(f)
	}
	return true, nil
}

func parseWindow(arg string) (int, int, error) {
	lo, hi, found := strings.Cut(arg, ":")
	if !found {
		return 0, 0, fmt.Errorf("%q: expected <lower>:<upper>", arg)
	}
	lower, upper := hide.Start, hide.End
	if lo != "" {
		if _, err := fmt.Sscanf(lo, "%d", &lower); err != nil {
			return 0, 0, fmt.Errorf("%q: %w", lo, err)
		}
	}
	if hi != "" {
		if _, err := fmt.Sscanf(hi, "%d", &upper); err != nil {
			return 0, 0, fmt.Errorf("%q: %w", hi, err)
		}
	}
	return lower, upper, nil
}

// printer prints the list and, when following, the changes.
type printer struct {
	out    io.Writer
	follow bool
	engine *msglist.Engine
}

func (p *printer) OnMutation(mutations msglist.MutationLog) {
	log.Debugf("%s", mutations)
	if !p.follow {
		return
	}
	for _, m := range mutations {
		fmt.Fprintf(p.out, "# %s\n", m)
	}
}

func (p *printer) OnRegenComplete() {
	if p.follow {
		p.print()
	}
}

func (p *printer) OnCursorLost() {}

func (p *printer) OnError(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
}

func flagString(f models.Flags) string {
	var flags [3]byte
	flags[0], flags[1], flags[2] = ' ', ' ', ' '
	if !f.Has(models.SeenFlag) {
		flags[0] = 'N'
	}
	if f.Has(models.DeletedFlag) {
		flags[1] = 'D'
	} else if f.Has(models.AnsweredFlag) {
		flags[1] = 'r'
	}
	if f.Has(models.FlaggedFlag) {
		flags[2] = '!'
	} else if f.Has(models.AttachmentFlag) {
		flags[2] = 'a'
	}
	return string(flags[:])
}

func (p *printer) print() {
	view := p.engine.View()
	_ = view.Walk(func(id msglist.NodeID, level int) error {
		r := view.Record(id)
		date := time.Unix(r.DateSent, 0).Format("2006-01-02 15:04")
		fmt.Fprintf(p.out, "%s %s %-20.20s %s%s\n", flagString(r.Flags),
			date, r.From, strings.Repeat("  ", level), r.Subject)
		return nil
	})
}

func main() {
	defer log.PanicHandler()

	opts, optind, err := getopt.Getopts(os.Args, "hc:tTds:H:r:f")
	if err != nil {
		usage()
		die("%s", err)
	}
	var configPath, search, hideExpr, window string
	var threaded, unthreaded, hideDeleted, follow bool
	for _, opt := range opts {
		switch opt.Option {
		case 'h':
			usage()
			return
		case 'c':
			configPath = opt.Value
		case 't':
			threaded = true
		case 'T':
			unthreaded = true
		case 'd':
			hideDeleted = true
		case 's':
			search = opt.Value
		case 'H':
			hideExpr = opt.Value
		case 'r':
			window = opt.Value
		case 'f':
			follow = true
		}
	}
	args := os.Args[optind:]
	if len(args) != 1 {
		usage()
		os.Exit(1)
	}
	path := args[0]

	conf, err := config.LoadFile(configPath)
	if err != nil {
		die("failed to load config: %s", err)
	}
	logFile, err := conf.General.SetupLogging()
	if err != nil {
		die("%s", err)
	}
	defer logFile.Close()

	if !strings.HasPrefix(path, "mbox:") {
		if listed, err := listFolders(path); err != nil {
			die("%s", err)
		} else if listed {
			return
		}
	}

	store, err := openStore(path)
	if err != nil {
		die("%s: %s", path, err)
	}
	defer store.Close()

	view := conf.ViewFor(store.Name())
	options := view.Options()
	switch {
	case threaded:
		options.Threaded = true
	case unthreaded:
		options.Threaded = false
	}
	if hideDeleted {
		options.HideDeleted = true
	}

	db := settings.Open(conf.General.SettingsDir)
	defer db.Close()

	p := &printer{out: os.Stdout, follow: follow}
	engine := msglist.NewEngine(options, p, db)
	p.engine = engine
	defer engine.Close()

	engine.SetFolder(store)
	if search != "" {
		engine.SetSearch(search)
	}
	if hideExpr != "" || window != "" {
		lower, upper := hide.Same, hide.Same
		if window != "" {
			lower, upper, err = parseWindow(window)
			if err != nil {
				die("%s", err)
			}
		}
		engine.HideAdd(hideExpr, lower, upper)
	}

	if follow {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()
		log.Infof("following %s", store.Name())
		if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			die("%s", err)
		}
		return
	}

	for res := range engine.Results() {
		err := engine.Process(res)
		if errors.Is(err, regen.ErrStaleResult) {
			continue
		} else if err != nil {
			os.Exit(1)
		}
		break
	}
	p.print()
}
