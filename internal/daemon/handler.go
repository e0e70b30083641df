package daemon

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/leonardotrapani/holdtype/internal/bus"
	"github.com/leonardotrapani/holdtype/internal/hotkey"
	"github.com/leonardotrapani/holdtype/internal/storage"
	"github.com/leonardotrapani/holdtype/internal/style"
)

const defaultHistoryLimit = 20

// Handle answers one control socket request.
func (d *Daemon) Handle(ctx context.Context, req bus.Request) bus.Response {
	switch req.Verb {
	case bus.VerbStatus:
		return bus.JSON(d.status())
	case bus.VerbPress:
		d.orchestrator.HotkeyPressed()
		return bus.OK("pressed")
	case bus.VerbRelease:
		d.orchestrator.HotkeyReleased()
		return bus.OK("released")
	case bus.VerbVersion:
		return bus.OK("version=" + Version + " proto=" + bus.ProtoVer)
	case bus.VerbQuit:
		d.Quit()
		return bus.OK("quitting")
	case bus.VerbDictAdd, bus.VerbDictList, bus.VerbDictRemove, bus.VerbDictImport:
		return d.handleDictionary(ctx, req)
	case bus.VerbSnipAdd, bus.VerbSnipList, bus.VerbSnipRemove:
		return d.handleSnippets(ctx, req)
	case bus.VerbHistory:
		return d.handleHistory(ctx, req)
	case bus.VerbStyle:
		return d.handleStyle(ctx, req)
	case bus.VerbHotkey:
		return d.handleHotkey(ctx, req)
	default:
		return bus.Errorf("unknown command %q", req.Verb)
	}
}

func (d *Daemon) status() bus.Status {
	s := d.orchestrator.Status()
	snap := d.tracker.Snapshot()
	return bus.Status{
		State:           s.State.String(),
		Preview:         s.Preview,
		ModelLoaded:     s.ModelLoaded,
		User:            s.User,
		Hotkey:          d.detector.Configuration().String(),
		HotkeyAvailable: d.detector.Available(),
		Notice:          snap.Notice,
		Version:         Version,
		Proto:           bus.ProtoVer,
	}
}

func (d *Daemon) handleDictionary(ctx context.Context, req bus.Request) bus.Response {
	user := d.user()
	switch req.Verb {
	case bus.VerbDictAdd:
		word := strings.TrimSpace(strings.Join(req.Args, " "))
		if word == "" {
			return bus.Errorf("usage: dict-add <word>")
		}
		entry, err := d.store.AddDictionaryEntry(ctx, user, word)
		if err != nil {
			return bus.Errorf("add word: %v", err)
		}
		return bus.JSON(entry)

	case bus.VerbDictList:
		entries, err := d.store.GetDictionaryEntries(ctx, user)
		if err != nil {
			return bus.Errorf("list dictionary: %v", err)
		}
		return bus.JSON(nonNil(entries))

	case bus.VerbDictRemove:
		target := req.Arg(0)
		entries, err := d.store.GetDictionaryEntries(ctx, user)
		if err != nil {
			return bus.Errorf("list dictionary: %v", err)
		}
		for _, e := range entries {
			if e.ID == target || strings.EqualFold(e.Word, target) {
				if err := d.store.DeleteDictionaryEntry(ctx, user, e.ID); err != nil {
					return bus.Errorf("remove word: %v", err)
				}
				return bus.JSON(e)
			}
		}
		return bus.Errorf("no dictionary entry %q", target)

	default: // dict-import
		if len(req.Args) != 1 {
			return bus.Errorf("usage: dict-import <file.yaml>")
		}
		f, err := os.Open(req.Args[0])
		if err != nil {
			return bus.Errorf("open import file: %v", err)
		}
		defer f.Close()
		res, err := storage.ImportYAML(ctx, d.store, user, f)
		if err != nil {
			return bus.Errorf("%v", err)
		}
		return bus.JSON(res)
	}
}

func (d *Daemon) handleSnippets(ctx context.Context, req bus.Request) bus.Response {
	user := d.user()
	switch req.Verb {
	case bus.VerbSnipAdd:
		if len(req.Args) != 2 || strings.TrimSpace(req.Args[0]) == "" {
			return bus.Errorf("usage: snip-add <shortcut> <replacement>")
		}
		entry, err := d.store.AddSnippet(ctx, user, strings.TrimSpace(req.Args[0]), req.Args[1])
		if err != nil {
			return bus.Errorf("add snippet: %v", err)
		}
		return bus.JSON(entry)

	case bus.VerbSnipList:
		entries, err := d.store.GetSnippets(ctx, user)
		if err != nil {
			return bus.Errorf("list snippets: %v", err)
		}
		return bus.JSON(nonNil(entries))

	default: // snip-rm
		target := req.Arg(0)
		entries, err := d.store.GetSnippets(ctx, user)
		if err != nil {
			return bus.Errorf("list snippets: %v", err)
		}
		for _, e := range entries {
			if e.ID == target || strings.EqualFold(e.Shortcut, target) {
				if err := d.store.DeleteSnippet(ctx, user, e.ID); err != nil {
					return bus.Errorf("remove snippet: %v", err)
				}
				return bus.JSON(e)
			}
		}
		return bus.Errorf("no snippet %q", target)
	}
}

func (d *Daemon) handleHistory(ctx context.Context, req bus.Request) bus.Response {
	limit := defaultHistoryLimit
	if arg := req.Arg(0); arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil {
			return bus.Errorf("invalid limit %q", arg)
		}
		limit = n
	}
	rows, err := d.store.ListSpeech(ctx, d.user(), limit)
	if err != nil {
		return bus.Errorf("list history: %v", err)
	}
	return bus.JSON(nonNil(rows))
}

// handleStyle reports the effective style or saves a new preference.
func (d *Daemon) handleStyle(ctx context.Context, req bus.Request) bus.Response {
	user := d.user()
	if len(req.Args) == 0 {
		pref, err := d.store.GetUserStylePreference(ctx, user)
		if err != nil || pref == "" {
			pref = d.configMgr.GetConfig().General.Style
		}
		return bus.OK(pref)
	}

	s := style.Style(strings.ToLower(strings.TrimSpace(req.Args[0])))
	if !s.Valid() {
		return bus.Errorf("unknown style %q (formal, casual or very_casual)", req.Args[0])
	}
	if err := d.store.SetUserStylePreference(ctx, user, string(s)); err != nil {
		return bus.Errorf("save style: %v", err)
	}
	return bus.OK(string(s))
}

// handleHotkey reports the combination or saves and applies a new one.
func (d *Daemon) handleHotkey(ctx context.Context, req bus.Request) bus.Response {
	if len(req.Args) == 0 {
		return bus.OK(d.detector.Configuration().String())
	}
	combo, err := hotkey.ParseCombo(strings.Join(req.Args, "+"))
	if err != nil {
		return bus.Errorf("%v", err)
	}
	if err := d.store.SetUserHotkeyPreference(ctx, d.user(), preferenceFromHotkey(combo)); err != nil {
		return bus.Errorf("save hotkey: %v", err)
	}
	if err := d.detector.Reconfigure(combo); err != nil {
		return bus.Errorf("%v", err)
	}
	return bus.OK(combo.String())
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
