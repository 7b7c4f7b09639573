// Package cli implements the one-shot mdc subcommands that run the completion
// engine against a file on disk.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/strongdm/mdc/internal/autocomplete"
	"github.com/strongdm/mdc/internal/catalog"
	"github.com/strongdm/mdc/internal/configstore"
	"github.com/strongdm/mdc/internal/document"
	"github.com/strongdm/mdc/internal/schema"
	"github.com/strongdm/mdc/internal/session"
)

// ErrNoCatalog is returned by complete when neither the flag nor the config
// names a catalog.
var ErrNoCatalog = errors.New("no component catalog configured (use -catalog or set MDC_COMPONENT_METADATA_URL)")

// IO bundles the streams a command reads and writes.
type IO struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// StdIO returns the process streams.
func StdIO() IO {
	return IO{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

// Complete runs `mdc complete [flags] FILE LINE:COL`. LINE and COL are
// one-based.
func Complete(ctx context.Context, args []string, stdio IO) error {
	base, err := configstore.Load()
	if err != nil {
		return err
	}
	return runComplete(ctx, args, base, stdio)
}

// Fold runs `mdc fold FILE` and prints one-based `start-end name` lines.
func Fold(ctx context.Context, args []string, stdio IO) error {
	return runFold(ctx, args, stdio)
}

type completeOptions struct {
	catalogRef  string
	trigger     string
	interactive bool
	asJSON      bool
	noProps     bool
	path        string
	pos         autocomplete.Position
}

func parseCompleteArgs(args []string, base configstore.Config, stderr io.Writer) (*completeOptions, error) {
	fs := flag.NewFlagSet("mdc complete", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: mdc complete [flags] FILE LINE:COL")
		fs.PrintDefaults()
	}

	opts := &completeOptions{}
	fs.StringVar(&opts.catalogRef, "catalog", base.CatalogRef(), "Component catalog URL or local JSON/YAML file")
	fs.StringVar(&opts.trigger, "trigger", "", "Trigger character: \":\", \"space\", \"newline\" or empty for both providers")
	fs.BoolVar(&opts.interactive, "interactive", false, "Pick an item in a terminal UI and print its plain insert text")
	fs.BoolVar(&opts.interactive, "i", false, "Alias for --interactive")
	fs.BoolVar(&opts.asJSON, "json", false, "Print items as JSON")
	fs.BoolVar(&opts.noProps, "no-properties", !base.PropertyCompletion, "Disable property completion inside component front matter")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return nil, fmt.Errorf("expected FILE and LINE:COL, got %d arguments", fs.NArg())
	}
	opts.path = fs.Arg(0)
	pos, err := parseCursor(fs.Arg(1))
	if err != nil {
		return nil, err
	}
	opts.pos = pos
	trigger, err := parseTrigger(opts.trigger)
	if err != nil {
		return nil, err
	}
	opts.trigger = string(trigger)
	if strings.TrimSpace(opts.catalogRef) == "" {
		return nil, ErrNoCatalog
	}
	return opts, nil
}

func runComplete(ctx context.Context, args []string, base configstore.Config, stdio IO) error {
	opts, err := parseCompleteArgs(args, base, stdio.Err)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	cat, err := catalog.NewSource(opts.catalogRef, nil).Load(ctx)
	if err != nil {
		return err
	}
	sess, uri, err := openFile(cat, opts.path, session.Options{DisableProperties: opts.noProps})
	if err != nil {
		return err
	}
	items, err := sess.Complete(uri, opts.pos, autocomplete.Trigger(opts.trigger))
	if err != nil {
		return err
	}

	switch {
	case opts.interactive:
		if len(items) == 0 {
			return nil
		}
		if !canUseBubbleTea(stdio.In, stdio.Err) {
			return errors.New("interactive mode requires a terminal")
		}
		title := fmt.Sprintf("%s:%d:%d", filepath.Base(opts.path), opts.pos.Line+1, opts.pos.Character+1)
		item, err := pick(ctx, stdio.In, stdio.Err, title, items)
		if err != nil {
			if errors.Is(err, errPickerCancelled) {
				return nil
			}
			return err
		}
		_, err = fmt.Fprintln(stdio.Out, autocomplete.PlainText(item.InsertText))
		return err
	case opts.asJSON:
		if items == nil {
			items = []autocomplete.Item{}
		}
		enc := json.NewEncoder(stdio.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	default:
		printItems(stdio.Out, items, newTheme(supportsColor(stdio.Out)))
		return nil
	}
}

func printItems(w io.Writer, items []autocomplete.Item, th theme) {
	width := 0
	for _, item := range items {
		width = max(width, len(item.Label))
	}
	for _, item := range items {
		pad := strings.Repeat(" ", width-len(item.Label))
		fmt.Fprintf(w, "%s%s  %s\n", th.title.Render(item.Label), pad, th.kind.Render(itemSuffix(item)))
	}
}

func runFold(ctx context.Context, args []string, stdio IO) error {
	fs := flag.NewFlagSet("mdc fold", flag.ContinueOnError)
	fs.SetOutput(stdio.Err)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: mdc fold FILE")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("expected FILE, got %d arguments", fs.NArg())
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	sess, uri, err := openFile(nil, fs.Arg(0), session.Options{})
	if err != nil {
		return err
	}
	ranges, err := sess.Fold(uri)
	if err != nil {
		return err
	}
	for _, r := range ranges {
		if _, err := fmt.Fprintf(stdio.Out, "%d-%d %s\n", r.Start+1, r.End+1, r.Name); err != nil {
			return err
		}
	}
	return nil
}

// openFile reads path into a fresh session. Files without a markdown
// extension are tracked as language "mdc".
func openFile(cat schema.Catalog, path string, opts session.Options) (*session.Session, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", path, err)
	}
	sess := session.New(cat, opts)
	doc := document.Text{ID: path, Content: string(data), LanguageID: "mdc"}
	if !sess.Open(doc) {
		return nil, "", fmt.Errorf("open %s: not tracked", path)
	}
	return sess, path, nil
}

// parseCursor converts one-based LINE:COL to a zero-based position.
func parseCursor(raw string) (autocomplete.Position, error) {
	lineStr, colStr, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok {
		return autocomplete.Position{}, fmt.Errorf("invalid cursor %q: want LINE:COL", raw)
	}
	line, err := strconv.Atoi(lineStr)
	if err != nil || line < 1 {
		return autocomplete.Position{}, fmt.Errorf("invalid line in %q", raw)
	}
	col, err := strconv.Atoi(colStr)
	if err != nil || col < 1 {
		return autocomplete.Position{}, fmt.Errorf("invalid column in %q", raw)
	}
	return autocomplete.Position{Line: line - 1, Character: col - 1}, nil
}

func parseTrigger(raw string) (autocomplete.Trigger, error) {
	switch strings.ToLower(raw) {
	case "", "any":
		return autocomplete.TriggerAny, nil
	case ":", "colon":
		return autocomplete.TriggerColon, nil
	case " ", "space":
		return autocomplete.TriggerSpace, nil
	case "\n", "newline", "enter":
		return autocomplete.TriggerNewline, nil
	}
	return "", fmt.Errorf("unknown trigger %q", raw)
}
