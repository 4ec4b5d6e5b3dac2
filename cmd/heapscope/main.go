package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/heapscope/inspect"
	"github.com/wippyai/heapscope/wasmtarget"
)

func main() {
	var (
		wasmFile    = flag.String("wasm", "", "Path to guest wasm module")
		setup       = flag.String("setup", "", "Guest export returning the address to inspect")
		addr        = flag.String("addr", "", "Address to inspect (0x-prefixed hex or decimal)")
		demo        = flag.Bool("demo", false, "Inspect a built-in synthetic heap")
		depth       = flag.Int("depth", inspect.DefaultMaxDepth, "Nesting depth decoded eagerly and printed (at least 1)")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		verbose     = flag.Bool("v", false, "Verbose logging to stderr")
	)
	flag.Parse()

	if *wasmFile == "" && !*demo {
		fmt.Fprintln(os.Stderr, "Usage: heapscope -wasm <file.wasm> (-setup export | -addr 0x...) [-depth n]")
		fmt.Fprintln(os.Stderr, "       heapscope -demo [-addr 0x...]")
		fmt.Fprintln(os.Stderr, "       heapscope ... -i  (interactive mode)")
		os.Exit(1)
	}

	if *verbose {
		log, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = log.Sync() }()
		inspect.SetLogger(log.Named("inspect"))
		wasmtarget.SetLogger(log.Named("wasmtarget"))
	}

	opts := options{
		wasmFile: *wasmFile,
		setup:    *setup,
		addr:     *addr,
		demo:     *demo,
		depth:    *depth,
	}

	err := opts.validate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *interactive {
		err = runInteractive(opts)
	} else {
		err = run(opts)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	wasmFile string
	setup    string
	addr     string
	demo     bool
	depth    int
}

// validate rejects a depth below 1. The same depth drives both eager decoding
// and printing, and 0 would mean the inspector default for one but nothing
// for the other.
func (o options) validate() error {
	if o.depth < 1 {
		return fmt.Errorf("-depth must be at least 1, got %d", o.depth)
	}
	return nil
}

func run(opts options) error {
	ctx := context.Background()

	src, err := open(ctx, opts)
	if err != nil {
		return err
	}
	defer src.Close(ctx)

	in := inspect.NewWithConfig(src.target, &inspect.Config{MaxDepth: opts.depth})
	v, err := in.Inspect(ctx, src.root)
	if err != nil {
		return fmt.Errorf("inspect %s: %w", src.root, err)
	}

	if term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Println(titleStyle.Render("heapscope") + " " + src.name)
	}
	return inspect.Dump(ctx, os.Stdout, v, opts.depth)
}
