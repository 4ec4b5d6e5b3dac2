package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/heapscope"
	"github.com/wippyai/heapscope/wasmtarget"
)

// source is an opened target plus the address to start from.
type source struct {
	target  heapscope.Target
	session *wasmtarget.Session
	name    string
	root    heapscope.Address
}

func (s *source) Close(ctx context.Context) {
	if s.session != nil {
		_ = s.session.Close(ctx)
	}
}

func open(ctx context.Context, opts options) (*source, error) {
	var src *source
	if opts.demo {
		src = openDemo()
	} else {
		var err error
		if src, err = openWasm(ctx, opts.wasmFile, opts.setup); err != nil {
			return nil, err
		}
	}

	if opts.addr != "" {
		addr, err := parseAddr(opts.addr)
		if err != nil {
			src.Close(ctx)
			return nil, err
		}
		src.root = addr
	}
	if src.root == 0 {
		src.Close(ctx)
		return nil, fmt.Errorf("no address to inspect: use -addr or -setup")
	}
	return src, nil
}

func openWasm(ctx context.Context, path, setup string) (*source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	sess, err := wasmtarget.Load(ctx, data, &wasmtarget.Config{
		Stdout: os.Stderr,
		Stderr: os.Stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	src := &source{target: sess.Target(), session: sess, name: path}

	if setup != "" {
		res, err := sess.Call(ctx, setup)
		if err != nil {
			src.Close(ctx)
			return nil, err
		}
		if len(res) == 0 {
			src.Close(ctx)
			return nil, fmt.Errorf("setup export %s returned no address", setup)
		}
		src.root = heapscope.Address(api.DecodeU32(res[0]))
	}
	return src, nil
}

// parseAddr accepts 0x-prefixed hex or decimal.
func parseAddr(s string) (heapscope.Address, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	return heapscope.Address(v), nil
}
