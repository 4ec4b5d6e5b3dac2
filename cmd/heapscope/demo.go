package main

import (
	"github.com/wippyai/heapscope/memtarget"
)

// openDemo builds a small heap with every value kind, a cycle between two
// objects and a dangling reference.
func openDemo() *source {
	h := memtarget.New()

	alice := h.Object(
		memtarget.Ref("name", h.Text("Alice")),
		memtarget.Int("age", 42),
		memtarget.Bool("admin", true),
		memtarget.Char("initial", 'A'),
		memtarget.Short("floor", 3),
		memtarget.Long("balance", 1<<40),
		memtarget.Float("ratio", 0.25),
		memtarget.Double("score", 97.5),
		memtarget.Pointer("handle", 0xdeadbeef),
		memtarget.Ref("tags", h.Array(
			memtarget.Ref("", h.Text("admin")),
			memtarget.Ref("", h.Text("ops")),
		)),
		memtarget.Ref("scores", h.Array(
			memtarget.Int("", 90),
			memtarget.Int("", 85),
			memtarget.Int("", 77),
		)),
	)
	bob := h.Object(
		memtarget.Ref("name", h.Text("Bob")),
		memtarget.Int("age", 51),
		memtarget.Ref("report", alice),
	)
	h.AddField(alice, memtarget.Ref("manager", bob))
	h.AddField(alice, memtarget.Ref("previous", h.Garbage()))

	return &source{target: h, name: "demo heap", root: alice}
}
