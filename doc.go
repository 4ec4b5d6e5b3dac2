// Package heapscope decodes managed-runtime heap objects out of a stopped
// process into a browsable tree of strings, arrays, objects and primitive
// fields.
//
// The engine never talks to a debugger or process directly. It issues small
// queries through the Target interface defined here: classification
// predicates exported by the inspected runtime, field enumeration, string
// rendering into a runtime scratch buffer, and raw memory reads.
//
// # Architecture Overview
//
//	heapscope/           Root package with the Target and Memory contracts
//	├── inspect/         Classification, field enumeration and decoding
//	├── memtarget/       Synthetic in-memory heap implementing Target
//	├── wasmtarget/      Target over a wazero-instantiated WebAssembly guest
//	├── errors/          Structured error types
//	└── cmd/heapscope/   Tree dump and interactive browser
//
// # Quick Start
//
//	in := inspect.New(target)
//
//	v, err := in.Inspect(ctx, addr)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(v) // {name: "Alice", age: 42, tags: ["a", "b"]}
//
// # Snapshots
//
// Every node returned by the inspector is an immutable snapshot of the object
// at the time it was built. Refresh builds a new snapshot and leaves the old
// one untouched, so snapshots can be compared after the target has run.
//
// # Thread Safety
//
// A Target represents a single stopped process and is not safe for
// concurrent use. Decode requests must be issued from one goroutine while the
// process stays stopped.
package heapscope
