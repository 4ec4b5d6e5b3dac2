// Package inspect decodes managed-runtime heap objects through a
// heapscope.Target.
//
// Inspecting an address runs three steps. The self-reference check rejects
// anything that is not an object header; such addresses decode to the null
// marker and are never an error. Classification then asks the runtime
// whether the object is a string, then whether it is an array, and treats
// everything else as an object. Finally the Factory builds the matching node:
//
//   - StringNode renders the text through the runtime's scratch buffer.
//   - ArrayNode decodes every element up front and fails as a whole if any
//     element is unreadable.
//   - ObjectNode decodes named fields, drops fields whose names cannot be
//     read and keeps unreadable values as error markers.
//
// Primitive fields are decoded little-endian according to their
// heapscope.TypeTag. Object references recurse through the same pipeline up
// to Config.MaxDepth and are expanded lazily beyond it.
//
// Nodes are snapshots. Refresh returns a new node built from fresh queries;
// the old node keeps its values.
package inspect
