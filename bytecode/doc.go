// Package bytecode decodes method-body code and legacy action streams into
// instruction sequences.
//
// Decoding is purely structural: it splits a byte slice into instructions
// with their immediate operands and resolves branch targets, without
// consulting constant pools. The interpreters do not use it on their hot
// path; it backs validation, disassembly and statistics.
//
// # Key Types
//
//   - [Instruction]: One decoded stack-machine instruction.
//   - [Code]: An immutable decoded method body with its exception handlers.
//   - [ActionRecord]: One legacy action tag with its payload.
//
// Code is immutable after construction and uses index-based access:
//
//	code, err := bytecode.NewCode(bytecode.CodeParams{Name: "main", Bytes: body})
//	if err != nil {
//	    return err
//	}
//	for i := 0; i < code.InstructionCount(); i++ {
//	    fmt.Println(code.InstructionAt(i))
//	}
//
// Branch offsets are relative to the start of the branching instruction.
package bytecode
