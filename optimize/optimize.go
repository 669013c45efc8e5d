// Package optimize rewrites the flat instruction list ir.Generate
// produces into one with fewer, cheaper instructions while preserving
// its observable behavior: the same PRINT output in the same order for
// every input.
//
// Three passes run, in this order, to a bounded fixpoint:
//  1. constant folding and propagation, scoped to a single basic block
//     and skipped entirely inside loops (header and body) so induction
//     variables are never folded away;
//  2. strength reduction (MUL by a power of two to LSHIFT, DIV by a
//     power of two to RSHIFT, the MUL/ADD identities), which is safe
//     everywhere including loop bodies because it never changes which
//     value a variable holds, only how cheaply it is computed;
//  3. dead code elimination over the whole instruction list, removing
//     any instruction whose destination temporary is never read and
//     that has no side effect.
package optimize

import "nanoc/ir"

const maxFixpointRounds = 8

// Run repeatedly applies fold+propagate, strength reduction, and DCE
// until a round leaves the instruction count unchanged, or
// maxFixpointRounds is reached, whichever comes first.
func Run(insts []ir.Instruction) []ir.Instruction {
	for i := 0; i < maxFixpointRounds; i++ {
		before := len(insts)
		insts = foldAndPropagate(insts)
		insts = strengthReduce(insts)
		insts = eliminateDeadCode(insts)
		if len(insts) == before {
			break
		}
	}
	return insts
}

// basicBlock is a maximal run of instructions with no LABEL in its
// interior and no jump except possibly as its last instruction.
type basicBlock struct {
	start, end int // [start, end) into the instruction slice
	isLoop     bool
}

// partitionBlocks splits insts into basic blocks. A block boundary
// starts at every LABEL and FUNC_BEGIN and right after every JMP/
// JMP_IF_FALSE/JMP_IF_TRUE/FUNC_END/CALL/RETURN. A block is marked
// isLoop when it starts anywhere from a LABEL up to a later jump back
// to that LABEL in the same function — a backward edge — so a loop's
// header and every block of its body are covered. Label names are
// matched per function, since the generator restarts them in each one.
func partitionBlocks(insts []ir.Instruction) []basicBlock {
	labelPos := map[ir.Operand]int{}
	var loopSpans [][2]int
	for i, inst := range insts {
		switch inst.Op {
		case ir.OpFuncBegin:
			labelPos = map[ir.Operand]int{}
		case ir.OpLabel:
			labelPos[inst.Src1] = i
		}
		isJump := inst.Op == ir.OpJmp || inst.Op == ir.OpJmpIfFalse || inst.Op == ir.OpJmpIfTrue
		if !isJump {
			continue
		}
		target := inst.Src1
		if inst.Op != ir.OpJmp {
			target = inst.Src2
		}
		if pos, ok := labelPos[target]; ok {
			loopSpans = append(loopSpans, [2]int{pos, i})
		}
	}

	var blocks []basicBlock
	start := 0
	for i := 0; i <= len(insts); i++ {
		atBoundary := i == len(insts)
		if !atBoundary && i > start {
			switch insts[i].Op {
			case ir.OpLabel, ir.OpFuncBegin:
				atBoundary = true
			}
		}
		if !atBoundary && i > start {
			switch insts[i-1].Op {
			case ir.OpJmp, ir.OpJmpIfFalse, ir.OpJmpIfTrue, ir.OpFuncEnd, ir.OpReturn, ir.OpCall:
				atBoundary = true
			}
		}
		if atBoundary && i > start {
			isLoop := false
			for _, s := range loopSpans {
				if s[0] <= start && start <= s[1] {
					isLoop = true
				}
			}
			blocks = append(blocks, basicBlock{start: start, end: i, isLoop: isLoop})
			start = i
		}
	}
	return blocks
}

func foldAndPropagate(insts []ir.Instruction) []ir.Instruction {
	out := make([]ir.Instruction, len(insts))
	copy(out, insts)
	for _, b := range partitionBlocks(out) {
		if b.isLoop {
			continue
		}
		known := map[ir.Operand]int64{}
		for i := b.start; i < b.end; i++ {
			out[i] = propagateOperands(out[i], known)
			foldConstant(&out[i], known)
		}
	}
	return out
}

// propagateOperands replaces any Src operand that refers to a name or
// temp whose constant value is currently known with a literal constant
// operand. Dst is never rewritten: it is a storage location, not a
// value to substitute.
func propagateOperands(inst ir.Instruction, known map[ir.Operand]int64) ir.Instruction {
	inst.Src1 = substitute(inst.Src1, known)
	inst.Src2 = substitute(inst.Src2, known)
	inst.Src3 = substitute(inst.Src3, known)
	return inst
}

func substitute(op ir.Operand, known map[ir.Operand]int64) ir.Operand {
	if op.Kind != ir.OperandTemp && op.Kind != ir.OperandName {
		return op
	}
	if v, ok := known[op]; ok {
		return ir.Const(v)
	}
	return op
}

var arithmeticFold = map[ir.Opcode]func(a, b int64) int64{
	ir.OpAdd: func(a, b int64) int64 { return a + b },
	ir.OpSub: func(a, b int64) int64 { return a - b },
	ir.OpMul: func(a, b int64) int64 { return a * b },
	ir.OpDiv: func(a, b int64) int64 {
		if b == 0 {
			return 0
		}
		return a / b
	},
	ir.OpMod: func(a, b int64) int64 {
		if b == 0 {
			return 0
		}
		return a % b
	},
}

var comparisonFold = map[ir.Opcode]func(a, b int64) bool{
	ir.OpLt:  func(a, b int64) bool { return a < b },
	ir.OpGt:  func(a, b int64) bool { return a > b },
	ir.OpLe:  func(a, b int64) bool { return a <= b },
	ir.OpGe:  func(a, b int64) bool { return a >= b },
	ir.OpEq:  func(a, b int64) bool { return a == b },
	ir.OpNeq: func(a, b int64) bool { return a != b },
}

// foldConstant evaluates inst in place when every operand it reads is
// now a literal constant, rewriting it to a MOV of the computed value
// and recording the result in known (constant propagation). Any write
// whose value cannot be computed invalidates the destination's entry
// instead, so a stale constant is never propagated past a
// non-constant redefinition.
func foldConstant(inst *ir.Instruction, known map[ir.Operand]int64) {
	switch inst.Op {
	case ir.OpMov:
		if inst.Src1.Kind == ir.OperandConst {
			known[inst.Dst] = inst.Src1.Const
		} else {
			delete(known, inst.Dst)
		}
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod:
		if inst.Src1.Kind == ir.OperandConst && inst.Src2.Kind == ir.OperandConst {
			v := arithmeticFold[inst.Op](inst.Src1.Const, inst.Src2.Const)
			*inst = ir.Instruction{Op: ir.OpMov, Dst: inst.Dst, Src1: ir.Const(v)}
			known[inst.Dst] = v
		} else {
			delete(known, inst.Dst)
		}
	case ir.OpLt, ir.OpGt, ir.OpLe, ir.OpGe, ir.OpEq, ir.OpNeq:
		if inst.Src1.Kind == ir.OperandConst && inst.Src2.Kind == ir.OperandConst {
			v := int64(0)
			if comparisonFold[inst.Op](inst.Src1.Const, inst.Src2.Const) {
				v = 1
			}
			*inst = ir.Instruction{Op: ir.OpMov, Dst: inst.Dst, Src1: ir.Const(v)}
			known[inst.Dst] = v
		} else {
			delete(known, inst.Dst)
		}
	case ir.OpNeg:
		if inst.Src1.Kind == ir.OperandConst {
			v := -inst.Src1.Const
			*inst = ir.Instruction{Op: ir.OpMov, Dst: inst.Dst, Src1: ir.Const(v)}
			known[inst.Dst] = v
		} else {
			delete(known, inst.Dst)
		}
	case ir.OpNot:
		if inst.Src1.Kind == ir.OperandConst {
			v := int64(0)
			if inst.Src1.Const == 0 {
				v = 1
			}
			*inst = ir.Instruction{Op: ir.OpMov, Dst: inst.Dst, Src1: ir.Const(v)}
			known[inst.Dst] = v
		} else {
			delete(known, inst.Dst)
		}
	case ir.OpLshift, ir.OpRshift, ir.OpALoad, ir.OpReadInt, ir.OpCall:
		delete(known, inst.Dst)
	case ir.OpAStore, ir.OpPrint, ir.OpParam, ir.OpReturn:
		// no destination; nothing to invalidate or record
	}
}

// maxShift bounds the power-of-two exponents strength reduction will
// rewrite into shifts; larger multipliers stay as MUL/DIV.
const maxShift = 30

// isPowerOfTwo reports whether n is a power of two in [2, 2^maxShift],
// and its base-2 logarithm.
func isPowerOfTwo(n int64) (int64, bool) {
	if n <= 1 {
		return 0, false
	}
	shift := int64(0)
	for v := n; v > 1; v >>= 1 {
		if v&1 != 0 {
			return 0, false
		}
		shift++
	}
	if shift > maxShift {
		return 0, false
	}
	return shift, true
}

// strengthReduce rewrites multiplications and divisions by a power of
// two into shifts, and eliminates the MUL/ADD identities (x*1, x*0,
// x+0). It runs over every instruction regardless of which block it is
// in — unlike folding, it never changes which value an instruction
// computes, so it is safe inside loop bodies too.
func strengthReduce(insts []ir.Instruction) []ir.Instruction {
	out := make([]ir.Instruction, len(insts))
	for i, inst := range insts {
		out[i] = inst
		switch inst.Op {
		case ir.OpMul:
			if inst.Src2.Kind == ir.OperandConst {
				switch inst.Src2.Const {
				case 0:
					out[i] = ir.Instruction{Op: ir.OpMov, Dst: inst.Dst, Src1: ir.Const(0)}
					continue
				case 1:
					out[i] = ir.Instruction{Op: ir.OpMov, Dst: inst.Dst, Src1: inst.Src1}
					continue
				}
				if shift, ok := isPowerOfTwo(inst.Src2.Const); ok {
					out[i] = ir.Instruction{Op: ir.OpLshift, Dst: inst.Dst, Src1: inst.Src1, Src2: ir.Const(shift)}
				}
			}
		case ir.OpDiv:
			if inst.Src2.Kind == ir.OperandConst && inst.Src2.Const == 1 {
				out[i] = ir.Instruction{Op: ir.OpMov, Dst: inst.Dst, Src1: inst.Src1}
				continue
			}
			if inst.Src2.Kind == ir.OperandConst {
				if shift, ok := isPowerOfTwo(inst.Src2.Const); ok {
					out[i] = ir.Instruction{Op: ir.OpRshift, Dst: inst.Dst, Src1: inst.Src1, Src2: ir.Const(shift)}
				}
			}
		case ir.OpAdd:
			if inst.Src2.Kind == ir.OperandConst && inst.Src2.Const == 0 {
				out[i] = ir.Instruction{Op: ir.OpMov, Dst: inst.Dst, Src1: inst.Src1}
			} else if inst.Src1.Kind == ir.OperandConst && inst.Src1.Const == 0 {
				out[i] = ir.Instruction{Op: ir.OpMov, Dst: inst.Dst, Src1: inst.Src2}
			}
		}
	}
	return out
}

// sideEffecting opcodes are never removed by DCE even when their Dst
// (if any) is unused, because running them is observable independent
// of any value they produce.
var sideEffecting = map[ir.Opcode]bool{
	ir.OpFuncBegin: true, ir.OpFuncEnd: true,
	ir.OpLabel: true, ir.OpJmp: true, ir.OpJmpIfFalse: true, ir.OpJmpIfTrue: true,
	ir.OpParam: true, ir.OpCall: true, ir.OpReturn: true,
	ir.OpPrint: true, ir.OpReadInt: true,
	ir.OpAlloca: true, ir.OpArrayAlloca: true,
	ir.OpAStore: true, ir.OpALoad: true,
}

// eliminateDeadCode removes pure instructions (MOV and the arithmetic/
// comparison/unary ops) whose Dst is a temporary never read anywhere in
// the instruction list. Writes to a named variable are never candidates
// for removal, even when the value looks unused from the use-chain alone —
// only the generator's own temporaries are fair game. Reads are collected
// over the whole list rather than per block or per function: a value
// computed in one block and consumed three blocks later still counts as
// used, and so does a temporary whose number is read in another function
// (temporaries are numbered afresh in each function).
func eliminateDeadCode(insts []ir.Instruction) []ir.Instruction {
	used := map[ir.Operand]bool{}
	for _, inst := range insts {
		markUsed(inst.Src1, used)
		markUsed(inst.Src2, used)
		markUsed(inst.Src3, used)
	}

	out := make([]ir.Instruction, 0, len(insts))
	for _, inst := range insts {
		if sideEffecting[inst.Op] {
			out = append(out, inst)
			continue
		}
		if inst.Dst.Kind != ir.OperandTemp || used[inst.Dst] {
			out = append(out, inst)
		}
	}
	return out
}

func markUsed(op ir.Operand, used map[ir.Operand]bool) {
	if op.Kind == ir.OperandTemp || op.Kind == ir.OperandName {
		used[op] = true
	}
}
