// Package encodings defines the closed set of tensor layout encodings the
// layout builders understand, plus the CTALayout descriptor that tells how a
// tensor is replicated and split across the blocks (CTAs) of a cooperative
// grid (CGA).
//
// Encodings are plain descriptors: they carry the hardware-specific numeric
// parameters of a layout (swizzle vec/perPhase/maxPhase, MMA tile dims,
// warps per CTA, ...) but no behavior; package convert turns an encoding
// plus a tensor shape into a concrete linear.LinearLayout. Encoding values
// are owned by the surrounding type system, passed by pointer, and never
// mutated by this module; the layout cache identifies them by pointer.
//
// The set is sealed: the Encoding interface has an unexported marker method,
// so dispatching code can match exhaustively over the variants here and
// treat any other type as a compiler defect.
package encodings

import (
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/layouts/linear"
)

//go:generate go tool enumer -type=Kind -trimprefix=Kind -output=gen_kind_enumer.go encodings.go

// Kind identifies one encoding variant.
type Kind int

const (
	KindInvalid Kind = iota
	KindBlocked
	KindSwizzledShared
	KindNVMMAShared
	KindAMDRotatingShared
	KindAMDMfma
	KindAMDWmma
	KindNvidiaMma
	KindDotOperand
)

// CTALayout describes how a tensor is distributed over the blocks of one
// CGA: per dimension, how many blocks there are (CTAsPerCGA), how many of
// them hold distinct data (CTASplitNum, the rest replicate), and the
// priority used to linearize a block index (CTAOrder, most minor first).
//
// Invariant: CTAsPerCGA[d] % CTASplitNum[d] == 0 for every dimension d.
type CTALayout struct {
	CTAsPerCGA  []int
	CTASplitNum []int
	CTAOrder    []int
}

// TrivialCTALayout returns the single-block layout of the given rank: one
// CTA, no split, default (row-major) order.
func TrivialCTALayout(rank int) CTALayout {
	cta := CTALayout{
		CTAsPerCGA:  make([]int, rank),
		CTASplitNum: make([]int, rank),
		CTAOrder:    make([]int, rank),
	}
	for d := range rank {
		cta.CTAsPerCGA[d] = 1
		cta.CTASplitNum[d] = 1
		cta.CTAOrder[d] = rank - 1 - d
	}
	return cta
}

// Rank returns the tensor rank the descriptor applies to.
func (c CTALayout) Rank() int { return len(c.CTAOrder) }

// Validate panics (fatally) if the descriptor is malformed.
func (c CTALayout) Validate() {
	rank := c.Rank()
	if len(c.CTAsPerCGA) != rank || len(c.CTASplitNum) != rank {
		exceptions.Panicf("CTALayout: CTAsPerCGA=%v, CTASplitNum=%v and CTAOrder=%v must have the same length",
			c.CTAsPerCGA, c.CTASplitNum, c.CTAOrder)
	}
	seen := make([]bool, rank)
	for _, d := range c.CTAOrder {
		if d < 0 || d >= rank || seen[d] {
			exceptions.Panicf("CTALayout: CTAOrder %v is not a permutation of 0..%d", c.CTAOrder, rank-1)
		}
		seen[d] = true
	}
	for d := range rank {
		if c.CTASplitNum[d] <= 0 || c.CTAsPerCGA[d]%c.CTASplitNum[d] != 0 {
			exceptions.Panicf("CTALayout: CTAsPerCGA[%d]=%d is not a multiple of CTASplitNum[%d]=%d",
				d, c.CTAsPerCGA[d], d, c.CTASplitNum[d])
		}
	}
}

// ShapePerCTA returns the part of shape owned by one block: shape[d]
// divided by the split count, at least 1.
func (c CTALayout) ShapePerCTA(shape []int) []int {
	perCTA := slices.Clone(shape)
	for d := range perCTA {
		perCTA[d] = max(1, shape[d]/c.CTASplitNum[d])
	}
	return perCTA
}

// Encoding is the closed variant set of layout encodings. Implementations
// are the pointer types *Blocked, *SwizzledShared, *NVMMAShared,
// *AMDRotatingShared, *AMDMfma, *AMDWmma, *NvidiaMma and *DotOperand, and
// nothing else.
type Encoding interface {
	// Kind identifies the variant.
	Kind() Kind
	// Rank returns the tensor rank the encoding applies to.
	Rank() int
	// CTA returns the block replication/split descriptor.
	CTA() CTALayout

	sealed()
}

// IsShared returns whether the encoding describes a shared-memory buffer
// (input dimension "offset") rather than a register distribution (input
// dimensions "register", "lane", "warp").
func IsShared(enc Encoding) bool {
	switch enc.Kind() {
	case KindSwizzledShared, KindNVMMAShared, KindAMDRotatingShared:
		return true
	default:
		return false
	}
}

// Blocked is the generic elementwise distribution: each thread owns
// SizePerThread contiguous elements per dimension, threads tile a warp,
// warps tile a block, all following Order (most minor dimension first).
type Blocked struct {
	SizePerThread  []int
	ThreadsPerWarp []int
	WarpsPerCTA    []int
	Order          []int
	CTALayout      CTALayout
}

func (b *Blocked) Kind() Kind     { return KindBlocked }
func (b *Blocked) Rank() int      { return len(b.Order) }
func (b *Blocked) CTA() CTALayout { return b.CTALayout }
func (b *Blocked) sealed()        {}

// RepOrder returns the order in which the distribution repeats over the
// tensor, which for a blocked encoding is its own Order.
func (b *Blocked) RepOrder() []int { return slices.Clone(b.Order) }

// SwizzledShared is the generic swizzled shared-memory buffer: element
// (row, col) of the two most minor dimensions (per Order) is stored with
// the column cyclically rotated by Vec * ((row / PerPhase) % MaxPhase), so
// rows accessed together land in different banks.
type SwizzledShared struct {
	Vec       int
	PerPhase  int
	MaxPhase  int
	Order     []int
	CTALayout CTALayout
}

func (s *SwizzledShared) Kind() Kind     { return KindSwizzledShared }
func (s *SwizzledShared) Rank() int      { return len(s.Order) }
func (s *SwizzledShared) CTA() CTALayout { return s.CTALayout }
func (s *SwizzledShared) sealed()        {}

// AMDRotatingShared is the AMD variant of SwizzledShared where the phase is
// additionally XOR-ed with a coarser block index (row / MaxPhase /
// PerPhase), producing the bank-rotation schedule that hardware's access
// granularity wants.
type AMDRotatingShared struct {
	Vec       int
	PerPhase  int
	MaxPhase  int
	Order     []int
	CTALayout CTALayout
}

func (s *AMDRotatingShared) Kind() Kind     { return KindAMDRotatingShared }
func (s *AMDRotatingShared) Rank() int      { return len(s.Order) }
func (s *AMDRotatingShared) CTA() CTALayout { return s.CTALayout }
func (s *AMDRotatingShared) sealed()        {}

// NVMMAShared is the core-matrix shared-memory buffer consumed by NVIDIA's
// MMA and TMA units: a fixed 8 x (8*SwizzlingByteWidth/ElementBitWidth)
// tile with its own swizzle, replicated over the buffer.
// SwizzlingByteWidth is one of 0 (no swizzle), 32, 64 or 128. Fp4Padded
// remaps every 16 logical offsets to 8 real plus 8 padding positions.
type NVMMAShared struct {
	SwizzlingByteWidth int
	ElementBitWidth    int
	Transposed         bool
	Fp4Padded          bool
	CTALayout          CTALayout
}

func (s *NVMMAShared) Kind() Kind     { return KindNVMMAShared }
func (s *NVMMAShared) Rank() int      { return s.CTALayout.Rank() }
func (s *NVMMAShared) CTA() CTALayout { return s.CTALayout }
func (s *NVMMAShared) sealed()        {}

// Vec returns the swizzle vector width in elements: 128 bits per element
// bit width.
func (s *NVMMAShared) Vec() int { return 128 / s.ElementBitWidth }

// PerPhase returns how many rows share one swizzle phase.
func (s *NVMMAShared) PerPhase() int { return 128 / s.SwizzlingByteWidth }

// MaxPhase returns the number of distinct swizzle phases.
func (s *NVMMAShared) MaxPhase() int { return s.SwizzlingByteWidth / 16 }

// AMDMfma distributes the accumulator tile of an AMD MFMA instruction.
// MDim x NDim is the instruction tile (32x32, 16x16, 64x4 or 4x64);
// TilesPerWarp is the per-warp tile replication (defaults to all ones when
// nil); IsTransposed selects the output-transposed variant (mandatory for
// 64x4). ElementType matters only for f64, whose instructions hold one
// element per lane instead of four.
type AMDMfma struct {
	Version      int
	MDim, NDim   int
	IsTransposed bool
	WarpsPerCTA  []int
	TilesPerWarp []int
	ElementType  dtypes.DType
	CTALayout    CTALayout
}

func (m *AMDMfma) Kind() Kind     { return KindAMDMfma }
func (m *AMDMfma) Rank() int      { return len(m.WarpsPerCTA) }
func (m *AMDMfma) CTA() CTALayout { return m.CTALayout }
func (m *AMDMfma) sealed()        {}

// TilesPerWarpOrDefault returns TilesPerWarp, or all ones if unset.
func (m *AMDMfma) TilesPerWarpOrDefault() []int {
	if m.TilesPerWarp != nil {
		return slices.Clone(m.TilesPerWarp)
	}
	ones := make([]int, m.Rank())
	for i := range ones {
		ones[i] = 1
	}
	return ones
}

// RepOrderForOperand returns the repetition order of dot operand opIdx:
// contraction dimension first.
func (m *AMDMfma) RepOrderForOperand(opIdx int) []int {
	return linear.OrderForDotOperand(opIdx, m.Rank(), true)
}

// AMDWmma distributes the accumulator tile of an AMD WMMA instruction
// (16x16 output, 32 lanes, 8 elements per lane). Version selects between
// the two hardware generations, which differ in how the 8 elements
// interleave over the M dimension.
type AMDWmma struct {
	Version      int
	IsTransposed bool
	WarpsPerCTA  []int
	CTALayout    CTALayout
}

func (w *AMDWmma) Kind() Kind     { return KindAMDWmma }
func (w *AMDWmma) Rank() int      { return len(w.WarpsPerCTA) }
func (w *AMDWmma) CTA() CTALayout { return w.CTALayout }
func (w *AMDWmma) sealed()        {}

// MNKDimPerInstr returns the per-instruction tile sizes (M, N, K).
func (w *AMDWmma) MNKDimPerInstr() []int { return []int{16, 16, 16} }

// RepOrder returns the order in which the instruction tile repeats over the
// tensor.
func (w *AMDWmma) RepOrder() []int { return linear.MatrixOrder(w.Rank(), true) }

// RepOrderForOperand returns the repetition order of dot operand opIdx.
func (w *AMDWmma) RepOrderForOperand(opIdx int) []int {
	return linear.OrderForDotOperand(opIdx, w.Rank(), true)
}

// NvidiaMma distributes the accumulator tile of an NVIDIA MMA instruction.
// Version 2 is Ampere (mma.sync), version 3 is Hopper (wgmma). InstrShape
// is the instruction tile: all tensor dimensions for Ampere (e.g. [16, 8]),
// or [M, N, K] for Hopper, of which only M and N are used here.
type NvidiaMma struct {
	Version     int
	InstrShape  []int
	WarpsPerCTA []int
	CTALayout   CTALayout
}

func (m *NvidiaMma) Kind() Kind     { return KindNvidiaMma }
func (m *NvidiaMma) Rank() int      { return len(m.WarpsPerCTA) }
func (m *NvidiaMma) CTA() CTALayout { return m.CTALayout }
func (m *NvidiaMma) sealed()        {}

// IsAmpere returns whether this is the Ampere (mma.sync) generation.
func (m *NvidiaMma) IsAmpere() bool { return m.Version == 2 }

// IsHopper returns whether this is the Hopper (wgmma) generation.
func (m *NvidiaMma) IsHopper() bool { return m.Version == 3 }

// RepOrder returns the order in which the instruction tile repeats over the
// tensor.
func (m *NvidiaMma) RepOrder() []int { return linear.MatrixOrder(m.Rank(), true) }

// RepOrderForOperand returns the repetition order of dot operand opIdx.
func (m *NvidiaMma) RepOrderForOperand(opIdx int) []int {
	return linear.OrderForDotOperand(opIdx, m.Rank(), true)
}

// DotOperand is the A (OpIdx 0) or B (OpIdx 1) input fragment of a matrix
// multiply whose accumulator uses the Parent encoding (Blocked for FMA
// dots, or one of the MMA families). KWidth is the number of contraction
// dimension elements one lane holds per fragment.
type DotOperand struct {
	Parent Encoding
	OpIdx  int
	KWidth int
}

func (d *DotOperand) Kind() Kind     { return KindDotOperand }
func (d *DotOperand) Rank() int      { return d.Parent.Rank() }
func (d *DotOperand) CTA() CTALayout { return d.Parent.CTA() }
func (d *DotOperand) sealed()        {}

// KDimIndex returns the index of the contraction dimension in the operand's
// shape: the last dimension for operand A, the second to last for B.
func (d *DotOperand) KDimIndex() int {
	if d.OpIdx == 0 {
		return d.Rank() - 1
	}
	return d.Rank() - 2
}
