package convert

import (
	"testing"

	"github.com/gomlx/layouts/encodings"
	"github.com/gomlx/layouts/types/dimnames"
	"github.com/stretchr/testify/require"
)

func TestSwizzledSharedTrivialIsRowMajorIdentity(t *testing.T) {
	nc := dimnames.NewContext()
	s := &encodings.SwizzledShared{
		Vec: 1, PerPhase: 1, MaxPhase: 1,
		Order:     []int{1, 0},
		CTALayout: encodings.TrivialCTALayout(2),
	}

	l := SwizzledSharedLayout(nc, []int{32, 32}, s)
	require.Equal(t, 1024, l.InDimSize(nc.Offset()))
	require.Equal(t, 32, l.OutDimSize(nc.Dim(0)))
	require.Equal(t, 32, l.OutDimSize(nc.Dim(1)))

	// Offset 37 is row 1, column 5 of a row-major buffer.
	got := l.Apply(map[dimnames.Name]int{nc.Offset(): 37, nc.Block(): 0})
	require.Equal(t, 1, got[nc.Dim(0)])
	require.Equal(t, 5, got[nc.Dim(1)])
}

func TestSwizzledSharedPhases(t *testing.T) {
	nc := dimnames.NewContext()
	s := &encodings.SwizzledShared{
		Vec: 4, PerPhase: 2, MaxPhase: 4,
		Order:     []int{1, 0},
		CTALayout: encodings.TrivialCTALayout(2),
	}

	l := SwizzledSharedLayout(nc, []int{16, 16}, s)
	offset := nc.Offset()

	// Bits 0..3 walk the columns of row 0 unswizzled.
	require.Equal(t, []int32{0, 1}, l.Basis(offset, 0))
	require.Equal(t, []int32{0, 8}, l.Basis(offset, 3))

	// Row bits carry the phase rotation: row 2 is phase 1, row 4 phase 2,
	// row 8 wraps back to phase 0.
	require.Equal(t, []int32{1, 0}, l.Basis(offset, 4))
	require.Equal(t, []int32{2, 4}, l.Basis(offset, 5))
	require.Equal(t, []int32{4, 8}, l.Basis(offset, 6))
	require.Equal(t, []int32{8, 0}, l.Basis(offset, 7))
}

func TestAMDRotatingSharedRotatesAcrossRowBlocks(t *testing.T) {
	nc := dimnames.NewContext()
	order := []int{1, 0}
	cta := encodings.TrivialCTALayout(2)
	shape := []int{16, 8}

	plain := SwizzledSharedLayout(nc, shape, &encodings.SwizzledShared{
		Vec: 2, PerPhase: 1, MaxPhase: 4, Order: order, CTALayout: cta,
	})
	rotating := AMDRotatingSharedLayout(nc, shape, &encodings.AMDRotatingShared{
		Vec: 2, PerPhase: 1, MaxPhase: 4, Order: order, CTALayout: cta,
	})
	offset := nc.Offset()

	// Rows below maxPhase*perPhase agree, the phase alone decides.
	require.Equal(t, plain.Basis(offset, 3), rotating.Basis(offset, 3))
	require.Equal(t, plain.Basis(offset, 4), rotating.Basis(offset, 4))

	// From row 4 on the block counter XORs into the phase: row 4 is block 1
	// phase 0, row 8 is block 2 phase 0.
	require.Equal(t, []int32{4, 0}, plain.Basis(offset, 5))
	require.Equal(t, []int32{4, 2}, rotating.Basis(offset, 5))
	require.Equal(t, []int32{8, 0}, plain.Basis(offset, 6))
	require.Equal(t, []int32{8, 4}, rotating.Basis(offset, 6))
}

func TestNVMMASharedLayout(t *testing.T) {
	nc := dimnames.NewContext()
	s := &encodings.NVMMAShared{
		SwizzlingByteWidth: 128,
		ElementBitWidth:    16,
		CTALayout:          encodings.TrivialCTALayout(2),
	}

	l := NVMMASharedLayout(nc, []int{64, 64}, s, false)
	offset := nc.Offset()
	require.Equal(t, 4096, l.InDimSize(offset))
	require.Equal(t, 64, l.OutDimSize(nc.Dim(0)))
	require.Equal(t, 64, l.OutDimSize(nc.Dim(1)))

	// The core matrix is 8x64: six column bits, then three swizzled row
	// bits (vec=8, perPhase=1, maxPhase=8), then the replicated rows.
	require.Equal(t, []int32{0, 1}, l.Basis(offset, 0))
	require.Equal(t, []int32{0, 32}, l.Basis(offset, 5))
	require.Equal(t, []int32{1, 8}, l.Basis(offset, 6))
	require.Equal(t, []int32{2, 16}, l.Basis(offset, 7))
	require.Equal(t, []int32{4, 32}, l.Basis(offset, 8))
	require.Equal(t, []int32{8, 0}, l.Basis(offset, 9))

	// Disabling the swizzle keeps the geometry but drops the rotation.
	plain := NVMMASharedLayout(nc, []int{64, 64}, s, true)
	require.Equal(t, []int32{1, 0}, plain.Basis(offset, 6))
	require.Equal(t, []int32{4, 0}, plain.Basis(offset, 8))
}

func TestNVMMASharedTransposed(t *testing.T) {
	nc := dimnames.NewContext()
	s := &encodings.NVMMAShared{
		SwizzlingByteWidth: 128,
		ElementBitWidth:    16,
		Transposed:         true,
		CTALayout:          encodings.TrivialCTALayout(2),
	}

	l := NVMMASharedLayout(nc, []int{64, 64}, s, false)
	// The contiguous offset bits now walk dim0.
	require.Equal(t, []int32{1, 0}, l.Basis(nc.Offset(), 0))
	require.Equal(t, []int32{32, 0}, l.Basis(nc.Offset(), 5))
}

func TestNVMMASharedUnswizzled(t *testing.T) {
	nc := dimnames.NewContext()
	s := &encodings.NVMMAShared{
		SwizzlingByteWidth: 0,
		ElementBitWidth:    16,
		CTALayout:          encodings.TrivialCTALayout(2),
	}

	l := NVMMASharedLayout(nc, []int{4, 8}, s, false)
	require.Equal(t, 32, l.InDimSize(nc.Offset()))
	got := l.Apply(map[dimnames.Name]int{nc.Offset(): 17, nc.Block(): 0})
	require.Equal(t, 2, got[nc.Dim(0)])
	require.Equal(t, 1, got[nc.Dim(1)])
}

func TestNVMMASharedTooSmallPanics(t *testing.T) {
	nc := dimnames.NewContext()
	s := &encodings.NVMMAShared{
		SwizzlingByteWidth: 128,
		ElementBitWidth:    16,
		CTALayout:          encodings.TrivialCTALayout(2),
	}
	require.Panics(t, func() {
		NVMMASharedLayout(nc, []int{4, 64}, s, false)
	})
	require.Panics(t, func() {
		NVMMASharedLayout(nc, []int{64, 32}, s, false)
	})
}
