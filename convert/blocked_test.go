package convert

import (
	"testing"

	"github.com/gomlx/layouts/encodings"
	"github.com/gomlx/layouts/types/dimnames"
	"github.com/stretchr/testify/require"
)

func blocked2D(sizePerThread, threadsPerWarp, warpsPerCTA []int) *encodings.Blocked {
	return &encodings.Blocked{
		SizePerThread:  sizePerThread,
		ThreadsPerWarp: threadsPerWarp,
		WarpsPerCTA:    warpsPerCTA,
		Order:          []int{1, 0},
		CTALayout:      encodings.TrivialCTALayout(2),
	}
}

func TestBlockedLayout(t *testing.T) {
	nc := dimnames.NewContext()
	b := blocked2D([]int{1, 8}, []int{8, 8}, []int{1, 4})

	l := BlockedLayout(nc, []int{8, 64}, b)
	require.Equal(t, 8, l.OutDimSize(nc.Dim(0)))
	require.Equal(t, 64, l.OutDimSize(nc.Dim(1)))
	require.Equal(t, 8, l.InDimSize(nc.Register()))
	require.Equal(t, 64, l.InDimSize(nc.Lane()))
	require.Equal(t, 4, l.InDimSize(nc.Warp()))
	require.Equal(t, 1, l.InDimSize(nc.Block()))

	// The 4 warps along dim1 would reach past the tensor, so they broadcast.
	require.Equal(t, []int32{0, 0}, l.Basis(nc.Warp(), 0))
	require.Equal(t, []int32{0, 0}, l.Basis(nc.Warp(), 1))

	// Register bits address the 8 elements each thread owns along dim1.
	got := l.Apply(map[dimnames.Name]int{
		nc.Register(): 3, nc.Lane(): 0, nc.Warp(): 0, nc.Block(): 0,
	})
	require.Equal(t, 0, got[nc.Dim(0)])
	require.Equal(t, 3, got[nc.Dim(1)])

	// Lane bits split [dim1, dim0]: lane 9 is column 8 of row 1.
	got = l.Apply(map[dimnames.Name]int{
		nc.Register(): 0, nc.Lane(): 9, nc.Warp(): 0, nc.Block(): 0,
	})
	require.Equal(t, 1, got[nc.Dim(0)])
	require.Equal(t, 8, got[nc.Dim(1)])
}

func TestBlockedLayoutGrowsRegisters(t *testing.T) {
	nc := dimnames.NewContext()
	b := blocked2D([]int{1, 8}, []int{8, 8}, []int{1, 4})

	// The CTA only covers 8 of the 64 rows, so the registers grow 8x along
	// dim0 to tile the rest.
	l := BlockedLayout(nc, []int{64, 64}, b)
	require.Equal(t, 64, l.OutDimSize(nc.Dim(0)))
	require.Equal(t, 64, l.InDimSize(nc.Register()))
	require.Equal(t, []int32{8, 0}, l.Basis(nc.Register(), 3))
	require.Equal(t, []int32{32, 0}, l.Basis(nc.Register(), 5))
}

func TestFMADotLayout(t *testing.T) {
	nc := dimnames.NewContext()
	parent := blocked2D([]int{2, 2}, []int{4, 4}, []int{2, 2})
	dot := &encodings.DotOperand{Parent: parent, OpIdx: 0, KWidth: 1}

	l := FMADotLayout(nc, []int{16, 16}, dot)
	require.Equal(t, 16, l.OutDimSize(nc.Dim(0)))
	require.Equal(t, 16, l.OutDimSize(nc.Dim(1)))

	// Operand A owns the full K extent (dim1) per thread.
	require.Equal(t, 32, l.InDimSize(nc.Register()))
	require.Equal(t, 16, l.InDimSize(nc.Lane()))
	require.Equal(t, 4, l.InDimSize(nc.Warp()))

	// Lanes and warps broadcast along K and distribute along M.
	require.Equal(t, []int32{0, 0}, l.Basis(nc.Lane(), 0))
	require.Equal(t, []int32{0, 0}, l.Basis(nc.Lane(), 1))
	require.Equal(t, []int32{2, 0}, l.Basis(nc.Lane(), 2))
	require.Equal(t, []int32{0, 0}, l.Basis(nc.Warp(), 0))
	require.Equal(t, []int32{8, 0}, l.Basis(nc.Warp(), 1))
}
