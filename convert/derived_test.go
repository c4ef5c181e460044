package convert

import (
	"testing"

	"github.com/gomlx/layouts/encodings"
	"github.com/gomlx/layouts/linear"
	"github.com/gomlx/layouts/types/dimnames"
	"github.com/stretchr/testify/require"
)

func TestWithinBlockRequiresBlockDim(t *testing.T) {
	nc := dimnames.NewContext()
	l := linear.Identity1D(4, nc.Register(), nc.Dim(0))
	require.Panics(t, func() {
		WithinBlock(nc, l)
	})
}

func TestSlice(t *testing.T) {
	nc := dimnames.NewContext()
	b := &encodings.Blocked{
		SizePerThread:  []int{1, 2, 1},
		ThreadsPerWarp: []int{1, 1, 1},
		WarpsPerCTA:    []int{1, 1, 1},
		Order:          []int{2, 1, 0},
		CTALayout:      encodings.TrivialCTALayout(3),
	}
	parent := BlockedLayout(nc, []int{4, 2, 8}, b)
	require.Equal(t, 64, parent.InDimSize(nc.Register()))

	sliced := Slice(nc, parent, 1)
	require.Equal(t, 2, sliced.NumOutDims())
	require.Equal(t, 4, sliced.OutDimSize(nc.Dim(0)))
	require.Equal(t, 8, sliced.OutDimSize(nc.Dim(1)))

	// The register bit that addressed the sliced dimension is gone.
	require.Equal(t, 32, sliced.InDimSize(nc.Register()))
	for bit := 0; bit < sliced.InDimSizeLog2(nc.Register()); bit++ {
		require.NotEqual(t, []int32{0, 0}, sliced.Basis(nc.Register(), bit))
	}

	// Lane, warp and block survive, even when trivial.
	require.True(t, sliced.HasInDim(nc.Lane()))
	require.True(t, sliced.HasInDim(nc.Warp()))
	require.True(t, sliced.HasInDim(nc.Block()))
}

func TestContiguousRunLength(t *testing.T) {
	nc := dimnames.NewContext()
	b := blocked2D([]int{1, 4}, []int{8, 8}, []int{1, 1})
	l := BlockedLayout(nc, []int{8, 32}, b)

	require.Equal(t, 4, ContiguousRunLength(nc, l, 1))
	require.Equal(t, 1, ContiguousRunLength(nc, l, 0))

	// No register dimension means no vectorization.
	shared := linear.Identity1D(16, nc.Offset(), nc.Dim(0))
	require.Equal(t, 1, ContiguousRunLength(nc, shared, 0))
}
