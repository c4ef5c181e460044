package convert

import (
	"testing"

	"github.com/gomlx/layouts/encodings"
	"github.com/gomlx/layouts/types/dimnames"
	"github.com/stretchr/testify/require"
)

func TestNvidiaMMALayoutAmpere(t *testing.T) {
	nc := dimnames.NewContext()
	m := &encodings.NvidiaMma{
		Version:     2,
		InstrShape:  []int{16, 8},
		WarpsPerCTA: []int{2, 2},
		CTALayout:   encodings.TrivialCTALayout(2),
	}

	l := NvidiaMMALayout(nc, []int{32, 16}, m)
	require.Equal(t, 4, l.InDimSize(nc.Register()))
	require.Equal(t, 32, l.InDimSize(nc.Lane()))
	require.Equal(t, 4, l.InDimSize(nc.Warp()))
	require.Equal(t, 32, l.OutDimSize(nc.Dim(0)))
	require.Equal(t, 16, l.OutDimSize(nc.Dim(1)))

	// The classic m16n8 fragment: two adjacent elements per lane, four
	// lanes across N, eight lanes down M, then the row-8 repeat.
	require.Equal(t, []int32{0, 1}, l.Basis(nc.Register(), 0))
	require.Equal(t, []int32{8, 0}, l.Basis(nc.Register(), 1))
	require.Equal(t, []int32{0, 2}, l.Basis(nc.Lane(), 0))
	require.Equal(t, []int32{1, 0}, l.Basis(nc.Lane(), 2))
	// Warps tile N first on Ampere.
	require.Equal(t, []int32{0, 8}, l.Basis(nc.Warp(), 0))
	require.Equal(t, []int32{16, 0}, l.Basis(nc.Warp(), 1))
}

func TestNvidiaMMALayoutHopper(t *testing.T) {
	nc := dimnames.NewContext()
	m := &encodings.NvidiaMma{
		Version:     3,
		InstrShape:  []int{16, 32, 16},
		WarpsPerCTA: []int{4, 1},
		CTALayout:   encodings.TrivialCTALayout(2),
	}

	l := NvidiaMMALayout(nc, []int{64, 32}, m)
	require.Equal(t, 16, l.InDimSize(nc.Register()))
	require.Equal(t, 32, l.InDimSize(nc.Lane()))
	require.Equal(t, 4, l.InDimSize(nc.Warp()))

	// The four warps of the warpgroup split M, never N.
	require.Equal(t, []int32{16, 0}, l.Basis(nc.Warp(), 0))
	require.Equal(t, []int32{32, 0}, l.Basis(nc.Warp(), 1))
	require.Equal(t, 64, l.OutDimSize(nc.Dim(0)))
	require.Equal(t, 32, l.OutDimSize(nc.Dim(1)))
}

func TestNvidiaDotLayoutOperandA(t *testing.T) {
	nc := dimnames.NewContext()
	mma := &encodings.NvidiaMma{
		Version:     2,
		InstrShape:  []int{16, 8},
		WarpsPerCTA: []int{2, 2},
		CTALayout:   encodings.TrivialCTALayout(2),
	}
	dot := &encodings.DotOperand{Parent: mma, OpIdx: 0, KWidth: 2}

	l := NvidiaDotLayout(nc, []int{32, 16}, dot)
	require.Equal(t, 8, l.InDimSize(nc.Register()))
	require.Equal(t, 32, l.InDimSize(nc.Lane()))

	// Warps broadcast along K and split M.
	require.Equal(t, []int32{0, 0}, l.Basis(nc.Warp(), 0))
	require.Equal(t, []int32{16, 0}, l.Basis(nc.Warp(), 1))
	require.Equal(t, 32, l.OutDimSize(nc.Dim(0)))
	require.Equal(t, 16, l.OutDimSize(nc.Dim(1)))
}

func TestNvidiaDotLayoutOperandBRequiresAmpere(t *testing.T) {
	nc := dimnames.NewContext()
	mma := &encodings.NvidiaMma{
		Version:     3,
		InstrShape:  []int{16, 32, 16},
		WarpsPerCTA: []int{4, 1},
		CTALayout:   encodings.TrivialCTALayout(2),
	}
	dot := &encodings.DotOperand{Parent: mma, OpIdx: 1, KWidth: 2}
	require.Panics(t, func() {
		NvidiaDotLayout(nc, []int{16, 32}, dot)
	})
}

func TestScaleTMEMStoreLayout(t *testing.T) {
	nc := dimnames.NewContext()
	l := ScaleTMEMStoreLayout(nc, []int{128, 4}, encodings.TrivialCTALayout(2), 4)

	require.Equal(t, 16, l.InDimSize(nc.Register()))
	require.Equal(t, 32, l.InDimSize(nc.Lane()))
	require.Equal(t, 4, l.InDimSize(nc.Warp()))
	require.Equal(t, 128, l.OutDimSize(nc.Dim(0)))
	require.Equal(t, 4, l.OutDimSize(nc.Dim(1)))

	// Four scales pack per lane, 32 lanes cover 32 rows, warps replicate.
	require.Equal(t, []int32{0, 1}, l.Basis(nc.Register(), 0))
	require.Equal(t, []int32{32, 0}, l.Basis(nc.Register(), 2))
	require.Equal(t, []int32{1, 0}, l.Basis(nc.Lane(), 0))
	require.Equal(t, []int32{0, 0}, l.Basis(nc.Warp(), 0))
	require.Equal(t, []int32{0, 0}, l.Basis(nc.Warp(), 1))
}

func TestTMEMLoadStoreLayout16x256(t *testing.T) {
	nc := dimnames.NewContext()
	l, ok := TMEMLoadStoreLayout16x256(nc, 128, 64, []int{128, 64},
		encodings.TrivialCTALayout(2), 32, 4)
	require.True(t, ok)

	require.Equal(t, 64, l.InDimSize(nc.Register()))
	require.Equal(t, 32, l.InDimSize(nc.Lane()))
	require.Equal(t, 4, l.InDimSize(nc.Warp()))
	require.Equal(t, 128, l.OutDimSize(nc.Dim(0)))
	require.Equal(t, 64, l.OutDimSize(nc.Dim(1)))

	// The warps of the warpgroup split M in 32-row slices.
	require.Equal(t, []int32{32, 0}, l.Basis(nc.Warp(), 0))
	require.Equal(t, []int32{64, 0}, l.Basis(nc.Warp(), 1))
	require.Equal(t, []int32{0, 1}, l.Basis(nc.Register(), 0))
	require.Equal(t, []int32{8, 0}, l.Basis(nc.Register(), 1))
	require.Equal(t, []int32{0, 8}, l.Basis(nc.Register(), 2))
}

func TestTMEMLoadStoreLayout16x256TooSmall(t *testing.T) {
	nc := dimnames.NewContext()
	_, ok := TMEMLoadStoreLayout16x256(nc, 64, 16, []int{64, 16},
		encodings.TrivialCTALayout(2), 16, 8)
	require.False(t, ok)
}

func TestTMEMLoadLayoutSplitLongM(t *testing.T) {
	nc := dimnames.NewContext()
	l := TMEMLoadLayoutSplitLongM(nc, 128, 32, []int{256, 32},
		encodings.TrivialCTALayout(2), 8)

	require.Equal(t, 32, l.InDimSize(nc.Register()))
	require.Equal(t, 32, l.InDimSize(nc.Lane()))
	require.Equal(t, 8, l.InDimSize(nc.Warp()))
	require.Equal(t, 256, l.OutDimSize(nc.Dim(0)))
	require.Equal(t, 32, l.OutDimSize(nc.Dim(1)))

	// Warps 0 and 4 only address M[0:32], so the warp bases interleave M.
	require.Equal(t, []int32{32, 0}, l.Basis(nc.Warp(), 0))
	require.Equal(t, []int32{64, 0}, l.Basis(nc.Warp(), 1))
	require.Equal(t, []int32{16, 0}, l.Basis(nc.Warp(), 2))
	// Lane 16 jumps to the second half of the message's N columns.
	require.Equal(t, []int32{0, 16}, l.Basis(nc.Lane(), 4))
}
