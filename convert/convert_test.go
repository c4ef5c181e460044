package convert

import (
	"testing"

	"github.com/gomlx/layouts/encodings"
	"github.com/gomlx/layouts/types/dimnames"
	"github.com/stretchr/testify/require"
)

func TestToLinearLayoutDispatch(t *testing.T) {
	nc := dimnames.NewContext()

	b := blocked2D([]int{1, 8}, []int{8, 8}, []int{1, 4})
	got := ToLinearLayout(nc, []int{64, 64}, b, nil)
	require.True(t, got.Equal(BlockedLayout(nc, []int{64, 64}, b)))

	s := &encodings.SwizzledShared{
		Vec: 4, PerPhase: 2, MaxPhase: 4,
		Order:     []int{1, 0},
		CTALayout: encodings.TrivialCTALayout(2),
	}
	// Shared layouts are built on the allocation shape, not the view shape.
	got = ToLinearLayout(nc, []int{16, 16}, s, []int{32, 16})
	require.True(t, got.Equal(SwizzledSharedLayout(nc, []int{32, 16}, s)))
	require.Equal(t, 32, got.OutDimSize(nc.Dim(0)))

	dot := &encodings.DotOperand{
		Parent: blocked2D([]int{2, 2}, []int{4, 4}, []int{2, 2}),
		OpIdx:  0,
		KWidth: 1,
	}
	got = ToLinearLayout(nc, []int{16, 16}, dot, nil)
	require.True(t, got.Equal(FMADotLayout(nc, []int{16, 16}, dot)))
}
