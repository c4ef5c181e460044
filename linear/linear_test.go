package linear

import (
	"testing"

	"github.com/gomlx/layouts/types/dimnames"
	"github.com/stretchr/testify/require"
)

func TestIdentity1D(t *testing.T) {
	nc := dimnames.NewContext()
	in, out := nc.Register(), nc.Dim(0)

	l := Identity1D(8, in, out)
	require.Equal(t, []dimnames.Name{in}, l.InDimNames())
	require.Equal(t, []dimnames.Name{out}, l.OutDimNames())
	require.Equal(t, 8, l.InDimSize(in))
	require.Equal(t, 8, l.OutDimSize(out))
	require.Equal(t, [][]int32{{1}, {2}, {4}}, l.InDimBases(in))
	for i := range 8 {
		got := l.Apply(map[dimnames.Name]int{in: i})
		require.Equal(t, i, got[out])
	}

	// Size 1 (or 0) registers the dimensions without basis bits.
	for _, size := range []int{0, 1} {
		trivial := Identity1D(size, in, out)
		require.True(t, trivial.HasInDim(in))
		require.True(t, trivial.HasOutDim(out))
		require.Equal(t, 1, trivial.InDimSize(in))
		require.Equal(t, 1, trivial.OutDimSize(out))
	}

	require.Panics(t, func() { Identity1D(6, in, out) })
}

func TestZeros1D(t *testing.T) {
	nc := dimnames.NewContext()
	in, out := nc.Block(), nc.Dim(0)

	l := Zeros1D(4, in, out)
	require.Equal(t, 4, l.InDimSize(in))
	require.Equal(t, 1, l.OutDimSize(out))
	for i := range 4 {
		got := l.Apply(map[dimnames.Name]int{in: i})
		require.Equal(t, 0, got[out])
	}
}

func TestEmpty(t *testing.T) {
	nc := dimnames.NewContext()
	e := Empty()
	require.Equal(t, 0, e.NumInDims())
	require.Equal(t, 0, e.NumOutDims())
	require.Equal(t, 1, e.TotalInSize())
	require.Equal(t, 1, e.TotalOutSize())

	l := Identity1D(4, nc.Lane(), nc.Dim(0))
	require.True(t, e.Mul(l).Equal(l))
	require.True(t, l.Mul(e).Equal(l))
}

func TestNewInfersOutSizes(t *testing.T) {
	nc := dimnames.NewContext()
	offset := nc.Offset()
	dim0, dim1 := nc.Dim(0), nc.Dim(1)

	// Max contribution 4 on dim0 and 6 on dim1: inferred sizes 8 and 8.
	l := New([]InDimBases{
		{Name: offset, Bases: [][]int32{{1, 0}, {2, 6}, {4, 1}}},
	}, []dimnames.Name{dim0, dim1})
	require.Equal(t, 8, l.OutDimSize(dim0))
	require.Equal(t, 8, l.OutDimSize(dim1))
	require.Equal(t, 8, l.InDimSize(offset))

	// No contributions at all infer size 1.
	z := New([]InDimBases{
		{Name: offset, Bases: [][]int32{{0, 0}}},
	}, []dimnames.Name{dim0, dim1})
	require.Equal(t, 1, z.OutDimSize(dim0))
}

func TestNewWithOutDimsValidates(t *testing.T) {
	nc := dimnames.NewContext()
	offset := nc.Offset()
	dim0 := nc.Dim(0)

	l := NewWithOutDims([]InDimBases{
		{Name: offset, Bases: [][]int32{{1}, {0}}},
	}, []DimSize{{Name: dim0, Size: 4}})
	require.Equal(t, 4, l.OutDimSize(dim0))
	require.Equal(t, 4, l.InDimSize(offset))

	// Contribution 4 does not fit size 4.
	require.Panics(t, func() {
		NewWithOutDims([]InDimBases{
			{Name: offset, Bases: [][]int32{{4}}},
		}, []DimSize{{Name: dim0, Size: 4}})
	})
	// Duplicate input dimension.
	require.Panics(t, func() {
		New([]InDimBases{
			{Name: offset, Bases: [][]int32{{1}}},
			{Name: offset, Bases: [][]int32{{1}}},
		}, []dimnames.Name{dim0})
	})
	// Wrong basis width.
	require.Panics(t, func() {
		New([]InDimBases{
			{Name: offset, Bases: [][]int32{{1, 0}}},
		}, []dimnames.Name{dim0})
	})
}

func TestApplyXORAccumulation(t *testing.T) {
	nc := dimnames.NewContext()
	offset := nc.Offset()
	dim0 := nc.Dim(0)

	// Swizzle-style table: bit 0 -> 1, bit 1 -> 3. Input 3 gives 1^3 = 2.
	l := New([]InDimBases{
		{Name: offset, Bases: [][]int32{{1}, {3}}},
	}, []dimnames.Name{dim0})
	require.Equal(t, 2, l.Apply(map[dimnames.Name]int{offset: 3})[dim0])

	require.Panics(t, func() { l.Apply(map[dimnames.Name]int{offset: 4}) })
	require.Panics(t, func() { l.Apply(map[dimnames.Name]int{}) })
}

func TestEqual(t *testing.T) {
	nc := dimnames.NewContext()
	a := Identity1D(8, nc.Lane(), nc.Dim(0))
	b := Identity1D(8, nc.Lane(), nc.Dim(0))
	c := Identity1D(8, nc.Lane(), nc.Dim(1))
	d := Zeros1D(8, nc.Lane(), nc.Dim(0))
	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
	require.False(t, a.Equal(d))
}

func TestString(t *testing.T) {
	nc := dimnames.NewContext()
	l := Identity1D(4, nc.Lane(), nc.Dim(0))
	s := l.String()
	require.Contains(t, s, "lane")
	require.Contains(t, s, "dim0")
}
