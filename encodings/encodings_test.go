package encodings

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrivialCTALayout(t *testing.T) {
	cta := TrivialCTALayout(3)
	require.Equal(t, []int{1, 1, 1}, cta.CTAsPerCGA)
	require.Equal(t, []int{1, 1, 1}, cta.CTASplitNum)
	require.Equal(t, []int{2, 1, 0}, cta.CTAOrder)
	require.NotPanics(t, cta.Validate)
	require.Equal(t, 3, cta.Rank())
}

func TestCTALayoutValidate(t *testing.T) {
	require.Panics(t, func() {
		CTALayout{CTAsPerCGA: []int{2}, CTASplitNum: []int{2, 1}, CTAOrder: []int{1, 0}}.Validate()
	})
	require.Panics(t, func() {
		CTALayout{CTAsPerCGA: []int{2, 2}, CTASplitNum: []int{2, 1}, CTAOrder: []int{1, 1}}.Validate()
	})
	// CTAsPerCGA must be a multiple of CTASplitNum.
	require.Panics(t, func() {
		CTALayout{CTAsPerCGA: []int{2, 1}, CTASplitNum: []int{4, 1}, CTAOrder: []int{1, 0}}.Validate()
	})
	require.NotPanics(t, func() {
		CTALayout{CTAsPerCGA: []int{4, 2}, CTASplitNum: []int{2, 1}, CTAOrder: []int{0, 1}}.Validate()
	})
}

func TestShapePerCTA(t *testing.T) {
	cta := CTALayout{CTAsPerCGA: []int{4, 2}, CTASplitNum: []int{4, 2}, CTAOrder: []int{1, 0}}
	require.Equal(t, []int{32, 16}, cta.ShapePerCTA([]int{128, 32}))
	// Shapes smaller than the split are replicated, not split below 1.
	require.Equal(t, []int{1, 16}, cta.ShapePerCTA([]int{2, 32}))
}

func TestKindStrings(t *testing.T) {
	require.Equal(t, "Blocked", KindBlocked.String())
	require.Equal(t, "NVMMAShared", KindNVMMAShared.String())
	require.Equal(t, "DotOperand", KindDotOperand.String())
	require.Equal(t, "Kind(42)", Kind(42).String())

	k, err := KindString("AMDMfma")
	require.NoError(t, err)
	require.Equal(t, KindAMDMfma, k)
	_, err = KindString("bogus")
	require.Error(t, err)
	require.Len(t, KindValues(), 9)
}

func TestKindsAndSharedness(t *testing.T) {
	cta2 := TrivialCTALayout(2)
	blocked := &Blocked{
		SizePerThread:  []int{1, 4},
		ThreadsPerWarp: []int{8, 4},
		WarpsPerCTA:    []int{2, 2},
		Order:          []int{1, 0},
		CTALayout:      cta2,
	}
	swizzled := &SwizzledShared{Vec: 8, PerPhase: 1, MaxPhase: 8, Order: []int{1, 0}, CTALayout: cta2}
	nvmma := &NVMMAShared{SwizzlingByteWidth: 128, ElementBitWidth: 16, CTALayout: cta2}
	rotating := &AMDRotatingShared{Vec: 4, PerPhase: 1, MaxPhase: 16, Order: []int{1, 0}, CTALayout: cta2}
	mfma := &AMDMfma{Version: 4, MDim: 32, NDim: 32, WarpsPerCTA: []int{2, 2}, CTALayout: cta2}

	require.False(t, IsShared(blocked))
	require.True(t, IsShared(swizzled))
	require.True(t, IsShared(nvmma))
	require.True(t, IsShared(rotating))
	require.False(t, IsShared(mfma))

	require.Equal(t, 2, blocked.Rank())
	require.Equal(t, KindBlocked, blocked.Kind())
	require.Equal(t, []int{1, 0}, blocked.RepOrder())
}

func TestNVMMASharedDerivedParams(t *testing.T) {
	cta := TrivialCTALayout(2)
	for _, test := range []struct {
		swizzleBytes, elemBits  int
		vec, perPhase, maxPhase int
	}{
		{128, 16, 8, 1, 8},
		{64, 16, 8, 2, 4},
		{32, 16, 8, 4, 2},
		{128, 8, 16, 1, 8},
		{64, 32, 4, 2, 4},
	} {
		s := &NVMMAShared{SwizzlingByteWidth: test.swizzleBytes, ElementBitWidth: test.elemBits, CTALayout: cta}
		require.Equal(t, test.vec, s.Vec())
		require.Equal(t, test.perPhase, s.PerPhase())
		require.Equal(t, test.maxPhase, s.MaxPhase())
	}
}

func TestAMDMfmaTilesPerWarp(t *testing.T) {
	mfma := &AMDMfma{Version: 4, MDim: 16, NDim: 16, WarpsPerCTA: []int{2, 2}, CTALayout: TrivialCTALayout(2)}
	require.Equal(t, []int{1, 1}, mfma.TilesPerWarpOrDefault())
	mfma.TilesPerWarp = []int{2, 4}
	require.Equal(t, []int{2, 4}, mfma.TilesPerWarpOrDefault())
}

func TestDotOperand(t *testing.T) {
	mma := &NvidiaMma{
		Version:     2,
		InstrShape:  []int{16, 8},
		WarpsPerCTA: []int{2, 2},
		CTALayout:   TrivialCTALayout(2),
	}
	require.True(t, mma.IsAmpere())
	require.False(t, mma.IsHopper())
	require.Equal(t, []int{1, 0}, mma.RepOrder())

	a := &DotOperand{Parent: mma, OpIdx: 0, KWidth: 2}
	b := &DotOperand{Parent: mma, OpIdx: 1, KWidth: 2}
	require.Equal(t, 1, a.KDimIndex())
	require.Equal(t, 0, b.KDimIndex())
	require.Equal(t, 2, a.Rank())
	require.Equal(t, mma.CTALayout, a.CTA())

	// Operand A repeats along K fastest, operand B along K then N.
	require.Equal(t, []int{1, 0}, mma.RepOrderForOperand(0))
	require.Equal(t, []int{0, 1}, mma.RepOrderForOperand(1))
}
