package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFixedPointRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, -1, 100, -100, 100000} {
		f := IntToFixed(n)
		require.Equal(t, n, f.ToIntZero())
		require.Equal(t, n, f.ToIntNearest())
	}
}

func TestFixedPointArithmetic(t *testing.T) {
	a := IntToFixed(3)
	b := IntToFixed(2)
	require.Equal(t, IntToFixed(5), a.Add(b))
	require.Equal(t, IntToFixed(1), a.Sub(b))
	require.Equal(t, IntToFixed(6), a.Mul(b))

	half := IntToFixed(1).DivInt(2)
	require.Equal(t, 0, half.ToIntZero())
	require.Equal(t, 1, half.ToIntNearest())
}

func TestFixedPointDivByZeroIsTotal(t *testing.T) {
	f := IntToFixed(5)
	require.NotPanics(t, func() {
		require.Equal(t, Fixed17_14(0), f.Div(0))
		require.Equal(t, Fixed17_14(0), f.DivInt(0))
	})
}

func TestDisplay100x(t *testing.T) {
	require.Equal(t, 100, IntToFixed(1).Display100x())
	require.Equal(t, 150, IntToFixed(1).Add(IntToFixed(1).DivInt(2)).Display100x())
}
