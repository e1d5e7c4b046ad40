package ipam

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCIDR(t *testing.T, s string) *net.IPNet {
	t.Helper()
	_, nw, err := net.ParseCIDR(s)
	require.NoError(t, err)
	return nw
}

func TestNextFreeChildSequential(t *testing.T) {
	root := mustCIDR(t, "2001:db8::/48")
	occupied := map[string]bool{}

	want := []string{"2001:db8::/64", "2001:db8:0:1::/64", "2001:db8:0:2::/64"}
	for _, w := range want {
		got, err := nextFreeChild(root, 64, occupied)
		require.NoError(t, err)
		assert.Equal(t, w, got.String())
		occupied[got.String()] = true
	}
}

func TestNextFreeChildReusesGap(t *testing.T) {
	root := mustCIDR(t, "2001:db8::/48")
	occupied := map[string]bool{
		"2001:db8::/64":     true,
		"2001:db8:0:2::/64": true,
		"2001:db8:0:3::/64": true,
	}
	got, err := nextFreeChild(root, 64, occupied)
	require.NoError(t, err)
	assert.Equal(t, "2001:db8:0:1::/64", got.String())
}

func TestNextFreeChildExhausted(t *testing.T) {
	// /126 вмещает четыре /128
	root := mustCIDR(t, "fd00::/126")
	occupied := map[string]bool{}
	for i := 0; i < 4; i++ {
		got, err := nextFreeChild(root, 128, occupied)
		require.NoError(t, err)
		occupied[got.String()] = true
	}
	_, err := nextFreeChild(root, 128, occupied)
	assert.ErrorIs(t, err, ErrPoolExhausted)
}

func TestNextFreeChildIPv4(t *testing.T) {
	// та же арифметика работает и для v4-корней
	root := mustCIDR(t, "10.0.0.0/16")
	got, err := nextFreeChild(root, 24, map[string]bool{"10.0.0.0/24": true})
	require.NoError(t, err)
	assert.Equal(t, "10.0.1.0/24", got.String())
}

func TestNextFreeChildInvalidLength(t *testing.T) {
	root := mustCIDR(t, "2001:db8::/48")
	_, err := nextFreeChild(root, 48, nil)
	assert.Error(t, err)
	_, err = nextFreeChild(root, 129, nil)
	assert.Error(t, err)
}

func TestPoolMemModeReserveRelease(t *testing.T) {
	p, err := NewPool(nil, "fd00::/48", 64)
	require.NoError(t, err)
	ctx := context.Background()

	a, err := p.ReservePrefix(ctx, "sub-1")
	require.NoError(t, err)
	b, err := p.ReservePrefix(ctx, "sub-2")
	require.NoError(t, err)
	assert.NotEqual(t, a.CIDR, b.CIDR, "leases must be disjoint")

	// освобождение возвращает префикс в оборот
	require.NoError(t, p.ReleasePrefix(ctx, a.ID))
	c, err := p.ReservePrefix(ctx, "sub-3")
	require.NoError(t, err)
	assert.Equal(t, a.CIDR, c.CIDR)

	// повторное освобождение — не ошибка
	require.NoError(t, p.ReleasePrefix(ctx, a.ID))
}

func TestNewPoolValidatesRoot(t *testing.T) {
	_, err := NewPool(nil, "not-a-cidr", 64)
	assert.Error(t, err)
	_, err = NewPool(nil, "2001:db8::/64", 48)
	assert.Error(t, err)
}
