package cart

import (
	"math"
	"testing"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_ScenarioAddRemoveClear(t *testing.T) {
	sink := &recordingSink{}
	s := NewStore(nil, sink, nil)

	s.AddItem(product("A", 500), 2)
	s.AddItem(product("B", 1500), 1)
	assert.Equal(t, domain.Money(2500), s.Total())

	s.RemoveItem("A")
	assert.Equal(t, domain.Money(1500), s.Total())

	s.Clear()
	assert.Equal(t, domain.Money(0), s.Total())
	assert.Equal(t, 0, s.Len())

	require.Equal(t, 4, sink.count())
	assert.Empty(t, sink.last())
}

func TestStore_AddTwiceAccumulates(t *testing.T) {
	s := NewStore(nil, nil, nil)
	s.AddItem(product("A", 500), 1)
	s.AddItem(product("A", 500), 1)

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 2, s.Quantity("A"))
}

func TestStore_AddKeepsOriginalPrice(t *testing.T) {
	s := NewStore(nil, nil, nil)
	s.AddItem(product("A", 500), 1)
	s.AddItem(product("A", 900), 1)

	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, domain.Money(500), lines[0].UnitPrice)
	assert.Equal(t, domain.Money(1000), s.Total())
}

func TestStore_AddClampsQuantity(t *testing.T) {
	s := NewStore(nil, nil, nil)
	s.AddItem(product("A", 500), 0)
	s.AddItem(product("B", 500), -4)

	assert.Equal(t, 1, s.Quantity("A"))
	assert.Equal(t, 1, s.Quantity("B"))
}

func TestStore_QuantitySaturates(t *testing.T) {
	s := NewStore(nil, nil, nil)
	s.AddItem(product("A", 500), math.MaxInt)
	s.AddItem(product("A", 500), 1)
	assert.Equal(t, MaxQuantity, s.Quantity("A"))

	s.AddItem(product("B", 500), MaxQuantity-1)
	s.AddItem(product("B", 500), 5)
	assert.Equal(t, MaxQuantity, s.Quantity("B"))

	s.SetQuantity("B", math.MaxInt)
	assert.Equal(t, MaxQuantity, s.Quantity("B"))

	restored := NewStore([]domain.CartLine{{ProductID: "C", UnitPrice: 1, Quantity: math.MaxInt}}, nil, nil)
	assert.Equal(t, MaxQuantity, restored.Quantity("C"))
}

func TestStore_SetQuantity(t *testing.T) {
	sink := &recordingSink{}
	s := NewStore(nil, sink, nil)
	s.AddItem(product("A", 500), 1)

	s.SetQuantity("A", 5)
	assert.Equal(t, 5, s.Quantity("A"))
	assert.Equal(t, domain.Money(2500), s.Total())

	// unknown id is ignored and not persisted
	before := sink.count()
	s.SetQuantity("missing", 3)
	assert.Equal(t, before, sink.count())
	assert.Equal(t, 1, s.Len())
}

func TestStore_SetQuantityZeroIsRemove(t *testing.T) {
	a := NewStore(nil, nil, nil)
	b := NewStore(nil, nil, nil)
	for _, s := range []*Store{a, b} {
		s.AddItem(product("A", 500), 3)
		s.AddItem(product("B", 200), 1)
	}

	a.SetQuantity("A", 0)
	b.RemoveItem("A")

	assert.Equal(t, b.Lines(), a.Lines())
	assert.Equal(t, b.Total(), a.Total())
}

func TestStore_RemoveMissingIsNoop(t *testing.T) {
	sink := &recordingSink{}
	s := NewStore(nil, sink, nil)
	s.RemoveItem("nothing")

	assert.Equal(t, 0, sink.count())
	assert.Equal(t, uint64(0), s.Version())
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"3", 3},
		{" 7 ", 7},
		{"3.7", 3},
		{"12abc", 12},
		{"abc", 0},
		{"", 0},
		{"-2", -2},
		{"+4", 4},
		{"99999999999", MaxQuantity},
		{"-99999999999", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseQuantity(tt.in))
		})
	}
}

func TestStore_SetQuantityInput(t *testing.T) {
	s := NewStore(nil, nil, nil)
	s.AddItem(product("A", 500), 1)

	s.SetQuantityInput("A", "4.9")
	assert.Equal(t, 4, s.Quantity("A"))

	s.SetQuantityInput("A", "abc")
	assert.Equal(t, 0, s.Len())
}

func TestStore_LinesSorted(t *testing.T) {
	s := NewStore(nil, nil, nil)
	s.AddItem(product("c", 1), 1)
	s.AddItem(product("a", 1), 1)
	s.AddItem(product("b", 1), 1)

	var ids []string
	for _, l := range s.Lines() {
		ids = append(ids, l.ProductID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestStore_RehydrateSkipsInvalidLines(t *testing.T) {
	sink := &recordingSink{}
	s := NewStore([]domain.CartLine{
		{ProductID: "A", UnitPrice: 500, Quantity: 2},
		{ProductID: "A", UnitPrice: 900, Quantity: 1},
		{ProductID: "B", UnitPrice: 100, Quantity: 0},
		{ProductID: "", UnitPrice: 100, Quantity: 1},
	}, sink, nil)

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, domain.Money(1000), s.Total())
	assert.Equal(t, 0, sink.count(), "rehydration must not write back")
}

func TestStore_ClearIfVersion(t *testing.T) {
	s := NewStore(nil, nil, nil)
	s.AddItem(product("A", 500), 1)
	_, v := s.Snapshot()

	s.AddItem(product("B", 500), 1)
	assert.False(t, s.ClearIfVersion(v))
	assert.Equal(t, 2, s.Len())

	assert.True(t, s.ClearIfVersion(s.Version()))
	assert.Equal(t, 0, s.Len())
}

func TestStore_Metrics(t *testing.T) {
	m := metrics.NewRegistry()
	s := NewStore(nil, nil, m)
	s.AddItem(product("A", 500), 1)
	s.AddItem(product("A", 500), 1)
	s.Clear()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CartMutations.WithLabelValues("add")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CartMutations.WithLabelValues("clear")))
}
