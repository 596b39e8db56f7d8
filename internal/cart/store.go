package cart

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/metrics"
)

// Sink receives the full cart after every mutation.
type Sink interface {
	Persist(lines []domain.CartLine)
}

type nopSink struct{}

func (nopSink) Persist([]domain.CartLine) {}

// Store is the authoritative cart for one session. It holds at most one line
// per product id and never a line with quantity below one.
type Store struct {
	mu      sync.Mutex
	lines   map[string]domain.CartLine
	version uint64
	sink    Sink
	metrics *metrics.Registry
}

// NewStore builds a store from previously persisted lines. Rehydration does
// not write back to the sink.
func NewStore(initial []domain.CartLine, sink Sink, m *metrics.Registry) *Store {
	if sink == nil {
		sink = nopSink{}
	}
	s := &Store{
		lines:   make(map[string]domain.CartLine, len(initial)),
		sink:    sink,
		metrics: m,
	}
	for _, l := range initial {
		if l.ProductID == "" || l.Quantity < 1 {
			continue
		}
		if _, dup := s.lines[l.ProductID]; dup {
			continue
		}
		l.Quantity = clampQuantity(l.Quantity)
		s.lines[l.ProductID] = l
	}
	return s
}

// AddItem adds quantity units of p. Quantities below one count as one and the
// line saturates at MaxQuantity. An existing line keeps its original unit
// price.
func (s *Store) AddItem(p domain.Product, quantity int) {
	if quantity < 1 {
		quantity = 1
	}
	quantity = clampQuantity(quantity)

	s.mu.Lock()
	defer s.mu.Unlock()

	if line, ok := s.lines[p.ID]; ok {
		if line.Quantity > MaxQuantity-quantity {
			line.Quantity = MaxQuantity
		} else {
			line.Quantity += quantity
		}
		s.lines[p.ID] = line
	} else {
		s.lines[p.ID] = domain.CartLine{
			ProductID: p.ID,
			UnitPrice: p.Price,
			Quantity:  quantity,
			Name:      p.Name,
			Photo:     p.Photo,
		}
	}
	s.commit("add")
}

func (s *Store) RemoveItem(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lines[productID]; !ok {
		return
	}
	delete(s.lines, productID)
	s.commit("remove")
}

// SetQuantity overwrites a line's quantity. Zero or less removes the line,
// more than MaxQuantity saturates. Unknown ids are ignored.
func (s *Store) SetQuantity(productID string, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, ok := s.lines[productID]
	if !ok {
		return
	}
	if quantity <= 0 {
		delete(s.lines, productID)
		s.commit("remove")
		return
	}
	quantity = clampQuantity(quantity)
	if line.Quantity == quantity {
		return
	}
	line.Quantity = quantity
	s.lines[productID] = line
	s.commit("set_quantity")
}

var leadingInt = regexp.MustCompile(`^[+-]?[0-9]+`)

// SetQuantityInput applies a quantity typed by a user. It keeps the leading
// integer of the input, so "3.7" is 3 and "abc" is 0.
func (s *Store) SetQuantityInput(productID, raw string) {
	s.SetQuantity(productID, ParseQuantity(raw))
}

// ParseQuantity never fails: unparsable input is 0 and out of range input
// saturates.
func ParseQuantity(raw string) int {
	digits := leadingInt.FindString(strings.TrimSpace(raw))
	if digits == "" {
		return 0
	}
	n, err := strconv.ParseInt(digits, 10, 32)
	if err != nil {
		if strings.HasPrefix(digits, "-") {
			return 0
		}
		return MaxQuantity
	}
	return int(n)
}

// MaxQuantity is the largest quantity a line can hold. Larger quantities
// saturate.
const MaxQuantity = 1<<31 - 1

func clampQuantity(n int) int {
	if n > MaxQuantity {
		return MaxQuantity
	}
	return n
}

// Clear empties the cart. The empty cart is still persisted.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

// ClearIfVersion clears the cart only if nothing changed since version was
// read. It reports whether the cart was cleared.
func (s *Store) ClearIfVersion(version uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version != version {
		return false
	}
	s.clearLocked()
	return true
}

func (s *Store) clearLocked() {
	s.lines = make(map[string]domain.CartLine)
	s.commit("clear")
}

func (s *Store) Total() domain.Money {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total domain.Money
	for _, l := range s.lines {
		total += l.Subtotal()
	}
	return total
}

// Lines returns a copy of the cart ordered by product id.
func (s *Store) Lines() []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked()
}

// Snapshot returns the lines and the version they belong to.
func (s *Store) Snapshot() ([]domain.CartLine, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked(), s.version
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}

// Quantity is zero for products not in the cart.
func (s *Store) Quantity(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lines[productID].Quantity
}

// Version increases on every mutation.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

func (s *Store) sortedLocked() []domain.CartLine {
	out := make([]domain.CartLine, 0, len(s.lines))
	for _, l := range s.lines {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

// commit must be called with mu held so writes reach the sink in mutation
// order.
func (s *Store) commit(op string) {
	s.version++
	s.metrics.CartMutation(op)
	s.sink.Persist(s.sortedLocked())
}
