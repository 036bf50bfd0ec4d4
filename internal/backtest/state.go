package backtest

// dayBudget counts the posts processed on the day being replayed.
// Every post taken from the feed counts, whether or not it qualifies.
type dayBudget struct {
	limit     int
	processed int
}

func newDayBudget(limit int) *dayBudget {
	return &dayBudget{limit: limit}
}

// exhausted reports whether the day's budget is used up. A limit <= 0 means unlimited.
func (b *dayBudget) exhausted() bool {
	return b.limit > 0 && b.processed >= b.limit
}

func (b *dayBudget) consume() {
	b.processed++
}

// SymbolSet is a set of symbols that remembers insertion order.
type SymbolSet struct {
	order []string
	seen  map[string]struct{}
}

// NewSymbolSet creates an empty SymbolSet.
func NewSymbolSet() *SymbolSet {
	return &SymbolSet{seen: make(map[string]struct{})}
}

// Add inserts symbol if it is not already present.
func (s *SymbolSet) Add(symbol string) {
	if _, ok := s.seen[symbol]; ok {
		return
	}
	s.seen[symbol] = struct{}{}
	s.order = append(s.order, symbol)
}

// Contains reports whether symbol is present.
func (s *SymbolSet) Contains(symbol string) bool {
	_, ok := s.seen[symbol]
	return ok
}

// Len returns the number of symbols.
func (s *SymbolSet) Len() int { return len(s.order) }

// Slice returns the symbols in insertion order.
func (s *SymbolSet) Slice() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
