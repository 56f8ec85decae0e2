package collection

import "slices"

// Item is one release in the collection, ready for display.
type Item struct {
	ID      int64
	Title   string
	Year    string
	Artists string
	Cover   string
}

// Caption renders the item as "Title (Year)", or just the title when the
// year is unknown.
func (i Item) Caption() string {
	if i.Year == "" {
		return i.Title
	}
	return i.Title + " (" + i.Year + ")"
}

// ItemSet holds items keyed by release id. An id is stored at most once and
// the first item seen for it wins. Insertion order is kept so that equal sort
// keys have a stable order.
type ItemSet struct {
	byID  map[int64]int
	items []Item
}

// NewItemSet returns an empty set.
func NewItemSet() *ItemSet {
	return &ItemSet{byID: make(map[int64]int)}
}

// Merge adds every item whose id is not yet present and returns how many
// were added.
func (s *ItemSet) Merge(batch []Item) int {
	if s.byID == nil {
		s.byID = make(map[int64]int)
	}

	added := 0
	for _, it := range batch {
		if _, ok := s.byID[it.ID]; ok {
			continue
		}
		s.byID[it.ID] = len(s.items)
		s.items = append(s.items, it)
		added++
	}
	return added
}

// Get returns the item stored for id.
func (s *ItemSet) Get(id int64) (Item, bool) {
	idx, ok := s.byID[id]
	if !ok {
		return Item{}, false
	}
	return s.items[idx], true
}

// Len returns the number of items.
func (s *ItemSet) Len() int {
	return len(s.items)
}

// Items returns a copy of the items in insertion order.
func (s *ItemSet) Items() []Item {
	return slices.Clone(s.items)
}
