package vm

import "sync"

// ---------------------------------------------------------------------------
// SymbolTable: Interned symbols
// ---------------------------------------------------------------------------

// Symbol is an interned name. Two symbols are equal exactly when their
// names are, within one SymbolTable.
type Symbol uint32

// SymbolTable interns symbol strings to unique IDs.
type SymbolTable struct {
	mu     sync.RWMutex
	byName map[string]Symbol
	byID   []string
}

// NewSymbolTable creates a new empty symbol table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		byName: make(map[string]Symbol),
		byID:   make([]string, 0, 256),
	}
}

// Intern returns the symbol for name, creating it if needed.
func (st *SymbolTable) Intern(name string) Symbol {
	// Fast path: read-only lookup
	st.mu.RLock()
	if id, ok := st.byName[name]; ok {
		st.mu.RUnlock()
		return id
	}
	st.mu.RUnlock()

	st.mu.Lock()
	defer st.mu.Unlock()

	// Double-check after acquiring write lock
	if id, ok := st.byName[name]; ok {
		return id
	}

	id := Symbol(len(st.byID))
	st.byName[name] = id
	st.byID = append(st.byID, name)
	return id
}

// Lookup returns the symbol for name without creating one.
func (st *SymbolTable) Lookup(name string) (Symbol, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	id, ok := st.byName[name]
	return id, ok
}

// Name returns the symbol's name, or "" if it was not interned here.
func (st *SymbolTable) Name(s Symbol) string {
	st.mu.RLock()
	defer st.mu.RUnlock()

	if int(s) >= len(st.byID) {
		return ""
	}
	return st.byID[s]
}

// Len returns the number of interned symbols.
func (st *SymbolTable) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.byID)
}
