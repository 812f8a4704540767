package vm

import "fmt"

// OverflowPolicy decides what a polymorphic cache does when it would hold
// more than its capacity.
type OverflowPolicy uint8

const (
	// OverflowMegamorphic gives up on inline caching for the site.
	OverflowMegamorphic OverflowPolicy = iota
	// OverflowEvictLRU drops the least recently used tuple.
	OverflowEvictLRU
)

func (p OverflowPolicy) String() string {
	switch p {
	case OverflowMegamorphic:
		return "megamorphic"
	case OverflowEvictLRU:
		return "evict-lru"
	}
	return "unknown"
}

// ParseOverflowPolicy parses "megamorphic" or "evict-lru".
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch s {
	case "", "megamorphic":
		return OverflowMegamorphic, nil
	case "evict-lru", "lru":
		return OverflowEvictLRU, nil
	}
	return 0, fmt.Errorf("unknown overflow policy %q (want megamorphic or evict-lru)", s)
}

// Config holds the tunables of a Runtime. It is passed explicitly; nothing
// in the package reads ambient configuration.
type Config struct {
	Name        string         // used in log messages
	PICSize     int            // inline cache capacity, 1..MaxPICEntries
	Overflow    OverflowPolicy // what a full cache does
	MaxDepth    int            // maximum nested dispatch depth
	GlobalCache bool           // megamorphic sites consult the runtime MethodCache
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		Name:        "garnet",
		PICSize:     DefaultPICEntries,
		Overflow:    OverflowMegamorphic,
		MaxDepth:    10000,
		GlobalCache: true,
	}
}

// Validate reports configuration values outside their allowed ranges.
func (c Config) Validate() error {
	if c.PICSize < 1 || c.PICSize > MaxPICEntries {
		return fmt.Errorf("pic size %d out of range 1..%d", c.PICSize, MaxPICEntries)
	}
	if c.Overflow > OverflowEvictLRU {
		return fmt.Errorf("invalid overflow policy %d", c.Overflow)
	}
	if c.MaxDepth < 1 {
		return fmt.Errorf("max depth must be positive, got %d", c.MaxDepth)
	}
	return nil
}
