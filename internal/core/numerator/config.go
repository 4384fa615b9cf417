// Package numerator provides domain contracts for document auto-numbering.
package numerator

// Config holds numbering configuration.
type Config struct {
	// Prefix added to all numbers (e.g., "VD", "TR", "SO")
	Prefix string

	// IncludeYear adds year to the number
	IncludeYear bool

	// PadWidth is the minimum number width (default 5)
	PadWidth int

	// ResetPeriod: "year", "month", "never"
	ResetPeriod string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:      prefix,
		IncludeYear: true,
		PadWidth:    5,
		ResetPeriod: "year",
	}
}

// Document number prefixes used across the platform.
const (
	PrefixSale         = "VD"  // sales
	PrefixTransfer     = "TR"  // stock transfers
	PrefixServiceOrder = "SO"  // customer service orders
	PrefixInternalOS   = "OSI" // internal preparation orders
	PrefixEvaluation   = "AV"  // trade-in evaluations
	PrefixReturn       = "DEV" // returns
	PrefixWarehouse    = "WH"  // warehouse codes
	PrefixProduct      = "PRD" // product codes
)
