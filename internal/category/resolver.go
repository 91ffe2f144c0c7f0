package category

import (
	"log/slog"

	"github.com/Veraticus/spice-statements/internal/model"
)

// Defaults for the bank export's transfer-like native categories.
var (
	// DefaultQualifiedCategories are native categories too generic to look
	// up alone; their description is appended to the lookup key.
	DefaultQualifiedCategories = []string{"Переводы", "НКО"}
	// DefaultExcludedKeys mark transfers between the owner's own accounts.
	DefaultExcludedKeys = []string{"Переводы: Перевод между счетами"}
)

// Resolver assigns categories from a Dictionary.
type Resolver struct {
	dict            Dictionary
	qualified       map[string]bool
	excluded        map[string]bool
	defaultCategory string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithQualifiedCategories replaces the set of native categories whose lookup
// key is "<native category>: <description>".
func WithQualifiedCategories(categories ...string) Option {
	return func(r *Resolver) {
		r.qualified = toSet(categories)
	}
}

// WithExcludedKeys replaces the set of lookup keys identifying internal
// transfers. Matching rows are removed.
func WithExcludedKeys(keys ...string) Option {
	return func(r *Resolver) {
		r.excluded = toSet(keys)
	}
}

// WithDefaultCategory sets the category for rows the dictionary cannot resolve.
func WithDefaultCategory(category string) Option {
	return func(r *Resolver) {
		if category != "" {
			r.defaultCategory = category
		}
	}
}

// NewResolver creates a resolver. A nil dictionary resolves every row to the
// default category.
func NewResolver(dict Dictionary, opts ...Option) *Resolver {
	if dict == nil {
		dict = Dictionary{}
	}
	r := &Resolver{
		dict:            dict,
		qualified:       toSet(DefaultQualifiedCategories),
		excluded:        toSet(DefaultExcludedKeys),
		defaultCategory: model.DefaultCategory,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Stats counts the outcome of one Resolve call.
type Stats struct {
	Matched   int
	Defaulted int
	Excluded  int
}

// Key returns the dictionary key for a transaction.
func (r *Resolver) Key(txn *model.Transaction) string {
	switch {
	case r.qualified[txn.NativeCategory]:
		return txn.NativeCategory + ": " + txn.Description
	case txn.NativeCategory != "":
		return txn.NativeCategory
	default:
		return txn.Description
	}
}

// Resolve sets Category on every row and drops internal transfers. The
// returned slice reuses the backing array of txns.
func (r *Resolver) Resolve(txns []model.Transaction) ([]model.Transaction, Stats) {
	var stats Stats
	kept := txns[:0]

	for i := range txns {
		txn := txns[i]
		key := r.Key(&txn)

		if r.excluded[key] {
			stats.Excluded++
			continue
		}

		if category, ok := r.dict.Lookup(key); ok {
			txn.Category = category
			stats.Matched++
		} else {
			txn.Category = r.defaultCategory
			stats.Defaulted++
		}

		kept = append(kept, txn)
	}

	slog.Debug("Resolved categories",
		"matched", stats.Matched,
		"defaulted", stats.Defaulted,
		"excluded", stats.Excluded)

	return kept, stats
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
