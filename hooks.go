package aside

// Hooks are lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking; the controller calls them on
// hot paths. namespace is the controller's prefix.
type Hooks interface {
	// A read reached the backend and resolved hits/misses entries.
	Lookup(namespace string, hits, misses int)

	// A backend call failed and the controller failed open.
	// count is the number of keys or fields the call covered.
	BackendFailure(namespace string, action Action, count int, err error)

	// A strategy invoked its compute function for count missing entries
	// (0 for a field collection in ALL mode, where the count is unknown).
	// strategy ∈ {"single_value", "keyed_map", "field_collection"}
	Compute(namespace, strategy string, count int)
}

// NopHooks is the default no-op.
type NopHooks struct{}

func (NopHooks) Lookup(string, int, int)                   {}
func (NopHooks) BackendFailure(string, Action, int, error) {}
func (NopHooks) Compute(string, string, int)               {}

const (
	strategySingle = "single_value"
	strategyKeyed  = "keyed_map"
	strategyFields = "field_collection"
)
