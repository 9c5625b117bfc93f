package selection

// OperationKind is the GraphQL operation type.
type OperationKind string

const (
	Query        OperationKind = "query"
	Mutation     OperationKind = "mutation"
	Subscription OperationKind = "subscription"
)

// Root record keys.
const (
	QueryRootKey        = "QUERY_ROOT"
	MutationRootKey     = "MUTATION_ROOT"
	SubscriptionRootKey = "SUBSCRIPTION_ROOT"
)

// Operation is an executable GraphQL operation: its document text for the
// transport, its variables and its root selection set type.
type Operation struct {
	Kind      OperationKind
	Name      string
	Document  string
	Variables map[string]any
	Data      SelectionSet
}

// RootKey is the record key the operation's root fields are stored under.
func (o *Operation) RootKey() string {
	switch o.Kind {
	case Mutation:
		return MutationRootKey
	case Subscription:
		return SubscriptionRootKey
	default:
		return QueryRootKey
	}
}

// WithVariables returns a copy of the operation bound to vars.
func (o *Operation) WithVariables(vars map[string]any) *Operation {
	cp := *o
	cp.Variables = vars
	return &cp
}
