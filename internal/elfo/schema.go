package elfo

// Schema describes how to run the actors of one Group: what exec function
// drives each child, how children are addressed (the Router), how big
// each child's mailbox is, and how to construct a typed config value from
// the raw YAML node handed to the group. Built with functional options
// rather than the fluent `.Config[C]().Router().Exec()` chain a
// non-generic-constrained language could offer, since Go can't introduce a
// new type parameter mid-method-chain; this mirrors the teacher's own
// functional-options pattern (RegisterOption/WithCleanupTimeout in
// system.go) for the same reason.
type Schema struct {
	exec        ExecFunc
	router      Router
	mailboxSize int
	newConfig   func() any
}

// SchemaOption configures a Schema at construction time.
type SchemaOption func(*Schema)

// NewSchema builds a Schema around exec, applying any options.
func NewSchema(exec ExecFunc, opts ...SchemaOption) *Schema {
	s := &Schema{
		exec:        exec,
		router:      RoundRobin(),
		mailboxSize: DefaultMailboxCapacity,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithRouter overrides the default round-robin Router.
func WithRouter(r Router) SchemaOption {
	return func(s *Schema) { s.router = r }
}

// WithMailboxSize overrides DefaultMailboxCapacity for this group's
// children.
func WithMailboxSize(n int) SchemaOption {
	return func(s *Schema) { s.mailboxSize = n }
}

// WithConfigFactory supplies a zero-value constructor for this group's
// config type, used by ApplyConfig to decode the raw YAML node for this
// group; the decoded value is what Context.Config returns.
func WithConfigFactory(f func() any) SchemaOption {
	return func(s *Schema) { s.newConfig = f }
}
