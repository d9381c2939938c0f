package elfo

import "time"

// BaseMessage is embedded in every concrete message type to satisfy the
// unexported marker method of Message. This seals the Message interface:
// only types in this package, or types that embed BaseMessage, can
// implement it.
type BaseMessage struct{}

func (BaseMessage) messageMarker() {}

// Message is the sealed interface all actor payloads implement. The
// MessageType tag is the "type tag" of spec.md §9's type-erasure scheme;
// exec bodies dispatch on it (or on a Go type switch over the concrete
// type) to implement the pattern-match facility.
type Message interface {
	messageMarker()

	// MessageType returns a stable name for this message's type, used in
	// log lines and error messages.
	MessageType() string
}

// MessageKindTag discriminates the three envelope kinds.
type MessageKindTag int

const (
	// KindRegular is a fire-and-forget message with no response
	// expected.
	KindRegular MessageKindTag = iota

	// KindRequest carries a correlation id and a response Token; the
	// recipient is expected to call Context.Respond at most once.
	KindRequest

	// KindResponse is reserved for representing a fulfilled request
	// result as an Envelope; no code in this package builds one, since
	// responses are delivered directly through the RequestTable rather
	// than through a mailbox.
	KindResponse
)

// MessageKind is the metadata attached to an Envelope describing how it
// should be treated by the recipient and, for requests, how a reply should
// be routed back to the sender.
type MessageKind struct {
	Tag MessageKindTag

	// Sender is the address of the actor that sent this envelope. NULL
	// for envelopes produced by sources (Timer, Interval) rather than by
	// another actor.
	Sender Addr

	// Token is present iff Tag == KindRequest. It is the move-only
	// capability the recipient uses to answer via Context.Respond.
	Token *Token
}

// Envelope wraps a Message with delivery metadata. CreatedAt is used only
// for diagnostics (e.g. the inspector, out of scope here); ordering is
// determined by mailbox enqueue order, never by timestamp.
type Envelope struct {
	Message   Message
	Kind      MessageKind
	CreatedAt time.Time
}

// NewEnvelope wraps msg as a Regular envelope from sender.
func NewEnvelope(msg Message, sender Addr) Envelope {
	return Envelope{
		Message:   msg,
		Kind:      MessageKind{Tag: KindRegular, Sender: sender},
		CreatedAt: time.Now(),
	}
}

// newRequestEnvelope wraps msg as a Request envelope carrying token.
func newRequestEnvelope(msg Message, sender Addr, token *Token) Envelope {
	return Envelope{
		Message: msg,
		Kind: MessageKind{
			Tag:    KindRequest,
			Sender: sender,
			Token:  token,
		},
		CreatedAt: time.Now(),
	}
}

// IsRequest reports whether this envelope expects a response.
func (e Envelope) IsRequest() bool {
	return e.Kind.Tag == KindRequest
}

// --- Built-in messages exposed to actors (spec.md §6) ---

// ConfigUpdated is broadcast once a new configuration has been validated
// and installed. Actors typically re-read Context.Config() in response.
type ConfigUpdated struct {
	BaseMessage
}

// MessageType implements Message.
func (ConfigUpdated) MessageType() string { return "elfo.ConfigUpdated" }

// ValidateConfig is sent (as a request) to each group ahead of installing a
// new configuration. A group's exec body should type-assert Config into its
// own config type and reply with an error string on rejection, or "" to
// accept.
type ValidateConfig struct {
	BaseMessage

	// Config is the group's decoded configuration value, built by the
	// group's config factory (see internal/elfo/config.go).
	Config any

	// Source names where the configuration came from, for diagnostics.
	Source string
}

// MessageType implements Message.
func (ValidateConfig) MessageType() string { return "elfo.ValidateConfig" }

// ValidateConfigReply is the response to a ValidateConfig request. Empty
// Rejection means the group accepts the new configuration.
type ValidateConfigReply struct {
	Rejection string
}

// Terminate is a cooperative shutdown signal. Actors that want a chance to
// flush state before the mailbox is closed should treat this as a request
// to exit exec promptly; the supervisor follows up by closing the mailbox
// regardless of whether exec observes it.
type Terminate struct {
	BaseMessage
}

// MessageType implements Message.
func (Terminate) MessageType() string { return "elfo.Terminate" }
