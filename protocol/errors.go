package protocol

import "errors"

// Kind classifies an Error by how the connection should react to it.
type Kind uint8

const (
	// KindProtocol errors come from the decoder, the connection cannot recover
	// from them and is closed after replying.
	KindProtocol Kind = iota + 1

	// KindRequest errors are raised while turning a decoded value into a
	// Request. The client gets an error reply and the connection carries on.
	KindRequest

	// KindExecution errors are raised while executing a valid Request.
	KindExecution
)

func (k Kind) String() string {
	switch k {
	case KindProtocol:
		return "protocol"
	case KindRequest:
		return "request"
	case KindExecution:
		return "execution"
	default:
		return "unknown"
	}
}

// Error is the error type returned by the decoder, ParseRequest and the
// executor. Msg is what the client sees, Detail is optional context.
type Error struct {
	Kind   Kind
	Msg    string
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Msg
	}

	return e.Msg + ": " + e.Detail
}

// Is matches any *Error of the same Kind whose Msg is equal, or any *Error of
// the same Kind when the target has no Msg.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t.Kind == e.Kind && (t.Msg == "" || t.Msg == e.Msg)
}

// WithDetail returns a copy of e carrying detail.
func (e *Error) WithDetail(detail string) *Error {
	return &Error{Kind: e.Kind, Msg: e.Msg, Detail: detail}
}

// Reply converts e into the ErrorReply sent to the client.
func (e *Error) Reply() ErrorReply {
	return ErrorReply{Message: e.Msg, Detail: e.Detail}
}

var (
	// ErrProtocol matches every decoder error.
	ErrProtocol = &Error{Kind: KindProtocol}

	// ErrRequest matches every request parsing error.
	ErrRequest = &Error{Kind: KindRequest}

	// ErrExecution matches every execution error.
	ErrExecution = &Error{Kind: KindExecution}

	ErrInvalidInteger    = &Error{Kind: KindProtocol, Msg: "Invalid Integer"}
	ErrInvalidUTF8       = &Error{Kind: KindProtocol, Msg: "Invalid UTF-8 line"}
	ErrExpectedBulk      = &Error{Kind: KindProtocol, Msg: "Expected bulk string inside array"}
	ErrMissingTerminator = &Error{Kind: KindProtocol, Msg: "Missing CRLF after bulk string"}
	ErrUnknownType       = &Error{Kind: KindProtocol, Msg: "Unknown type prefix"}
	ErrLimitExceeded     = &Error{Kind: KindProtocol, Msg: "Protocol limit exceeded"}

	ErrNoCommand          = &Error{Kind: KindRequest, Msg: "No command specified"}
	ErrUnknownCommand     = &Error{Kind: KindRequest, Msg: "Invalid command"}
	ErrNotEnoughArguments = &Error{Kind: KindRequest, Msg: "Not enough arguments"}
	ErrInvalidArgument    = &Error{Kind: KindRequest, Msg: "Invalid argument, must be BulkString"}

	ErrNotImplemented = &Error{Kind: KindExecution, Msg: "NOT_IMPLEMENTED"}
)

// KindOf returns the Kind of the first *Error in err's chain, or 0 if there
// is none.
func KindOf(err error) Kind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}

	return 0
}

// ReplyFor converts err into the ErrorReply sent to the client. Errors that
// are not *Error are reported with their message.
func ReplyFor(err error) ErrorReply {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Reply()
	}

	return ErrorReply{Message: err.Error()}
}
