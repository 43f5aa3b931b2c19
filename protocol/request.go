package protocol

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// maxQuotedName bounds how much of an unknown command name is echoed back.
const maxQuotedName = 64

// Request is a validated client command. The set of implementations is
// closed, consumers switch over the concrete types.
type Request interface {
	GetCommand() Command
}

type PingRequest struct {
	// Message is echoed back when HasMessage is set.
	Message    BinaryString
	HasMessage bool
}

func (q *PingRequest) GetCommand() Command {
	return PING
}

type GetRequest struct {
	Key BinaryString
}

func (q *GetRequest) GetCommand() Command {
	return GET
}

type SetRequest struct {
	Key   BinaryString
	Value BinaryString
}

func (q *SetRequest) GetCommand() Command {
	return SET
}

type AppendRequest struct {
	Key   BinaryString
	Value BinaryString
}

func (q *AppendRequest) GetCommand() Command {
	return APPEND
}

// KeysRequest lists every key. Pattern is accepted for compatibility but no
// filtering is done with it.
type KeysRequest struct {
	Pattern BinaryString
}

func (q *KeysRequest) GetCommand() Command {
	return KEYS
}

type ExistsRequest struct {
	Key BinaryString
}

func (q *ExistsRequest) GetCommand() Command {
	return EXISTS
}

type CommandRequest struct{}

func (q *CommandRequest) GetCommand() Command {
	return COMMAND
}

var _ Request = (*PingRequest)(nil)
var _ Request = (*GetRequest)(nil)
var _ Request = (*SetRequest)(nil)
var _ Request = (*AppendRequest)(nil)
var _ Request = (*KeysRequest)(nil)
var _ Request = (*ExistsRequest)(nil)
var _ Request = (*CommandRequest)(nil)

// ParseRequest turns a decoded value into a Request. Only an Array whose first
// element names a known command is accepted, the command name is matched case
// insensitively and arguments are taken positionally. Elements past the ones
// a command needs are ignored.
//
// Errors are *Error values of KindRequest.
func ParseRequest(v Value) (Request, error) {
	if v == nil {
		return nil, ErrUnknownCommand
	}

	arr, ok := v.(Array)
	if !ok {
		return nil, ErrUnknownCommand.WithDetail("expected an array, got " + v.Type().String())
	}

	args := arguments(arr)

	name, ok := args.name()
	if !ok || name == "" {
		return nil, ErrNoCommand
	}

	switch Command(strings.ToUpper(name)) {
	case GET:
		key, err := args.next()
		if err != nil {
			return nil, err
		}

		return &GetRequest{Key: key}, nil

	case SET:
		key, err := args.next()
		if err != nil {
			return nil, err
		}

		value, err := args.next()
		if err != nil {
			return nil, err
		}

		return &SetRequest{Key: key, Value: value}, nil

	case APPEND:
		key, err := args.next()
		if err != nil {
			return nil, err
		}

		value, err := args.next()
		if err != nil {
			return nil, err
		}

		return &AppendRequest{Key: key, Value: value}, nil

	case PING:
		msg, err := args.next()
		if err != nil {
			return &PingRequest{}, nil
		}

		return &PingRequest{Message: msg, HasMessage: true}, nil

	case KEYS:
		pattern, err := args.next()
		if err != nil {
			return nil, err
		}

		return &KeysRequest{Pattern: pattern}, nil

	case EXISTS:
		key, err := args.next()
		if err != nil {
			return nil, err
		}

		return &ExistsRequest{Key: key}, nil

	case COMMAND:
		return &CommandRequest{}, nil

	default:
		return nil, ErrUnknownCommand.WithDetail(quoteName(name))
	}
}

// quoteName renders a client supplied command name for an error reply. Control
// characters are escaped so the name always fits on the reply line, and long
// names are cut short.
func quoteName(name string) string {
	truncated := len(name) > maxQuotedName
	if truncated {
		name = name[:maxQuotedName]
	}

	q := strconv.Quote(name)
	q = "'" + q[1:len(q)-1]
	if truncated {
		q += "..."
	}

	return q + "'"
}

// arguments pops elements off the front of a command array.
type arguments Array

func (a *arguments) pop() (Value, bool) {
	if len(*a) == 0 {
		return nil, false
	}

	v := (*a)[0]
	*a = (*a)[1:]

	return v, true
}

// name pops the command name. Anything but a bulk string holding valid text
// counts as no name at all.
func (a *arguments) name() (string, bool) {
	v, ok := a.pop()
	if !ok {
		return "", false
	}

	bulk, ok := v.(BulkString)
	if !ok || !utf8.Valid(bulk) {
		return "", false
	}

	return string(bulk), true
}

// next pops a required bulk string argument.
func (a *arguments) next() (BinaryString, error) {
	v, ok := a.pop()
	if !ok {
		return nil, ErrNotEnoughArguments
	}

	bulk, ok := v.(BulkString)
	if !ok {
		return nil, ErrInvalidArgument.WithDetail("got " + v.Type().String())
	}

	return BinaryString(bulk), nil
}
