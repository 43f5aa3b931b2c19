package protocol

import (
	"bytes"
	"fmt"
	"unicode/utf8"
)

// Type identifies the variant of a Value. The byte is the RESP prefix used on
// the wire for that variant, Null has no prefix of its own.
type Type byte

const (
	TypeSimpleString Type = '+'
	TypeError        Type = '-'
	TypeInteger      Type = ':'
	TypeBulkString   Type = '$'
	TypeArray        Type = '*'
	TypeNull         Type = 0
)

func (t Type) String() string {
	switch t {
	case TypeSimpleString:
		return "SimpleString"
	case TypeError:
		return "Error"
	case TypeInteger:
		return "Integer"
	case TypeBulkString:
		return "BulkString"
	case TypeArray:
		return "Array"
	case TypeNull:
		return "Null"
	default:
		return fmt.Sprintf("Type(%d)", byte(t))
	}
}

// BinaryString is an owned, binary safe sequence of bytes. It is used for keys,
// values and bulk string payloads and is never assumed to be valid text.
type BinaryString []byte

// Append appends other to b in place and returns the new length. The backing
// array is reused when it has room.
func (b *BinaryString) Append(other BinaryString) int {
	*b = append(*b, other...)
	return len(*b)
}

// Equal reports whether b and other hold exactly the same bytes.
func (b BinaryString) Equal(other BinaryString) bool {
	return bytes.Equal(b, other)
}

// Clone returns a copy of b that shares no memory with it.
func (b BinaryString) Clone() BinaryString {
	if b == nil {
		return nil
	}

	c := make(BinaryString, len(b))
	copy(c, b)
	return c
}

// String renders b as text when it is valid UTF-8 and as a quoted byte string
// otherwise.
func (b BinaryString) String() string {
	if utf8.Valid(b) {
		return string(b)
	}

	return fmt.Sprintf("%q", []byte(b))
}

// Value is one RESP protocol value. The set of implementations is closed:
// SimpleString, ErrorReply, Integer, BulkString, Array and Null.
type Value interface {
	Type() Type
	isValue()
}

type SimpleString string

type ErrorReply struct {
	Message string
	Detail  string
}

type Integer int64

type BulkString BinaryString

type Array []Value

type Null struct{}

func (SimpleString) Type() Type { return TypeSimpleString }
func (ErrorReply) Type() Type   { return TypeError }
func (Integer) Type() Type      { return TypeInteger }
func (BulkString) Type() Type   { return TypeBulkString }
func (Array) Type() Type        { return TypeArray }
func (Null) Type() Type         { return TypeNull }

func (SimpleString) isValue() {}
func (ErrorReply) isValue()   {}
func (Integer) isValue()      {}
func (BulkString) isValue()   {}
func (Array) isValue()        {}
func (Null) isValue()         {}

func (e ErrorReply) String() string {
	if e.Detail == "" {
		return e.Message
	}

	return e.Message + " " + e.Detail
}

func (b BulkString) String() string {
	return BinaryString(b).String()
}

// NewCommand builds the Array of BulkStrings a client sends for a command.
func NewCommand(args ...[]byte) Array {
	arr := make(Array, 0, len(args))
	for _, arg := range args {
		arr = append(arr, BulkString(BinaryString(arg).Clone()))
	}

	return arr
}

// Equal reports whether a and b are the same variant holding the same data.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case SimpleString:
		bv, ok := b.(SimpleString)
		return ok && av == bv

	case ErrorReply:
		bv, ok := b.(ErrorReply)
		return ok && av == bv

	case Integer:
		bv, ok := b.(Integer)
		return ok && av == bv

	case BulkString:
		bv, ok := b.(BulkString)
		return ok && bytes.Equal(av, bv)

	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}

		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}

		return true

	case Null:
		_, ok := b.(Null)
		return ok

	default:
		return false
	}
}

var (
	_ Value = SimpleString("")
	_ Value = ErrorReply{}
	_ Value = Integer(0)
	_ Value = BulkString(nil)
	_ Value = Array(nil)
	_ Value = Null{}
)
