package protocol

import (
	"io"
	"strconv"
)

var NullTerminal = []byte("$-1\r\n")

// AppendValue appends the wire encoding of v to dst and returns the extended
// slice. It never fails for the Value implementations of this package.
func AppendValue(dst []byte, v Value) []byte {
	switch val := v.(type) {
	case Null:
		return append(dst, NullTerminal...)

	case SimpleString:
		return appendLine(dst, TypeSimpleString, string(val))

	case ErrorReply:
		return appendLine(dst, TypeError, val.String())

	case Integer:
		dst = append(dst, byte(TypeInteger))
		dst = strconv.AppendInt(dst, int64(val), 10)
		return append(dst, Terminal...)

	case BulkString:
		dst = appendHeader(dst, TypeBulkString, len(val))
		dst = append(dst, val...)
		return append(dst, Terminal...)

	case Array:
		dst = appendHeader(dst, TypeArray, len(val))
		for _, elem := range val {
			dst = AppendValue(dst, elem)
		}

		return dst

	case nil:
		return append(dst, NullTerminal...)

	default:
		panic("protocol: unknown value type " + v.Type().String())
	}
}

// Encode returns the wire encoding of v.
func Encode(v Value) []byte {
	return AppendValue(nil, v)
}

// WriteValue encodes v and writes it to w in a single Write call.
func WriteValue(w io.Writer, v Value) error {
	_, err := w.Write(Encode(v))
	return err
}

// appendLine writes a single line reply. CR and LF would end the line early,
// they are written as spaces.
func appendLine(dst []byte, t Type, s string) []byte {
	dst = append(dst, byte(t))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\r', '\n':
			dst = append(dst, ' ')
		default:
			dst = append(dst, c)
		}
	}

	return append(dst, Terminal...)
}

func appendHeader(dst []byte, t Type, n int) []byte {
	dst = append(dst, byte(t))
	dst = strconv.AppendInt(dst, int64(n), 10)
	return append(dst, Terminal...)
}
