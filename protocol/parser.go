package protocol

import (
	"bytes"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	DefaultMaxBulkLen  = 512 * 1024 * 1024
	DefaultMaxArrayLen = 1024 * 1024
	DefaultMaxLineLen  = 64 * 1024
	DefaultMaxDepth    = 32

	// inlineType marks a line that is read as an inline command rather than
	// as the payload of a typed line.
	inlineType Type = 1

	// preallocLimit caps how many element slots are reserved up front for an
	// array, the header alone is not trusted to size an allocation.
	preallocLimit = 1024
)

var Terminal = []byte("\r\n")

// Limits bounds what a Decoder accepts. Zero fields use the defaults.
type Limits struct {
	MaxBulkLen  int64
	MaxArrayLen int64
	MaxLineLen  int
	MaxDepth    int
}

func (l Limits) withDefaults() Limits {
	if l.MaxBulkLen <= 0 {
		l.MaxBulkLen = DefaultMaxBulkLen
	}

	if l.MaxArrayLen <= 0 {
		l.MaxArrayLen = DefaultMaxArrayLen
	}

	if l.MaxLineLen <= 0 {
		l.MaxLineLen = DefaultMaxLineLen
	}

	if l.MaxDepth <= 0 {
		l.MaxDepth = DefaultMaxDepth
	}

	return l
}

type stage uint8

const (
	// stageType waits for the type byte of the next value.
	stageType stage = iota

	// stageLine waits for the CRLF closing the current line.
	stageLine

	// stageBody waits for a bulk payload and its CRLF.
	stageBody
)

// frame is an array whose elements are still being read.
type frame struct {
	want  int64
	elems Array
}

// DecoderState is the progress made on the value currently being decoded. It
// lets a Decoder pick up exactly where the previous call stopped.
//
// All offsets are relative to the start of the buffer handed to Decode, which
// must begin with the first byte of the value being decoded on every call.
type DecoderState struct {
	stage stage

	// lineType is the type of the line being read in stageLine.
	lineType Type

	// pos is the offset of the first byte not yet consumed.
	pos int

	// scan is where the search for the next CRLF resumes, it is never behind
	// pos and never re-examines bytes already known not to hold a CRLF.
	scan int

	// bulkLen is the payload length awaited in stageBody.
	bulkLen int

	stack []frame
}

// Reset discards any progress, the next Decode starts a fresh value.
func (s *DecoderState) Reset() {
	s.stage = stageType
	s.lineType = 0
	s.pos = 0
	s.scan = 0
	s.bulkLen = 0

	for i := range s.stack {
		s.stack[i] = frame{}
	}
	s.stack = s.stack[:0]
}

// Decoder incrementally parses RESP values from a byte stream. It is not safe
// for concurrent use, every connection owns its own Decoder.
type Decoder struct {
	state  DecoderState
	limits Limits

	// replies selects the full RESP2 grammar instead of the command subset.
	replies bool
}

// NewDecoder returns a Decoder for client requests: arrays of bulk strings or
// inline commands.
func NewDecoder(limits Limits) *Decoder {
	return &Decoder{limits: limits.withDefaults()}
}

// NewReplyDecoder returns a Decoder accepting every RESP2 type at any depth,
// as found in server replies.
func NewReplyDecoder(limits Limits) *Decoder {
	return &Decoder{limits: limits.withDefaults(), replies: true}
}

// Decode parses at most one value from the front of buf.
//
// If buf does not yet hold a complete value Decode returns a nil Value, zero
// consumed bytes and a nil error. The caller must keep buf intact, append more
// data to it and call Decode again. Once a value is complete it is returned
// along with the number of bytes it occupied at the front of buf, which the
// caller then discards.
//
// Errors are *Error values of KindProtocol. The decoder resets itself after an
// error, but the stream is not expected to be usable afterwards.
func (d *Decoder) Decode(buf []byte) (Value, int, error) {
	v, err := d.decode(buf)
	if err != nil {
		d.state.Reset()
		return nil, 0, err
	}

	if v == nil {
		return nil, 0, nil
	}

	n := d.state.pos
	d.state.Reset()

	return v, n, nil
}

func (d *Decoder) decode(buf []byte) (Value, error) {
	s := &d.state

	for {
		var v Value

		switch s.stage {
		case stageType:
			if s.pos >= len(buf) {
				return nil, nil
			}

			if err := d.readType(buf[s.pos]); err != nil {
				return nil, err
			}

			continue

		case stageLine:
			line, ok, err := d.readLine(buf)
			if err != nil || !ok {
				return nil, err
			}

			v, err = d.handleLine(line)
			if err != nil {
				return nil, err
			}

		case stageBody:
			end := s.pos + s.bulkLen
			if len(buf) < end+len(Terminal) {
				return nil, nil
			}

			if !bytes.Equal(buf[end:end+len(Terminal)], Terminal) {
				return nil, ErrMissingTerminator
			}

			data := make([]byte, s.bulkLen)
			copy(data, buf[s.pos:end])

			s.pos = end + len(Terminal)
			v = BulkString(data)
		}

		if v == nil {
			// A header was read, handleLine already moved to the next stage.
			continue
		}

		if done := d.push(v); done != nil {
			return done, nil
		}

		s.stage = stageType
	}
}

// readType inspects the type byte at s.pos and moves to the line stage.
func (d *Decoder) readType(b byte) error {
	s := &d.state
	t := Type(b)

	switch {
	case !d.replies && len(s.stack) == 0:
		if t != TypeArray {
			// Inline commands keep their first byte, it is part of the line.
			s.lineType = inlineType
			s.scan = s.pos
			s.stage = stageLine
			return nil
		}

	case !d.replies:
		if t != TypeBulkString {
			return ErrExpectedBulk.WithDetail(strconv.QuoteRune(rune(b)))
		}

	default:
		switch t {
		case TypeSimpleString, TypeError, TypeInteger, TypeBulkString, TypeArray:
		default:
			return ErrUnknownType.WithDetail(strconv.QuoteRune(rune(b)))
		}
	}

	s.lineType = t
	s.pos++
	s.scan = s.pos
	s.stage = stageLine

	return nil
}

// readLine returns the bytes between s.pos and the next CRLF and consumes
// both. ok is false when the CRLF has not arrived yet.
func (d *Decoder) readLine(buf []byte) (line []byte, ok bool, err error) {
	s := &d.state

	i := bytes.Index(buf[s.scan:], Terminal)
	if i < 0 {
		if len(buf)-s.pos > d.limits.MaxLineLen {
			return nil, false, ErrLimitExceeded.WithDetail("line too long")
		}

		// The last byte may be the CR of a CRLF split across reads.
		if next := len(buf) - 1; next > s.scan {
			s.scan = next
		}

		return nil, false, nil
	}

	end := s.scan + i
	if end-s.pos > d.limits.MaxLineLen {
		return nil, false, ErrLimitExceeded.WithDetail("line too long")
	}

	line = buf[s.pos:end]
	s.pos = end + len(Terminal)
	s.scan = s.pos

	return line, true, nil
}

// handleLine interprets a complete line according to its type. It returns a
// nil Value when the line opened an array or a bulk payload that is still to
// be read.
func (d *Decoder) handleLine(line []byte) (Value, error) {
	s := &d.state

	switch s.lineType {
	case inlineType:
		if !utf8.Valid(line) {
			return nil, ErrInvalidUTF8
		}

		fields := strings.Fields(string(line))
		arr := make(Array, 0, len(fields))
		for _, f := range fields {
			arr = append(arr, BulkString(f))
		}

		return arr, nil

	case TypeSimpleString:
		return SimpleString(line), nil

	case TypeError:
		return ErrorReply{Message: string(line)}, nil

	case TypeInteger:
		n, err := parseInteger(line)
		if err != nil {
			return nil, err
		}

		return Integer(n), nil

	case TypeBulkString:
		n, err := parseInteger(line)
		if err != nil {
			return nil, err
		}

		if n < 0 {
			return Null{}, nil
		}

		if n > d.limits.MaxBulkLen {
			return nil, ErrLimitExceeded.WithDetail("bulk string too large")
		}

		s.bulkLen = int(n)
		s.stage = stageBody

		return nil, nil

	case TypeArray:
		n, err := parseInteger(line)
		if err != nil {
			return nil, err
		}

		if n < 0 {
			return Null{}, nil
		}

		if n == 0 {
			return Array{}, nil
		}

		if n > d.limits.MaxArrayLen {
			return nil, ErrLimitExceeded.WithDetail("array too large")
		}

		if len(s.stack) >= d.limits.MaxDepth {
			return nil, ErrLimitExceeded.WithDetail("arrays nested too deeply")
		}

		prealloc := n
		if prealloc > preallocLimit {
			prealloc = preallocLimit
		}

		s.stack = append(s.stack, frame{want: n, elems: make(Array, 0, prealloc)})
		s.stage = stageType

		return nil, nil
	}

	return nil, ErrUnknownType
}

// push hands a finished value to the innermost open array, closing every array
// it completes. It returns the top level value once there is one.
func (d *Decoder) push(v Value) Value {
	s := &d.state

	for {
		if len(s.stack) == 0 {
			return v
		}

		top := &s.stack[len(s.stack)-1]
		top.elems = append(top.elems, v)

		if int64(len(top.elems)) < top.want {
			return nil
		}

		v = top.elems
		*top = frame{}
		s.stack = s.stack[:len(s.stack)-1]
	}
}

// parseInteger reads a signed 64 bit decimal, ignoring surrounding whitespace.
func parseInteger(line []byte) (int64, error) {
	if !utf8.Valid(line) {
		return 0, ErrInvalidUTF8
	}

	n, err := strconv.ParseInt(strings.TrimSpace(string(line)), 10, 64)
	if err != nil {
		return 0, ErrInvalidInteger
	}

	return n, nil
}
