// Package trace reads and writes memory access streams and replays them
// against a hierarchy.
//
// A trace is plain text with one access per line:
//
//	R <addr>
//	W <addr> <word>
//
// Addresses are decimal or 0x-prefixed hexadecimal. The word of a write is
// written as hexadecimal bytes in memory order, e.g. 01020304. Blank lines
// and anything after a '#' are ignored.
package trace

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Op is one access in a trace.
type Op struct {
	Write bool
	Addr  uint32
	// Data holds the word to store. It is nil for reads.
	Data []byte
	// Line is the 1-based source line, or 0 for generated ops.
	Line int
}

// String renders the op in trace syntax.
func (op Op) String() string {
	if op.Write {
		return fmt.Sprintf("W 0x%x %s", op.Addr, hex.EncodeToString(op.Data))
	}
	return fmt.Sprintf("R 0x%x", op.Addr)
}

// ParseError reports a malformed trace line.
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("trace line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse reads every op from r. Writes must carry exactly wordSize bytes.
func Parse(r io.Reader, wordSize int) ([]Op, error) {
	var ops []Op

	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		text := scanner.Text()

		op, ok, err := parseLine(text, wordSize)
		if err != nil {
			return nil, &ParseError{Line: lineNum, Text: text, Err: err}
		}
		if !ok {
			continue
		}

		op.Line = lineNum
		ops = append(ops, op)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}

	return ops, nil
}

func parseLine(text string, wordSize int) (Op, bool, error) {
	if i := strings.IndexByte(text, '#'); i >= 0 {
		text = text[:i]
	}

	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Op{}, false, nil
	}

	switch strings.ToUpper(fields[0]) {
	case "R":
		if len(fields) != 2 {
			return Op{}, false, fmt.Errorf("read takes one address")
		}
		addr, err := parseAddr(fields[1])
		if err != nil {
			return Op{}, false, err
		}
		return Op{Addr: addr}, true, nil

	case "W":
		if len(fields) != 3 {
			return Op{}, false, fmt.Errorf("write takes an address and a word")
		}
		addr, err := parseAddr(fields[1])
		if err != nil {
			return Op{}, false, err
		}
		data, err := hex.DecodeString(strings.TrimPrefix(fields[2], "0x"))
		if err != nil {
			return Op{}, false, fmt.Errorf("bad word: %w", err)
		}
		if len(data) != wordSize {
			return Op{}, false, fmt.Errorf("word has %d bytes, want %d",
				len(data), wordSize)
		}
		return Op{Write: true, Addr: addr, Data: data}, true, nil
	}

	return Op{}, false, fmt.Errorf("unknown op %q", fields[0])
}

func parseAddr(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("bad address: %w", err)
	}
	return uint32(v), nil
}

// Encode writes ops to w in trace syntax, one per line.
func Encode(w io.Writer, ops []Op) error {
	bw := bufio.NewWriter(w)
	for _, op := range ops {
		if _, err := fmt.Fprintln(bw, op.String()); err != nil {
			return err
		}
	}
	return bw.Flush()
}
