// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package backtrace

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ianlancetaylor/demangle"
)

// ParseError describes a dump that does not contain a well-formed backtrace.
type ParseError struct {
	Line   int // 1-based, 0 if the error is not bound to a line
	Reason string
}

func (err *ParseError) Error() string {
	if err.Line == 0 {
		return fmt.Sprintf("bad backtrace: %v", err.Reason)
	}
	return fmt.Sprintf("bad backtrace: line %v: %v", err.Line, err.Reason)
}

// Frame records look like:
//
//	#0  0x00007ffff7a42428 in __GI_raise (sig=sig@entry=6) at ../sysdeps/unix/sysv/linux/raise.c:54
//	#1  main (argc=1, argv=0x7fffffffe0b8) at main.c:10
//	#2  0x00007ffff7a2d830 in __libc_start_main () from /lib/x86_64-linux-gnu/libc.so.6
//	#3  <signal handler called>
//
// Lines that do not start with #N (program output, locals printed by "bt full",
// "Backtrace stopped" notes, register dumps) are skipped.
var frameStartRe = regexp.MustCompile(`^#([0-9]+)\s+(.*)$`)

const signalHandlerFrame = "<signal handler called>"

// Parse extracts the backtrace from a gdb dump.
// Anything before the first valid #0 record is treated as preamble.
// The backtrace ends at the end of input or at the next #0 record
// (the backtrace of the next thread).
func Parse(data []byte) (*Backtrace, error) {
	p := &parser{lines: bytes.Split(data, []byte{'\n'})}
	bt := new(Backtrace)
	for !p.eof() {
		lineNo := p.pos + 1
		m := frameStartRe.FindSubmatch(p.next())
		if m == nil {
			continue
		}
		if len(bt.Frames) == 0 {
			// Preamble may contain lines that resemble frames (e.g. fuzzer progress "#123 NEW cov: ...").
			frame, err := p.record(lineNo, m)
			if err != nil || frame.Index != 0 {
				p.pos = lineNo
				continue
			}
			bt.Frames = append(bt.Frames, frame)
			continue
		}
		frame, err := p.record(lineNo, m)
		if err != nil {
			return nil, err
		}
		if frame.Index == 0 {
			break
		}
		if frame.Index != len(bt.Frames) {
			return nil, &ParseError{
				Line:   lineNo,
				Reason: fmt.Sprintf("expected frame #%v, got #%v", len(bt.Frames), frame.Index),
			}
		}
		bt.Frames = append(bt.Frames, frame)
	}
	if len(bt.Frames) == 0 {
		return nil, &ParseError{Reason: "unexpected end of input: no frame records"}
	}
	return bt, nil
}

type parser struct {
	lines [][]byte
	pos   int
}

func (p *parser) eof() bool {
	return p.pos >= len(p.lines)
}

func (p *parser) next() []byte {
	line := bytes.TrimRight(p.lines[p.pos], "\r")
	p.pos++
	return line
}

// maxRecordLines bounds the number of lines a single wrapped frame record may span.
const maxRecordLines = 64

// record parses one frame record that starts on line lineNo.
// Records with long argument lists may be wrapped over several lines.
func (p *parser) record(lineNo int, m [][]byte) (Frame, error) {
	index, err := strconv.Atoi(string(m[1]))
	if err != nil {
		return Frame{}, &ParseError{Line: lineNo, Reason: fmt.Sprintf("bad frame index %q", m[1])}
	}
	text := new(strings.Builder)
	text.Write(m[2])
	var bal balance
	bal.feed(string(m[2]))
	for lines := 1; !bal.closed(); lines++ {
		if p.eof() {
			return Frame{}, &ParseError{
				Line:   lineNo,
				Reason: fmt.Sprintf("unexpected end of input in frame #%v", index),
			}
		}
		if lines == maxRecordLines {
			return Frame{}, &ParseError{
				Line:   lineNo,
				Reason: fmt.Sprintf("frame #%v is not terminated after %v lines", index, maxRecordLines),
			}
		}
		line := strings.TrimSpace(string(p.next()))
		text.WriteByte(' ')
		text.WriteString(line)
		bal.feed(line)
	}
	frame, err := parseFrame(text.String())
	if err != nil {
		return Frame{}, &ParseError{
			Line:   lineNo,
			Reason: fmt.Sprintf("malformed frame record #%v: %v", index, err),
		}
	}
	frame.Index = index
	return frame, nil
}

func parseFrame(s string) (Frame, error) {
	var f Frame
	s = strings.TrimSpace(s)
	if s == signalHandlerFrame {
		f.Func = s
		return f, nil
	}
	if strings.HasPrefix(s, "0x") {
		sp := strings.IndexByte(s, ' ')
		if sp == -1 {
			return f, fmt.Errorf("no function after address")
		}
		pc, err := strconv.ParseUint(s[2:sp], 16, 64)
		if err != nil {
			return f, fmt.Errorf("bad address %q", s[:sp])
		}
		f.PC, f.HasPC = pc, true
		s = strings.TrimLeft(s[sp:], " ")
		if !strings.HasPrefix(s, "in ") {
			return f, fmt.Errorf("no 'in' after address")
		}
		s = strings.TrimLeft(s[len("in "):], " ")
	}
	open := argsStart(s)
	if open == -1 {
		return f, fmt.Errorf("no argument list")
	}
	f.Func = strings.TrimSpace(s[:open])
	if f.Func == "" {
		return f, fmt.Errorf("no function name")
	}
	end := closingParen(s, open)
	if end == -1 {
		return f, fmt.Errorf("unterminated argument list")
	}
	rest := strings.TrimSpace(s[end+1:])
	switch {
	case rest == "":
	case strings.HasPrefix(rest, "at "):
		loc := strings.TrimSpace(rest[len("at "):])
		colon := strings.LastIndexByte(loc, ':')
		if colon <= 0 {
			return f, fmt.Errorf("bad source location %q", loc)
		}
		line, err := strconv.Atoi(loc[colon+1:])
		if err != nil || line <= 0 {
			return f, fmt.Errorf("bad source line in %q", loc)
		}
		f.File, f.Line = loc[:colon], line
	case strings.HasPrefix(rest, "from "):
		f.Library = strings.TrimSpace(rest[len("from "):])
		if f.Library == "" {
			return f, fmt.Errorf("empty library name")
		}
	default:
		return f, fmt.Errorf("unexpected %q after arguments", rest)
	}
	f.Func = demangleName(f.Func)
	return f, nil
}

// demangleName turns raw C++ symbols into the form gdb prints
// with demangling enabled ("ns::func", without parameter types).
func demangleName(name string) string {
	if !strings.HasPrefix(name, "_Z") {
		return name
	}
	res, err := demangle.ToString(name, demangle.NoParams)
	if err != nil {
		return name
	}
	return res
}

// argsStart returns the position of the parenthesis that opens the argument list:
// the first " (" that is not inside template brackets.
// "operator" tokens are skipped, so "operator() (" and "operator<< <char> (" work.
func argsStart(s string) int {
	angle := 0
	for i := 0; i < len(s); i++ {
		if strings.HasPrefix(s[i:], "operator") && (i == 0 || !isIdentChar(s[i-1])) {
			i += len("operator")
			for i < len(s) && strings.IndexByte("<>=!+-*/%&|^~[](),", s[i]) != -1 {
				i++
			}
			i--
			continue
		}
		switch s[i] {
		case '<':
			angle++
		case '>':
			// "->" in "fn() -> T" is not a closing bracket.
			if i > 0 && s[i-1] == '-' {
				continue
			}
			angle = max(angle-1, 0)
		case '(':
			if angle == 0 && i > 0 && s[i-1] == ' ' {
				return i
			}
		}
	}
	return -1
}

func isIdentChar(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// closingParen returns the position of the parenthesis matching the one at open.
// Parentheses inside string and character literals are ignored.
func closingParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '"':
			end := skipLiteral(s, i)
			if end == -1 {
				return -1
			}
			i = end
		case '\'':
			// A lone apostrophe (e.g. in a path) is not a character literal.
			if end := skipLiteral(s, i); end != -1 {
				i = end
			}
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// skipLiteral returns the position of the quote that closes the literal started at i.
func skipLiteral(s string, i int) int {
	quote := s[i]
	for i++; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case quote:
			return i
		}
	}
	return -1
}

// balance tracks parentheses and string literals over the lines of a wrapped record.
type balance struct {
	depth    int
	inString bool
}

func (b *balance) feed(s string) {
	for i := 0; i < len(s); i++ {
		if b.inString {
			switch s[i] {
			case '\\':
				i++
			case '"':
				b.inString = false
			}
			continue
		}
		switch s[i] {
		case '"':
			b.inString = true
		case '\'':
			// A lone apostrophe (e.g. in a path) is not a character literal.
			if end := skipLiteral(s, i); end != -1 {
				i = end
			}
		case '(':
			b.depth++
		case ')':
			b.depth--
		}
	}
}

// closed says if all parentheses and literals fed so far are closed.
func (b *balance) closed() bool {
	return !b.inString && b.depth <= 0
}
