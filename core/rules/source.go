package rules

import (
	"regexp"
	"strings"
)

// source is the preprocessed view of one file shared by all detectors.
// It is built once per evaluation and only read afterwards.
type source struct {
	// raw lines without the trailing newline or carriage return.
	lines []string
	// code holds each line with comments removed and string literal
	// contents blanked, so structural patterns ignore prose.
	code []string
	// inLoop reports whether a line starts inside a loop body.
	inLoop []bool
	// functions are the brace-delimited function bodies found in the file.
	functions []function
	// loops are the loop headers in line order.
	loops []loop
}

type function struct {
	name  string
	start int // 0-based header line
	end   int // 0-based line of the closing brace
}

type loop struct {
	line       int
	collection string
	// nestedIn lists the collections of the enclosing loops.
	nestedIn []string
}

var (
	funcHeader = regexp.MustCompile(`(?:^|\s)(?:fn|func|function)\s+(?:\([^)]*\)\s*)?([A-Za-z_]\w*)`)
	loopHeader = regexp.MustCompile(`^\s*(?:\}\s*)?(?:for|while|loop)\b`)
	// loopSource extracts the iterated expression of a loop header.
	loopSource = regexp.MustCompile(`\bfor\b.*?(?:\bin\b|\brange\b|:=\s*range\b)\s+(?:&\s*)?(?:mut\s+)?(?:self\.)?([A-Za-z_]\w*)`)
)

// newSource splits content into lines and runs the structural pre-pass.
func newSource(content string) *source {
	content = strings.TrimSuffix(content, "\n")
	var lines []string
	if content != "" {
		lines = strings.Split(content, "\n")
	}
	s := &source{
		lines:  lines,
		code:   make([]string, len(lines)),
		inLoop: make([]bool, len(lines)),
	}
	inBlockComment := false
	for i, l := range lines {
		l = strings.TrimSuffix(l, "\r")
		s.lines[i] = l
		s.code[i], inBlockComment = stripCode(l, inBlockComment)
	}
	s.scanBlocks()
	return s
}

func (s *source) lineCount() int {
	return len(s.lines)
}

type openBlock struct {
	depth int
	fn    *function
	loop  bool
}

// scanBlocks tracks brace depth to find function spans and loop bodies.
// A header whose brace is not on the same line only binds to a "{" that
// starts the next line.
func (s *source) scanBlocks() {
	var (
		depth       int
		stack       []openBlock
		pendingFn   *function
		pendingLoop *string
		loopStack   []string
	)
	for i, code := range s.code {
		s.inLoop[i] = len(loopStack) > 0
		if !strings.HasPrefix(strings.TrimSpace(code), "{") {
			pendingFn, pendingLoop = nil, nil
		}

		if m := funcHeader.FindStringSubmatch(code); m != nil {
			pendingFn = &function{name: m[1], start: i}
		}
		if loopHeader.MatchString(code) {
			l := loop{line: i, nestedIn: append([]string(nil), loopStack...)}
			if m := loopSource.FindStringSubmatch(code); m != nil {
				l.collection = m[1]
			}
			s.loops = append(s.loops, l)
			pendingLoop = &l.collection
		}

		for _, ch := range code {
			switch ch {
			case '{':
				depth++
				block := openBlock{depth: depth}
				switch {
				case pendingFn != nil:
					block.fn, pendingFn = pendingFn, nil
				case pendingLoop != nil:
					block.loop = true
					loopStack = append(loopStack, *pendingLoop)
					pendingLoop = nil
				}
				stack = append(stack, block)
			case '}':
				if n := len(stack); n > 0 && stack[n-1].depth == depth {
					top := stack[n-1]
					stack = stack[:n-1]
					if top.fn != nil {
						top.fn.end = i
						s.functions = append(s.functions, *top.fn)
					}
					if top.loop && len(loopStack) > 0 {
						loopStack = loopStack[:len(loopStack)-1]
					}
				}
				if depth > 0 {
					depth--
				}
			}
		}
	}
}

// stripCode removes comments and blanks string literal contents. It returns
// whether a block comment is still open at the end of the line.
func stripCode(line string, inBlock bool) (string, bool) {
	var b strings.Builder
	b.Grow(len(line))
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case inBlock:
			if c == '*' && i+1 < len(line) && line[i+1] == '/' {
				inBlock = false
				i++
			}
		case quote != 0:
			switch {
			case c == '\\' && i+1 < len(line):
				i++
			case c == quote:
				b.WriteByte(c)
				quote = 0
			}
		case c == '"' || c == '`':
			quote = c
			b.WriteByte(c)
		case c == '/' && i+1 < len(line) && line[i+1] == '/':
			return b.String(), false
		case c == '/' && i+1 < len(line) && line[i+1] == '*':
			inBlock = true
			i++
		case c == '#' && strings.TrimSpace(line[:i]) == "" && !strings.HasPrefix(line[i:], "#["):
			return b.String(), false
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), inBlock
}

// normalize collapses whitespace for duplicate detection.
func normalize(line string) string {
	return strings.Join(strings.Fields(line), " ")
}
