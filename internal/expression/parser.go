// Package expression 从触发器表达式中提取被引用的 (主机, 监控项) 对。
//
// 支持的函数引用写法为 {host:key[params].func(args)}。{$MACRO}、{#LLD_MACRO}
// 以及 {TRIGGER.VALUE} 这类不含主机的内置宏会被跳过。
package expression

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed 表示表达式无法解析。
var ErrMalformed = errors.New("malformed trigger expression")

// SyntaxError 描述解析失败的位置与原因。
type SyntaxError struct {
	Expression string
	Pos        int
	Reason     string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("表达式 %q 在位置 %d 解析失败: %s", e.Expression, e.Pos, e.Reason)
}

func (e *SyntaxError) Is(target error) bool {
	return target == ErrMalformed
}

// HostItem 是表达式里引用的一个监控项。
type HostItem struct {
	Host string
	Key  string
}

// Parser 是无状态的表达式解析器，可并发使用。
type Parser struct{}

// New 创建解析器。
func New() *Parser {
	return &Parser{}
}

// Parse 按出现顺序返回表达式中的监控项引用，重复引用只保留一次。
func (p *Parser) Parse(expr string) ([]HostItem, error) {
	s := &scanner{expr: expr}
	var (
		out  []HostItem
		seen = make(map[HostItem]struct{})
	)
	for s.pos < len(expr) {
		if expr[s.pos] != '{' {
			s.pos++
			continue
		}
		ref, ok, err := s.function()
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	if len(out) == 0 {
		return nil, s.fail(0, "未找到任何监控项引用")
	}
	return out, nil
}

type scanner struct {
	expr string
	pos  int
}

func (s *scanner) fail(pos int, reason string) error {
	return &SyntaxError{Expression: s.expr, Pos: pos, Reason: reason}
}

// function 从 '{' 开始解析一个引用，宏返回 ok=false 并跳过。
func (s *scanner) function() (HostItem, bool, error) {
	start := s.pos
	s.pos++
	if s.pos < len(s.expr) && (s.expr[s.pos] == '$' || s.expr[s.pos] == '#') {
		end := strings.IndexByte(s.expr[s.pos:], '}')
		if end < 0 {
			return HostItem{}, false, s.fail(start, "宏缺少 '}'")
		}
		s.pos += end + 1
		return HostItem{}, false, nil
	}

	colon := -1
	for i := s.pos; i < len(s.expr); i++ {
		c := s.expr[i]
		if c == ':' {
			colon = i
			break
		}
		if c == '}' {
			// 内置宏，如 {TRIGGER.VALUE}
			s.pos = i + 1
			return HostItem{}, false, nil
		}
		if c == '{' {
			return HostItem{}, false, s.fail(i, "嵌套的 '{'")
		}
	}
	if colon < 0 {
		return HostItem{}, false, s.fail(start, "缺少 '}'")
	}
	host := strings.TrimSpace(s.expr[s.pos:colon])
	if host == "" {
		return HostItem{}, false, s.fail(s.pos, "主机名为空")
	}
	s.pos = colon + 1

	keyStart := s.pos
	keyEnd, err := s.key()
	if err != nil {
		return HostItem{}, false, err
	}
	key := s.expr[keyStart:keyEnd]
	if key == "" {
		return HostItem{}, false, s.fail(keyStart, "监控项 key 为空")
	}
	if err := s.call(); err != nil {
		return HostItem{}, false, err
	}
	if s.pos >= len(s.expr) || s.expr[s.pos] != '}' {
		return HostItem{}, false, s.fail(s.pos, "函数调用后缺少 '}'")
	}
	s.pos++
	return HostItem{Host: host, Key: key}, true, nil
}

// key 扫描到函数调用前的 '.' 为止，方括号内的内容按参数处理。
func (s *scanner) key() (int, error) {
	depth := 0
	for s.pos < len(s.expr) {
		c := s.expr[s.pos]
		switch {
		case c == '"' && depth > 0:
			if err := s.quoted(); err != nil {
				return 0, err
			}
			continue
		case c == '[':
			depth++
		case c == ']':
			if depth == 0 {
				return 0, s.fail(s.pos, "多余的 ']'")
			}
			depth--
		case c == '}' && depth == 0:
			return 0, s.fail(s.pos, "缺少函数调用")
		case c == '.' && depth == 0 && s.isCall(s.pos+1):
			end := s.pos
			s.pos++
			return end, nil
		}
		s.pos++
	}
	if depth > 0 {
		return 0, s.fail(len(s.expr), "key 参数缺少 ']'")
	}
	return 0, s.fail(len(s.expr), "缺少函数调用")
}

// isCall 判断 i 开始是否是 "ident(".
func (s *scanner) isCall(i int) bool {
	j := i
	for j < len(s.expr) && isIdent(s.expr[j]) {
		j++
	}
	return j > i && j < len(s.expr) && s.expr[j] == '('
}

// call 解析 func(args)，结束时 pos 指向 ')' 之后。
func (s *scanner) call() error {
	for s.pos < len(s.expr) && isIdent(s.expr[s.pos]) {
		s.pos++
	}
	open := s.pos
	s.pos++
	for s.pos < len(s.expr) {
		switch s.expr[s.pos] {
		case '"':
			if err := s.quoted(); err != nil {
				return err
			}
			continue
		case ')':
			s.pos++
			return nil
		}
		s.pos++
	}
	return s.fail(open, "函数参数缺少 ')'")
}

// quoted 跳过一个带转义的双引号字符串。
func (s *scanner) quoted() error {
	open := s.pos
	s.pos++
	for s.pos < len(s.expr) {
		switch s.expr[s.pos] {
		case '\\':
			s.pos += 2
			continue
		case '"':
			s.pos++
			return nil
		}
		s.pos++
	}
	return s.fail(open, "字符串缺少结束引号")
}

func isIdent(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
