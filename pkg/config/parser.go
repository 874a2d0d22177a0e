package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// ParseError reports a malformed directive in a native-grammar configuration
// file. It is fatal: the process exits before binding any socket.
type ParseError struct {
	// Line is the 1-based line number of the offending token.
	Line int

	// Message describes what was expected.
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d: %s", e.Line, e.Message)
}

type tokenType int

const (
	tokenWord tokenType = iota
	tokenNumber
	tokenString
	tokenOpenBrace
	tokenCloseBrace
	tokenTerm // newline or ';'
	tokenEOF
)

type token struct {
	typ   tokenType
	value string
	line  int
}

func (t token) String() string {
	switch t.typ {
	case tokenEOF:
		return "end of file"
	case tokenTerm:
		return "end of directive"
	case tokenString:
		return strconv.Quote(t.value)
	default:
		return t.value
	}
}

// lexer splits a configuration file into tokens. Directives are terminated
// by newlines or semicolons; '#' starts a comment running to end of line.
type lexer struct {
	input string
	pos   int
	line  int
}

func newLexer(input string) *lexer {
	return &lexer{input: input, line: 1}
}

func (l *lexer) next() (token, error) {
	l.skipBlank()
	if l.pos >= len(l.input) {
		return token{typ: tokenEOF, line: l.line}, nil
	}

	ch := l.input[l.pos]
	switch {
	case ch == '\n' || ch == ';':
		line := l.line
		if ch == '\n' {
			l.line++
		}
		l.pos++
		return token{typ: tokenTerm, line: line}, nil
	case ch == '{':
		l.pos++
		return token{typ: tokenOpenBrace, value: "{", line: l.line}, nil
	case ch == '}':
		l.pos++
		return token{typ: tokenCloseBrace, value: "}", line: l.line}, nil
	case ch == '"':
		return l.lexString()
	}

	start := l.pos
	for l.pos < len(l.input) && !l.isBoundary(l.input[l.pos]) {
		l.pos++
	}
	word := l.input[start:l.pos]
	if isNumber(word) {
		return token{typ: tokenNumber, value: word, line: l.line}, nil
	}
	return token{typ: tokenWord, value: word, line: l.line}, nil
}

func (l *lexer) lexString() (token, error) {
	line := l.line
	l.pos++ // opening quote
	start := l.pos
	for l.pos < len(l.input) {
		switch l.input[l.pos] {
		case '"':
			value := l.input[start:l.pos]
			l.pos++
			return token{typ: tokenString, value: value, line: line}, nil
		case '\n':
			return token{}, &ParseError{Line: line, Message: "unterminated string"}
		}
		l.pos++
	}
	return token{}, &ParseError{Line: line, Message: "unterminated string"}
}

// skipBlank consumes spaces, tabs, carriage returns and comments, but not
// newlines: those terminate directives.
func (l *lexer) skipBlank() {
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '#' {
			for l.pos < len(l.input) && l.input[l.pos] != '\n' {
				l.pos++
			}
			continue
		}
		if ch == ' ' || ch == '\t' || ch == '\r' {
			l.pos++
			continue
		}
		return
	}
}

func (l *lexer) isBoundary(ch byte) bool {
	return unicode.IsSpace(rune(ch)) || strings.IndexByte(`{};"#`, ch) >= 0
}

func isNumber(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

// parser consumes tokens and produces a Config. It performs only syntactic
// checks; semantic rules live in Validate.
type parser struct {
	lex    *lexer
	peeked *token
}

// Parse parses a configuration file in the native directive grammar.
func Parse(input string) (*Config, error) {
	p := &parser{lex: newLexer(input)}
	cfg := &Config{}

	for {
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		switch tok.typ {
		case tokenEOF:
			return cfg, nil
		case tokenTerm:
			continue
		case tokenWord:
			if err := p.parseTopLevel(cfg, tok); err != nil {
				return nil, err
			}
		default:
			return nil, &ParseError{Line: tok.line, Message: fmt.Sprintf("unexpected %s", tok)}
		}
	}
}

func (p *parser) parseTopLevel(cfg *Config, tok token) error {
	switch tok.value {
	case "chroot":
		return p.stringDirective(&cfg.Chroot)
	case "user":
		return p.stringDirective(&cfg.User)
	case "group":
		return p.stringDirective(&cfg.Group)
	case "prefork":
		return p.intDirective(&cfg.Prefork)
	case "access":
		return p.parseAccessLog(cfg)
	case "prometheus":
		addr, err := p.expect(tokenString)
		if err != nil {
			return err
		}
		cfg.Metrics.Enabled = true
		cfg.Metrics.ListenAddress = addr.value
		return p.endDirective()
	case "timeout":
		return p.parseTimeout(cfg)
	case "server":
		return p.parseServer(cfg)
	default:
		return &ParseError{Line: tok.line, Message: fmt.Sprintf("unknown directive %q", tok.value)}
	}
}

// access log on|off
// access log backend file|sqlite
// access log path "<path>"
// access log rotate "<cron expression>"
func (p *parser) parseAccessLog(cfg *Config) error {
	if _, err := p.expectWord("log"); err != nil {
		return err
	}
	tok, err := p.next()
	if err != nil {
		return err
	}
	switch {
	case tok.typ == tokenWord && tok.value == "on":
		cfg.AccessLog.Enabled = true
	case tok.typ == tokenWord && tok.value == "off":
		cfg.AccessLog.Enabled = false
	case tok.typ == tokenWord && tok.value == "backend":
		backend, err := p.nextValue()
		if err != nil {
			return err
		}
		cfg.AccessLog.Backend = backend
	case tok.typ == tokenWord && tok.value == "path":
		path, err := p.expect(tokenString)
		if err != nil {
			return err
		}
		cfg.AccessLog.Path = path.value
	case tok.typ == tokenWord && tok.value == "rotate":
		sched, err := p.expect(tokenString)
		if err != nil {
			return err
		}
		cfg.AccessLog.RotateSchedule = sched.value
	default:
		return &ParseError{Line: tok.line, Message: fmt.Sprintf("expected access log setting, got %s", tok)}
	}
	return p.endDirective()
}

// timeout read|write|idle|header|shutdown <duration>
func (p *parser) parseTimeout(cfg *Config) error {
	which, err := p.expect(tokenWord)
	if err != nil {
		return err
	}
	val, err := p.expect(tokenWord)
	if err != nil {
		return err
	}
	d, err := time.ParseDuration(val.value)
	if err != nil {
		return &ParseError{Line: val.line, Message: fmt.Sprintf("invalid duration %q", val.value)}
	}
	switch which.value {
	case "header":
		cfg.Timeouts.ReadHeader = d
	case "read":
		cfg.Timeouts.Read = d
	case "write":
		cfg.Timeouts.Write = d
	case "idle":
		cfg.Timeouts.Idle = d
	case "shutdown":
		cfg.Timeouts.Shutdown = d
	default:
		return &ParseError{Line: which.line, Message: fmt.Sprintf("unknown timeout %q", which.value)}
	}
	return p.endDirective()
}

func (p *parser) parseServer(cfg *Config) error {
	name, err := p.expect(tokenString)
	if err != nil {
		return err
	}
	if err := p.openBlock(); err != nil {
		return err
	}

	srv := &Server{Name: name.value}
	for {
		tok, err := p.next()
		if err != nil {
			return err
		}
		switch tok.typ {
		case tokenTerm:
			continue
		case tokenCloseBrace:
			cfg.Servers = append(cfg.Servers, srv)
			return nil
		case tokenEOF:
			return &ParseError{Line: tok.line, Message: fmt.Sprintf("unclosed server block %q", srv.Name)}
		case tokenWord:
			if err := p.parseServerDirective(srv, tok); err != nil {
				return err
			}
		default:
			return &ParseError{Line: tok.line, Message: fmt.Sprintf("unexpected %s in server block", tok)}
		}
	}
}

func (p *parser) parseServerDirective(srv *Server, tok token) error {
	switch tok.value {
	case "listen":
		return p.parseListen(srv)
	case "alias":
		alias, err := p.expect(tokenString)
		if err != nil {
			return err
		}
		srv.Aliases = append(srv.Aliases, alias.value)
		return p.endDirective()
	case "root":
		return p.stringDirective(&srv.Root)
	case "directory":
		auto, index, err := p.parseDirectory()
		if err != nil {
			return err
		}
		if auto != nil {
			srv.AutoIndex = *auto
		}
		if index != "" {
			srv.DirIndex = index
		}
		return nil
	case "tls":
		return p.parseTLS(srv)
	case "location":
		return p.parseLocation(srv)
	default:
		return &ParseError{Line: tok.line, Message: fmt.Sprintf("unknown server directive %q", tok.value)}
	}
}

// listen on <address> port <port> [tls]
func (p *parser) parseListen(srv *Server) error {
	if _, err := p.expectWord("on"); err != nil {
		return err
	}
	addr, err := p.next()
	if err != nil {
		return err
	}
	if addr.typ != tokenWord && addr.typ != tokenNumber && addr.typ != tokenString {
		return &ParseError{Line: addr.line, Message: fmt.Sprintf("expected listen address, got %s", addr)}
	}
	if _, err := p.expectWord("port"); err != nil {
		return err
	}
	portTok, err := p.expect(tokenNumber)
	if err != nil {
		return err
	}
	port, err := strconv.Atoi(portTok.value)
	if err != nil {
		return &ParseError{Line: portTok.line, Message: fmt.Sprintf("invalid port %q", portTok.value)}
	}

	listen := Listen{Address: addr.value, Port: port}
	tok, err := p.next()
	if err != nil {
		return err
	}
	switch {
	case tok.typ == tokenWord && tok.value == "tls":
		listen.TLS = true
		if err := p.endDirective(); err != nil {
			return err
		}
	case tok.typ == tokenTerm || tok.typ == tokenEOF || tok.typ == tokenCloseBrace:
		p.unread(tok)
	default:
		return &ParseError{Line: tok.line, Message: fmt.Sprintf("unexpected %s after listen", tok)}
	}
	srv.Listens = append(srv.Listens, listen)
	return nil
}

// tls certificate "<path>" key "<path>"
func (p *parser) parseTLS(srv *Server) error {
	if _, err := p.expectWord("certificate"); err != nil {
		return err
	}
	cert, err := p.expect(tokenString)
	if err != nil {
		return err
	}
	if _, err := p.expectWord("key"); err != nil {
		return err
	}
	key, err := p.expect(tokenString)
	if err != nil {
		return err
	}
	srv.TLS = &TLSBundle{CertFile: cert.value, KeyFile: key.value}
	return p.endDirective()
}

// location "<pattern>" { ... }
func (p *parser) parseLocation(srv *Server) error {
	pattern, err := p.next()
	if err != nil {
		return err
	}
	if pattern.typ != tokenString && pattern.typ != tokenWord {
		return &ParseError{Line: pattern.line, Message: fmt.Sprintf("expected location pattern, got %s", pattern)}
	}
	if err := p.openBlock(); err != nil {
		return err
	}

	loc := &Location{Pattern: pattern.value}
	for {
		tok, err := p.next()
		if err != nil {
			return err
		}
		switch tok.typ {
		case tokenTerm:
			continue
		case tokenCloseBrace:
			srv.Locations = append(srv.Locations, loc)
			return nil
		case tokenEOF:
			return &ParseError{Line: tok.line, Message: fmt.Sprintf("unclosed location block %q", loc.Pattern)}
		case tokenWord:
			if err := p.parseLocationDirective(loc, tok); err != nil {
				return err
			}
		default:
			return &ParseError{Line: tok.line, Message: fmt.Sprintf("unexpected %s in location block", tok)}
		}
	}
}

func (p *parser) parseLocationDirective(loc *Location, tok token) error {
	switch tok.value {
	case "root":
		return p.stringDirective(&loc.Root)
	case "directory":
		auto, index, err := p.parseDirectory()
		if err != nil {
			return err
		}
		loc.AutoIndex = auto
		if index != "" {
			loc.DirIndex = index
		}
		return nil
	case "block":
		return p.parseBlockReturn(loc)
	default:
		return &ParseError{Line: tok.line, Message: fmt.Sprintf("unknown location directive %q", tok.value)}
	}
}

// directory auto index | directory no index | directory index "<file>"
func (p *parser) parseDirectory() (auto *bool, index string, err error) {
	tok, err := p.next()
	if err != nil {
		return nil, "", err
	}
	switch {
	case tok.typ == tokenWord && tok.value == "auto":
		if _, err := p.expectWord("index"); err != nil {
			return nil, "", err
		}
		t := true
		auto = &t
	case tok.typ == tokenWord && tok.value == "no":
		if _, err := p.expectWord("index"); err != nil {
			return nil, "", err
		}
		f := false
		auto = &f
	case tok.typ == tokenWord && tok.value == "index":
		file, err := p.expect(tokenString)
		if err != nil {
			return nil, "", err
		}
		index = file.value
	default:
		return nil, "", &ParseError{Line: tok.line, Message: fmt.Sprintf("expected directory setting, got %s", tok)}
	}
	return auto, index, p.endDirective()
}

// block return <status> "<target>"
func (p *parser) parseBlockReturn(loc *Location) error {
	if _, err := p.expectWord("return"); err != nil {
		return err
	}
	statusTok, err := p.expect(tokenNumber)
	if err != nil {
		return err
	}
	status, err := strconv.Atoi(statusTok.value)
	if err != nil {
		return &ParseError{Line: statusTok.line, Message: fmt.Sprintf("invalid status %q", statusTok.value)}
	}
	target, err := p.expect(tokenString)
	if err != nil {
		return err
	}
	loc.Redirect = &Redirect{Status: status, Target: target.value}
	return p.endDirective()
}

func (p *parser) next() (token, error) {
	if p.peeked != nil {
		tok := *p.peeked
		p.peeked = nil
		return tok, nil
	}
	return p.lex.next()
}

func (p *parser) unread(tok token) {
	p.peeked = &tok
}

func (p *parser) expect(typ tokenType) (token, error) {
	tok, err := p.next()
	if err != nil {
		return token{}, err
	}
	if tok.typ != typ {
		want := map[tokenType]string{
			tokenWord:   "word",
			tokenNumber: "number",
			tokenString: "quoted string",
		}[typ]
		return token{}, &ParseError{Line: tok.line, Message: fmt.Sprintf("expected %s, got %s", want, tok)}
	}
	return tok, nil
}

func (p *parser) expectWord(value string) (token, error) {
	tok, err := p.next()
	if err != nil {
		return token{}, err
	}
	if tok.typ != tokenWord || tok.value != value {
		return token{}, &ParseError{Line: tok.line, Message: fmt.Sprintf("expected %q, got %s", value, tok)}
	}
	return tok, nil
}

// nextValue accepts a word, number, or quoted string.
func (p *parser) nextValue() (string, error) {
	tok, err := p.next()
	if err != nil {
		return "", err
	}
	if tok.typ != tokenWord && tok.typ != tokenNumber && tok.typ != tokenString {
		return "", &ParseError{Line: tok.line, Message: fmt.Sprintf("expected value, got %s", tok)}
	}
	return tok.value, nil
}

// openBlock consumes an opening brace, allowing it on the next line.
func (p *parser) openBlock() error {
	for {
		tok, err := p.next()
		if err != nil {
			return err
		}
		switch tok.typ {
		case tokenOpenBrace:
			return nil
		case tokenTerm:
			continue
		default:
			return &ParseError{Line: tok.line, Message: fmt.Sprintf("expected '{', got %s", tok)}
		}
	}
}

// endDirective consumes the directive terminator. A closing brace or EOF
// also ends a directive and is pushed back for the caller.
func (p *parser) endDirective() error {
	tok, err := p.next()
	if err != nil {
		return err
	}
	switch tok.typ {
	case tokenTerm, tokenEOF:
		return nil
	case tokenCloseBrace:
		p.unread(tok)
		return nil
	default:
		return &ParseError{Line: tok.line, Message: fmt.Sprintf("unexpected %s at end of directive", tok)}
	}
}

// stringDirective parses `<directive> "<value>"`.
func (p *parser) stringDirective(dst *string) error {
	tok, err := p.expect(tokenString)
	if err != nil {
		return err
	}
	*dst = tok.value
	return p.endDirective()
}

// intDirective parses `<directive> <number>`.
func (p *parser) intDirective(dst *int) error {
	tok, err := p.expect(tokenNumber)
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(tok.value)
	if err != nil {
		return &ParseError{Line: tok.line, Message: fmt.Sprintf("invalid number %q", tok.value)}
	}
	*dst = n
	return p.endDirective()
}
