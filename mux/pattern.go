package mux

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
)

const (
	// DefaultDelimiter is the set of characters a default parameter
	// pattern never crosses.
	DefaultDelimiter = "/#?"

	// DefaultPrefixes is the set of characters that, when they directly
	// precede a parameter, become the parameter's prefix.
	DefaultPrefixes = "./"
)

// MatchOptions controls how a route pattern is compiled.
type MatchOptions struct {
	// Delimiter lists the characters that separate path segments.
	// Defaults to DefaultDelimiter when empty.
	Delimiter string

	// Prefixes lists the characters that are attached to a following
	// parameter as its prefix. Defaults to DefaultPrefixes when empty.
	Prefixes string

	// Sensitive enables case-sensitive matching.
	Sensitive bool

	// Strict disables the optional trailing delimiter.
	Strict bool

	// Start anchors the expression at the beginning of the input.
	Start bool

	// End requires the pattern to consume the input up to its end. When
	// false the pattern matches any input it is a segment-aligned prefix of.
	End bool

	// Decode percent-decodes extracted parameter values.
	Decode bool
}

// DefaultMatchOptions returns the options used for exact path matching.
func DefaultMatchOptions() MatchOptions {
	return MatchOptions{
		Start: true,
		End:   true,
	}
}

func (o MatchOptions) delimiter() string {
	if o.Delimiter == "" {
		return DefaultDelimiter
	}

	return o.Delimiter
}

func (o MatchOptions) prefixes() string {
	if o.Prefixes == "" {
		return DefaultPrefixes
	}

	return o.Prefixes
}

func (o MatchOptions) regexpOptions() regexp2.RegexOptions {
	if o.Sensitive {
		return regexp2.None
	}

	return regexp2.IgnoreCase
}

// Token is one element of a parsed route pattern: either literal text or a
// parameter descriptor.
type Token struct {
	// Literal holds the text of a literal token.
	Literal string

	// Name is the parameter name. Unnamed parameters are numbered in
	// declaration order starting at "0".
	Name string

	// Prefix and Suffix are literal text bound to the parameter.
	Prefix string
	Suffix string

	// Pattern is the regular expression a value must match. An empty
	// pattern marks an optional group of literal text.
	Pattern string

	// Modifier is one of "", "?", "*" or "+".
	Modifier string

	param bool
}

// IsParam reports whether the token is a parameter or group rather than
// literal text.
func (t Token) IsParam() bool {
	return t.param
}

// Repeated reports whether the parameter may match several segments.
func (t Token) Repeated() bool {
	return t.Modifier == "*" || t.Modifier == "+"
}

// Optional reports whether the parameter may be absent.
func (t Token) Optional() bool {
	return t.Modifier == "?" || t.Modifier == "*"
}

// Params holds the parameters extracted from a path. Parameters declared
// with a "*" or "+" modifier may hold several values; all others hold
// exactly one.
type Params map[string][]string

// Get returns the first value of the named parameter.
func (p Params) Get(name string) string {
	if v := p[name]; len(v) > 0 {
		return v[0]
	}

	return ""
}

// Values returns every value of the named parameter.
func (p Params) Values(name string) []string {
	return p[name]
}

// Has reports whether the named parameter was matched.
func (p Params) Has(name string) bool {
	_, ok := p[name]
	return ok
}

// PathMatch is the result of a successful Matcher.Match.
type PathMatch struct {
	// Path is the portion of the input consumed by the pattern.
	Path string

	// Index is the offset of the match in the input.
	Index int

	// Params are the extracted parameters.
	Params Params
}

// Matcher tests paths against a compiled route pattern.
type Matcher struct {
	pattern    string
	opts       MatchOptions
	tokens     []Token
	keys       []Token
	validators []*regexp2.Regexp
	re         *regexp2.Regexp
}

// Compile parses pattern and returns a matcher for it. Matchers are cached
// by pattern and options, so compiling the same pattern twice returns the
// same matcher.
func Compile(pattern string, opts MatchOptions) (*Matcher, error) {
	return compileCached(pattern, opts)
}

// MustCompile is like Compile but panics if the pattern is malformed.
func MustCompile(pattern string, opts MatchOptions) *Matcher {
	m, err := Compile(pattern, opts)
	if err != nil {
		panic(err)
	}

	return m
}

func newMatcher(pattern string, opts MatchOptions) (*Matcher, error) {
	tokens, err := Parse(pattern, opts)
	if err != nil {
		return nil, err
	}

	expr, keys, err := tokensToRegexp(tokens, opts)
	if err != nil {
		return nil, fmt.Errorf("%w in %q", err, pattern)
	}

	re, err := regexp2.Compile(expr, opts.regexpOptions())
	if err != nil {
		return nil, fmt.Errorf("mux: invalid pattern %q: %w", pattern, err)
	}

	validators := make([]*regexp2.Regexp, len(keys))
	for i, k := range keys {
		v, err := regexp2.Compile("^(?:"+k.Pattern+")$", opts.regexpOptions())
		if err != nil {
			return nil, fmt.Errorf("mux: invalid pattern %q in parameter %q: %w", k.Pattern, k.Name, err)
		}

		validators[i] = v
	}

	return &Matcher{
		pattern:    pattern,
		opts:       opts,
		tokens:     tokens,
		keys:       keys,
		validators: validators,
		re:         re,
	}, nil
}

// Pattern returns the source pattern.
func (m *Matcher) Pattern() string {
	return m.pattern
}

// Regexp returns the compiled regular expression source.
func (m *Matcher) Regexp() string {
	return m.re.String()
}

// Tokens returns the parsed pattern tokens.
func (m *Matcher) Tokens() []Token {
	return append([]Token(nil), m.tokens...)
}

// Keys returns the capturing parameters in declaration order.
func (m *Matcher) Keys() []Token {
	return append([]Token(nil), m.keys...)
}

// Match tests pathname against the pattern. It never returns an error: a
// path that does not match, or one that makes the regexp engine fail,
// reports false.
func (m *Matcher) Match(pathname string) (*PathMatch, bool) {
	res, err := m.re.FindStringMatch(pathname)
	if err != nil || res == nil {
		return nil, false
	}

	params := make(Params, len(m.keys))
	groups := res.Groups()

	for i := 1; i < len(groups) && i-1 < len(m.keys); i++ {
		g := groups[i]
		if len(g.Captures) == 0 {
			continue
		}

		key := m.keys[i-1]
		raw := g.String()

		if key.Repeated() {
			parts := strings.Split(raw, key.Prefix+key.Suffix)
			values := make([]string, len(parts))
			for j, part := range parts {
				values[j] = m.decode(part)
			}
			params[key.Name] = values

			continue
		}

		params[key.Name] = []string{m.decode(raw)}
	}

	return &PathMatch{
		Path:   res.String(),
		Index:  res.Index,
		Params: params,
	}, true
}

// MatchString reports whether pathname matches the pattern.
func (m *Matcher) MatchString(pathname string) bool {
	_, ok := m.Match(pathname)
	return ok
}

func (m *Matcher) decode(v string) string {
	if !m.opts.Decode {
		return v
	}

	if d, err := url.PathUnescape(v); err == nil {
		return d
	}

	return v
}

// Build reconstructs a path from parameter values. Each value must match
// its parameter's pattern; missing values are only allowed for optional
// parameters.
func (m *Matcher) Build(params Params) (string, error) {
	var (
		b      strings.Builder
		keyIdx int
	)

	for _, tok := range m.tokens {
		if !tok.param {
			b.WriteString(tok.Literal)
			continue
		}

		if tok.Pattern == "" {
			if !tok.Optional() {
				b.WriteString(tok.Prefix + tok.Suffix)
			}
			continue
		}

		validator := m.validators[keyIdx]
		keyIdx++

		values, ok := params[tok.Name]
		if !ok || len(values) == 0 {
			if tok.Optional() {
				continue
			}

			return "", fmt.Errorf("mux: missing route parameter %q", tok.Name)
		}

		if !tok.Repeated() && len(values) > 1 {
			return "", fmt.Errorf("mux: parameter %q does not repeat, got %d values", tok.Name, len(values))
		}

		for _, v := range values {
			if ok, err := validator.MatchString(v); err != nil || !ok {
				return "", fmt.Errorf("mux: parameter %q doesn't match, expected %q", tok.Name, tok.Pattern)
			}

			b.WriteString(tok.Prefix)
			b.WriteString(v)
			b.WriteString(tok.Suffix)
		}
	}

	return b.String(), nil
}

// Parse splits a route pattern into tokens. It understands ":name"
// parameters, "(regexp)" custom patterns, "{...}" groups and the "?", "*"
// and "+" modifiers. A custom pattern naming a known macro, such as
// "(uuid)", is replaced by the macro's expression.
func Parse(str string, opts MatchOptions) ([]Token, error) {
	lexed, err := lex(str)
	if err != nil {
		return nil, err
	}

	p := &parser{
		tokens:    lexed,
		prefixes:  opts.prefixes(),
		delimiter: opts.delimiter(),
	}

	return p.parse()
}

type parser struct {
	tokens    []lexToken
	pos       int
	prefixes  string
	delimiter string
	result    []Token
	key       int
}

func (p *parser) tryConsume(typ lexType) (string, bool) {
	if p.pos < len(p.tokens) && p.tokens[p.pos].typ == typ {
		v := p.tokens[p.pos].value
		p.pos++

		return v, true
	}

	return "", false
}

func (p *parser) mustConsume(typ lexType) error {
	if _, ok := p.tryConsume(typ); ok {
		return nil
	}

	tok := p.tokens[p.pos]

	return fmt.Errorf("mux: unexpected %s at %d, expected %s", tok.typ, tok.index, typ)
}

func (p *parser) consumeText() string {
	var b strings.Builder

	for {
		if v, ok := p.tryConsume(lexChar); ok {
			b.WriteString(v)
			continue
		}

		if v, ok := p.tryConsume(lexEscapedChar); ok {
			b.WriteString(v)
			continue
		}

		return b.String()
	}
}

func (p *parser) nextKey() string {
	name := strconv.Itoa(p.key)
	p.key++

	return name
}

// safePattern returns the default pattern for a parameter. When the text
// preceding the parameter holds no delimiter, the pattern refuses to run
// over that text again so that "/:a-:b" style patterns split correctly.
func (p *parser) safePattern(prefix string) (string, error) {
	prevText := prefix

	var prev *Token
	if n := len(p.result); n > 0 {
		prev = &p.result[n-1]
	}

	if prevText == "" && prev != nil && !prev.param {
		prevText = prev.Literal
	}

	if prev != nil && prevText == "" {
		return "", fmt.Errorf("mux: must have text between two parameters, missing text after %q", prev.Name)
	}

	class := "[^" + escapeString(p.delimiter) + "]"

	if prevText == "" || strings.ContainsAny(prevText, p.delimiter) {
		return class + "+?", nil
	}

	return "(?:(?!" + escapeString(prevText) + ")" + class + ")+?", nil
}

func (p *parser) parse() ([]Token, error) {
	var path string

	flush := func() {
		if path != "" {
			p.result = append(p.result, Token{Literal: path})
			path = ""
		}
	}

	for p.pos < len(p.tokens) {
		char, hasChar := p.tryConsume(lexChar)
		name, hasName := p.tryConsume(lexName)
		pattern, hasPattern := p.tryConsume(lexPattern)

		if hasName || hasPattern {
			prefix := char
			if !strings.Contains(p.prefixes, prefix) {
				path += prefix
				prefix = ""
			}

			flush()

			if !hasName {
				name = p.nextKey()
			}

			if hasPattern {
				pattern = expandMacro(pattern)
			} else {
				var err error
				if pattern, err = p.safePattern(prefix); err != nil {
					return nil, err
				}
			}

			modifier, _ := p.tryConsume(lexModifier)

			p.result = append(p.result, Token{
				Name:     name,
				Prefix:   prefix,
				Pattern:  pattern,
				Modifier: modifier,
				param:    true,
			})

			continue
		}

		value := char
		if !hasChar {
			value, hasChar = p.tryConsume(lexEscapedChar)
		}

		if hasChar {
			path += value
			continue
		}

		flush()

		if _, open := p.tryConsume(lexOpen); open {
			prefix := p.consumeText()
			groupName, hasGroupName := p.tryConsume(lexName)
			groupPattern, hasGroupPattern := p.tryConsume(lexPattern)
			suffix := p.consumeText()

			if err := p.mustConsume(lexClose); err != nil {
				return nil, err
			}

			tok := Token{
				Prefix: prefix,
				Suffix: suffix,
				param:  true,
			}

			switch {
			case hasGroupName && !hasGroupPattern:
				tok.Name = groupName

				pat, err := p.safePattern(prefix)
				if err != nil {
					return nil, err
				}
				tok.Pattern = pat

			case hasGroupName:
				tok.Name = groupName
				tok.Pattern = expandMacro(groupPattern)

			case hasGroupPattern:
				tok.Name = p.nextKey()
				tok.Pattern = expandMacro(groupPattern)
			}

			tok.Modifier, _ = p.tryConsume(lexModifier)
			p.result = append(p.result, tok)

			continue
		}

		if err := p.mustConsume(lexEnd); err != nil {
			return nil, err
		}
	}

	return p.result, nil
}

// tokensToRegexp assembles parsed tokens into a single regular expression
// and returns it together with the capturing parameters in group order.
func tokensToRegexp(tokens []Token, opts MatchOptions) (string, []Token, error) {
	delimiterRe := "[" + escapeString(opts.delimiter()) + "]"

	var (
		route strings.Builder
		keys  []Token
	)

	if opts.Start {
		route.WriteString("^")
	}

	for _, tok := range tokens {
		if !tok.param {
			route.WriteString(escapeString(tok.Literal))
			continue
		}

		prefix := escapeString(tok.Prefix)
		suffix := escapeString(tok.Suffix)

		if tok.Pattern == "" {
			route.WriteString("(?:" + prefix + suffix + ")" + tok.Modifier)
			continue
		}

		keys = append(keys, tok)

		if prefix == "" && suffix == "" {
			if tok.Repeated() {
				return "", nil, fmt.Errorf("mux: can not repeat %q without a prefix and suffix", tok.Name)
			}

			route.WriteString("(" + tok.Pattern + ")" + tok.Modifier)

			continue
		}

		if tok.Repeated() {
			mod := ""
			if tok.Modifier == "*" {
				mod = "?"
			}

			fmt.Fprintf(&route, "(?:%s((?:%s)(?:%s%s(?:%s))*)%s)%s",
				prefix, tok.Pattern, suffix, prefix, tok.Pattern, suffix, mod)

			continue
		}

		fmt.Fprintf(&route, "(?:%s(%s)%s)%s", prefix, tok.Pattern, suffix, tok.Modifier)
	}

	if opts.End {
		if !opts.Strict {
			route.WriteString(delimiterRe + "?")
		}

		route.WriteString("$")

		return route.String(), keys, nil
	}

	isEndDelimited := true
	if n := len(tokens); n > 0 {
		last := tokens[n-1]
		if last.param {
			isEndDelimited = false
		} else {
			runes := []rune(last.Literal)
			isEndDelimited = strings.ContainsRune(delimiterRe, runes[len(runes)-1])
		}
	}

	if !opts.Strict {
		route.WriteString("(?:" + delimiterRe + "(?=$))?")
	}

	if !isEndDelimited {
		route.WriteString("(?=" + delimiterRe + "|$)")
	}

	return route.String(), keys, nil
}

// escapeString escapes characters that are special in the assembled
// regular expression.
func escapeString(s string) string {
	var b strings.Builder

	for _, c := range s {
		if strings.ContainsRune(`.+*?=^!:${}()[]|/\`, c) {
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}

	return b.String()
}

// EscapePattern escapes the pattern syntax in a literal path so that it
// compiles to a matcher for exactly that text. Parameter syntax (":name")
// and the "*" modifier are left intact.
func EscapePattern(path string) string {
	var b strings.Builder

	for _, c := range path {
		if strings.ContainsRune(`.+?^${}()|[]\`, c) {
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}

	return b.String()
}
