// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package space

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// maxDepth bounds descriptor nesting. Deeper text is rejected rather
// than risking unbounded recursion on hostile input.
const maxDepth = 64

// knownPrefixes are module paths the simulator side may emit in front
// of a variant name. They carry no meaning and are stripped.
var knownPrefixes = []string{"gym.spaces.", "gymnasium.spaces.", "spaces."}

var variants = []string{"Discrete", "Box", "MultiDiscrete", "MultiBinary", "Tuple", "Dict"}

func isVariant(name string) bool {
	return slices.Contains(variants, name)
}

func stripPrefix(name string) string {
	for _, prefix := range knownPrefixes {
		if strings.HasPrefix(name, prefix) {
			return strings.TrimPrefix(name, prefix)
		}
	}
	return name
}

// leadingIdentifier returns the identifier text starts with, after
// whitespace, and its offset. It is empty when text starts otherwise.
func leadingIdentifier(text string) (string, int) {
	start := 0
	for start < len(text) && isSpace(rune(text[start])) {
		start++
	}
	if start == len(text) || !isIdentStart(rune(text[start])) {
		return "", start
	}
	end := start + 1
	for end < len(text) && isIdentPart(rune(text[end])) {
		end++
	}
	return text[start:end], start
}

// ParseError reports descriptor text that does not follow the grammar
// or describes an inconsistent space.
type ParseError struct {
	Input  string
	Offset int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing space descriptor %q at offset %d: %s", e.Input, e.Offset, e.Reason)
}

// Parse reads a descriptor from its text form. See the package
// documentation for accepted spellings.
func Parse(text string) (Descriptor, error) {
	// The variant name is checked before lexing so text that is not a
	// descriptor at all is reported as such, not by its first odd
	// character.
	if name, offset := leadingIdentifier(text); name != "" && !isVariant(stripPrefix(name)) {
		return Descriptor{}, &ParseError{Input: text, Offset: offset, Reason: fmt.Sprintf("unknown space variant %q", name)}
	}
	tokens, err := lex(text)
	if err != nil {
		return Descriptor{}, err
	}
	p := &parser{input: text, tokens: tokens}
	descriptor, err := p.descriptor(0)
	if err != nil {
		return Descriptor{}, err
	}
	if token := p.peek(); token.kind != tokenEOF {
		return Descriptor{}, p.errorAt(token, "unexpected %q after descriptor", token.text)
	}
	if err := descriptor.Check(); err != nil {
		return Descriptor{}, &ParseError{Input: text, Offset: len(text), Reason: err.Error()}
	}
	return descriptor, nil
}

// MustParse is Parse for literals in tests and fixed tables. It panics
// on error.
func MustParse(text string) Descriptor {
	descriptor, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return descriptor
}

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenIdent
	tokenNumber
	tokenString
	tokenPunct
)

type token struct {
	kind   tokenKind
	text   string
	offset int
}

func lex(input string) ([]token, error) {
	var tokens []token
	position := 0
	for {
		for position < len(input) && isSpace(rune(input[position])) {
			position++
		}
		if position >= len(input) {
			tokens = append(tokens, token{kind: tokenEOF, offset: position})
			return tokens, nil
		}

		start := position
		current := rune(input[position])
		var following rune
		if position+1 < len(input) {
			following = rune(input[position+1])
		}

		switch {
		case isIdentStart(current) || ((current == '-' || current == '+') && isIdentStart(following)):
			position++
			for position < len(input) && isIdentPart(rune(input[position])) {
				position++
			}
			tokens = append(tokens, token{kind: tokenIdent, text: input[start:position], offset: start})

		case isDigit(current) || (current == '.' && isDigit(following)) ||
			((current == '-' || current == '+') && (isDigit(following) || following == '.')):
			position++
			for position < len(input) {
				c := input[position]
				if isDigit(rune(c)) || c == '.' {
					position++
					continue
				}
				if (c == 'e' || c == 'E') && position+1 < len(input) {
					position++
					if input[position] == '+' || input[position] == '-' {
						position++
					}
					continue
				}
				break
			}
			tokens = append(tokens, token{kind: tokenNumber, text: input[start:position], offset: start})

		case current == '"' || current == '\'':
			var builder strings.Builder
			position++
			closed := false
			for position < len(input) {
				c := input[position]
				if c == '\\' && position+1 < len(input) {
					builder.WriteByte(input[position+1])
					position += 2
					continue
				}
				position++
				if rune(c) == current {
					closed = true
					break
				}
				builder.WriteByte(c)
			}
			if !closed {
				return nil, &ParseError{Input: input, Offset: start, Reason: "unterminated string"}
			}
			tokens = append(tokens, token{kind: tokenString, text: builder.String(), offset: start})

		case strings.ContainsRune("()[]{},:=", current):
			position++
			tokens = append(tokens, token{kind: tokenPunct, text: string(current), offset: start})

		default:
			return nil, &ParseError{Input: input, Offset: start, Reason: fmt.Sprintf("unexpected character %q", current)}
		}
	}
}

func isSpace(r rune) bool      { return r == ' ' || r == '\t' || r == '\n' || r == '\r' }
func isDigit(r rune) bool      { return r >= '0' && r <= '9' }
func isIdentStart(r rune) bool { return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') }
func isIdentPart(r rune) bool  { return isIdentStart(r) || isDigit(r) || r == '.' }

type parser struct {
	input    string
	tokens   []token
	position int
}

func (p *parser) peek() token {
	return p.tokens[p.position]
}

func (p *parser) advance() token {
	current := p.tokens[p.position]
	if current.kind != tokenEOF {
		p.position++
	}
	return current
}

func (p *parser) isPunct(text string) bool {
	current := p.peek()
	return current.kind == tokenPunct && current.text == text
}

func (p *parser) acceptPunct(text string) bool {
	if p.isPunct(text) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) expectPunct(text string) error {
	if !p.acceptPunct(text) {
		current := p.peek()
		return p.errorAt(current, "expected %q, found %s", text, describe(current))
	}
	return nil
}

func (p *parser) errorAt(at token, format string, args ...any) *ParseError {
	return &ParseError{Input: p.input, Offset: at.offset, Reason: fmt.Sprintf(format, args...)}
}

func describe(t token) string {
	if t.kind == tokenEOF {
		return "end of input"
	}
	return strconv.Quote(t.text)
}

// descriptor parses one variant expression.
func (p *parser) descriptor(depth int) (Descriptor, error) {
	head := p.peek()
	if depth > maxDepth {
		return Descriptor{}, p.errorAt(head, "nesting deeper than %d levels", maxDepth)
	}
	if head.kind != tokenIdent {
		return Descriptor{}, p.errorAt(head, "expected a space variant, found %s", describe(head))
	}
	p.advance()
	name := stripPrefix(head.text)
	if err := p.expectPunct("("); err != nil {
		return Descriptor{}, err
	}

	switch name {
	case "Discrete":
		return p.discrete(head)
	case "Box":
		return p.box(head)
	case "MultiDiscrete":
		return p.multiDiscrete(head)
	case "MultiBinary":
		return p.multiBinary(head)
	case "Tuple":
		return p.tuple(depth)
	case "Dict":
		return p.dict(depth)
	default:
		return Descriptor{}, p.errorAt(head, "unknown space variant %q", head.text)
	}
}

// literal is a numeric argument: a scalar, a (possibly nested) list,
// or a bare word such as a dtype name.
type literal struct {
	numbers []float64
	dims    []int
	isList  bool
	word    string
}

type argument struct {
	key   string
	value literal
	at    token
}

// arguments parses a comma-separated argument list up to and including
// the closing parenthesis.
func (p *parser) arguments() ([]argument, error) {
	var arguments []argument
	for !p.acceptPunct(")") {
		at := p.peek()
		var key string
		if at.kind == tokenIdent && p.tokens[p.position+1].kind == tokenPunct && p.tokens[p.position+1].text == "=" {
			key = at.text
			p.advance()
			p.advance()
		}
		value, err := p.literal()
		if err != nil {
			return nil, err
		}
		arguments = append(arguments, argument{key: key, value: value, at: at})
		if !p.acceptPunct(",") {
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			break
		}
	}
	return arguments, nil
}

func (p *parser) literal() (literal, error) {
	current := p.peek()
	switch {
	case current.kind == tokenNumber:
		p.advance()
		number, err := strconv.ParseFloat(current.text, 64)
		if err != nil {
			return literal{}, p.errorAt(current, "invalid number %q", current.text)
		}
		return literal{numbers: []float64{number}}, nil

	case current.kind == tokenIdent || current.kind == tokenString:
		p.advance()
		if number, ok := infinity(current.text); ok {
			return literal{numbers: []float64{number}}, nil
		}
		return literal{word: current.text}, nil

	case p.isPunct("[") || p.isPunct("("):
		closing := "]"
		if current.text == "(" {
			closing = ")"
		}
		p.advance()
		result := literal{isList: true, numbers: []float64{}}
		var childDims []int
		count := 0
		for !p.acceptPunct(closing) {
			element, err := p.literal()
			if err != nil {
				return literal{}, err
			}
			if element.word != "" {
				return literal{}, p.errorAt(current, "list element %q is not a number", element.word)
			}
			if count == 0 {
				childDims = element.dims
			} else if !equalInts(childDims, element.dims) {
				return literal{}, p.errorAt(current, "ragged nested list")
			}
			result.numbers = append(result.numbers, element.numbers...)
			count++
			if !p.acceptPunct(",") {
				if err := p.expectPunct(closing); err != nil {
					return literal{}, err
				}
				break
			}
		}
		result.dims = append([]int{count}, childDims...)
		return result, nil

	default:
		return literal{}, p.errorAt(current, "expected a value, found %s", describe(current))
	}
}

func infinity(word string) (float64, bool) {
	sign := 1.0
	switch {
	case strings.HasPrefix(word, "-"):
		sign = -1
		word = word[1:]
	case strings.HasPrefix(word, "+"):
		word = word[1:]
	}
	switch word {
	case "inf", "Infinity", "np.inf", "numpy.inf", "math.inf":
		return math.Inf(int(sign)), true
	}
	return 0, false
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (p *parser) integer(argument argument) (int64, error) {
	if argument.value.isList || len(argument.value.numbers) != 1 {
		return 0, p.errorAt(argument.at, "expected an integer")
	}
	number := argument.value.numbers[0]
	if number != math.Trunc(number) || math.IsInf(number, 0) || math.Abs(number) > 1<<53 {
		return 0, p.errorAt(argument.at, "%v is not an integer", number)
	}
	return int64(number), nil
}

// split separates positional from keyword arguments and rejects
// keywords outside allowed.
func (p *parser) split(arguments []argument, allowed ...string) ([]argument, map[string]argument, error) {
	var positional []argument
	keywords := make(map[string]argument)
	for _, argument := range arguments {
		if argument.key == "" {
			if len(keywords) > 0 {
				return nil, nil, p.errorAt(argument.at, "positional argument after keyword argument")
			}
			positional = append(positional, argument)
			continue
		}
		known := false
		for _, name := range allowed {
			if argument.key == name {
				known = true
				break
			}
		}
		if !known {
			return nil, nil, p.errorAt(argument.at, "unknown argument %q", argument.key)
		}
		if _, duplicate := keywords[argument.key]; duplicate {
			return nil, nil, p.errorAt(argument.at, "argument %q given twice", argument.key)
		}
		keywords[argument.key] = argument
	}
	return positional, keywords, nil
}

// pick returns the positional argument at index or the keyword
// argument with the given name.
func (p *parser) pick(positional []argument, keywords map[string]argument, index int, name string) (argument, bool, error) {
	keyword, hasKeyword := keywords[name]
	if index < len(positional) {
		if hasKeyword {
			return argument{}, false, p.errorAt(keyword.at, "argument %q given twice", name)
		}
		return positional[index], true, nil
	}
	return keyword, hasKeyword, nil
}

func (p *parser) discrete(head token) (Descriptor, error) {
	arguments, err := p.arguments()
	if err != nil {
		return Descriptor{}, err
	}
	positional, keywords, err := p.split(arguments, "n", "start", "seed", "dtype")
	if err != nil {
		return Descriptor{}, err
	}
	if len(positional) > 2 {
		return Descriptor{}, p.errorAt(head, "Discrete takes at most 2 positional arguments")
	}
	countArgument, ok, err := p.pick(positional, keywords, 0, "n")
	if err != nil {
		return Descriptor{}, err
	}
	if !ok {
		return Descriptor{}, p.errorAt(head, "Discrete needs n")
	}
	count, err := p.integer(countArgument)
	if err != nil {
		return Descriptor{}, err
	}
	descriptor := Discrete(count)
	if startArgument, ok, err := p.pick(positional, keywords, 1, "start"); err != nil {
		return Descriptor{}, err
	} else if ok {
		if descriptor.Start, err = p.integer(startArgument); err != nil {
			return Descriptor{}, err
		}
	}
	return descriptor, nil
}

func (p *parser) box(head token) (Descriptor, error) {
	arguments, err := p.arguments()
	if err != nil {
		return Descriptor{}, err
	}
	positional, keywords, err := p.split(arguments, "low", "high", "shape", "dtype", "seed")
	if err != nil {
		return Descriptor{}, err
	}

	var low, high, shape argument
	var hasLow, hasHigh, hasShape bool
	switch len(positional) {
	case 0:
	case 1:
		// Box([4]) is the shape-only form.
		shape, hasShape = positional[0], true
	case 2, 3:
		low, hasLow = positional[0], true
		high, hasHigh = positional[1], true
		if len(positional) == 3 {
			shape, hasShape = positional[2], true
		}
	default:
		return Descriptor{}, p.errorAt(head, "Box takes at most 3 positional arguments")
	}
	for name, target := range map[string]struct {
		argument *argument
		present  *bool
	}{
		"low":   {&low, &hasLow},
		"high":  {&high, &hasHigh},
		"shape": {&shape, &hasShape},
	} {
		if keyword, ok := keywords[name]; ok {
			if *target.present {
				return Descriptor{}, p.errorAt(keyword.at, "argument %q given twice", name)
			}
			*target.argument, *target.present = keyword, true
		}
	}

	var dimensions []int
	switch {
	case hasShape:
		for _, number := range shape.value.numbers {
			if number != math.Trunc(number) || number < 1 || number > math.MaxInt32 {
				return Descriptor{}, p.errorAt(shape.at, "invalid Box dimension %v", number)
			}
			dimensions = append(dimensions, int(number))
		}
		if len(dimensions) == 0 {
			return Descriptor{}, p.errorAt(shape.at, "Box shape is empty")
		}
	case hasLow && low.value.isList:
		dimensions = low.value.dims
	case hasHigh && high.value.isList:
		dimensions = high.value.dims
	default:
		return Descriptor{}, p.errorAt(head, "Box needs a shape or array bounds")
	}

	descriptor := UnboundedBox(dimensions...)
	size := len(descriptor.Low)
	if hasLow {
		if err := p.bounds(low, descriptor.Low, size); err != nil {
			return Descriptor{}, err
		}
	}
	if hasHigh {
		if err := p.bounds(high, descriptor.High, size); err != nil {
			return Descriptor{}, err
		}
	}
	return descriptor, nil
}

// bounds broadcasts a scalar bound or copies an array bound into target.
func (p *parser) bounds(argument argument, target []float64, size int) error {
	numbers := argument.value.numbers
	switch {
	case argument.value.word != "":
		return p.errorAt(argument.at, "Box bound %q is not a number", argument.value.word)
	case !argument.value.isList && len(numbers) == 1:
		for i := range target {
			target[i] = numbers[0]
		}
	case len(numbers) == size:
		copy(target, numbers)
	default:
		return p.errorAt(argument.at, "Box bound has %d elements, shape needs %d", len(numbers), size)
	}
	return nil
}

func (p *parser) multiDiscrete(head token) (Descriptor, error) {
	arguments, err := p.arguments()
	if err != nil {
		return Descriptor{}, err
	}
	positional, keywords, err := p.split(arguments, "nvec", "dtype", "seed", "start")
	if err != nil {
		return Descriptor{}, err
	}
	if _, hasStart := keywords["start"]; hasStart {
		return Descriptor{}, p.errorAt(head, "MultiDiscrete start offsets are not supported")
	}

	var numbers []float64
	if nvec, ok := keywords["nvec"]; ok {
		if len(positional) > 0 {
			return Descriptor{}, p.errorAt(nvec.at, "argument \"nvec\" given twice")
		}
		numbers = nvec.value.numbers
	} else if len(positional) == 1 && positional[0].value.isList {
		numbers = positional[0].value.numbers
	} else {
		for _, argument := range positional {
			if argument.value.isList {
				return Descriptor{}, p.errorAt(argument.at, "expected a list of counts")
			}
			numbers = append(numbers, argument.value.numbers...)
		}
	}

	counts := make([]int64, 0, len(numbers))
	for _, number := range numbers {
		if number != math.Trunc(number) || math.IsInf(number, 0) {
			return Descriptor{}, p.errorAt(head, "MultiDiscrete count %v is not an integer", number)
		}
		counts = append(counts, int64(number))
	}
	return MultiDiscrete(counts...), nil
}

func (p *parser) multiBinary(head token) (Descriptor, error) {
	arguments, err := p.arguments()
	if err != nil {
		return Descriptor{}, err
	}
	positional, keywords, err := p.split(arguments, "n", "seed")
	if err != nil {
		return Descriptor{}, err
	}
	countArgument, ok, err := p.pick(positional, keywords, 0, "n")
	if err != nil {
		return Descriptor{}, err
	}
	if !ok || len(positional) > 1 {
		return Descriptor{}, p.errorAt(head, "MultiBinary takes exactly one size argument")
	}
	if countArgument.value.isList {
		// MultiBinary([2, 3]) flattens to six flags.
		total := int64(1)
		for _, number := range countArgument.value.numbers {
			if number != math.Trunc(number) || number < 1 {
				return Descriptor{}, p.errorAt(countArgument.at, "invalid MultiBinary dimension %v", number)
			}
			total *= int64(number)
		}
		return MultiBinary(total), nil
	}
	count, err := p.integer(countArgument)
	if err != nil {
		return Descriptor{}, err
	}
	return MultiBinary(count), nil
}

func (p *parser) tuple(depth int) (Descriptor, error) {
	closing := ")"
	wrapped := false
	if p.isPunct("(") || p.isPunct("[") {
		if p.peek().text == "[" {
			closing = "]"
		}
		p.advance()
		wrapped = true
	}

	var elements []Descriptor
	for !p.acceptPunct(closing) {
		element, err := p.descriptor(depth + 1)
		if err != nil {
			return Descriptor{}, err
		}
		elements = append(elements, element)
		if !p.acceptPunct(",") {
			if err := p.expectPunct(closing); err != nil {
				return Descriptor{}, err
			}
			break
		}
	}
	if wrapped {
		p.acceptPunct(",")
		if err := p.expectPunct(")"); err != nil {
			return Descriptor{}, err
		}
	}
	return Tuple(elements...), nil
}

func (p *parser) dict(depth int) (Descriptor, error) {
	closing := ")"
	braced := p.acceptPunct("{")
	if braced {
		closing = "}"
	}

	fields := make(map[string]Descriptor)
	for !p.acceptPunct(closing) {
		keyToken := p.peek()
		if keyToken.kind != tokenIdent && keyToken.kind != tokenString {
			return Descriptor{}, p.errorAt(keyToken, "expected a Dict key, found %s", describe(keyToken))
		}
		p.advance()
		if !p.acceptPunct(":") && (braced || !p.acceptPunct("=")) {
			current := p.peek()
			return Descriptor{}, p.errorAt(current, "expected \":\" after Dict key, found %s", describe(current))
		}
		if _, duplicate := fields[keyToken.text]; duplicate {
			return Descriptor{}, p.errorAt(keyToken, "duplicate Dict key %q", keyToken.text)
		}
		field, err := p.descriptor(depth + 1)
		if err != nil {
			return Descriptor{}, err
		}
		fields[keyToken.text] = field
		if !p.acceptPunct(",") {
			if err := p.expectPunct(closing); err != nil {
				return Descriptor{}, err
			}
			break
		}
	}
	if braced {
		if err := p.expectPunct(")"); err != nil {
			return Descriptor{}, err
		}
	}
	return Descriptor{Kind: KindDict, Fields: fields}, nil
}
