package pagedriver

import (
	"fmt"
	"regexp"
	"strings"
)

// Strategy names how a Selector finds elements.
type Strategy string

const (
	ByCSS         Strategy = "css"
	ByRole        Strategy = "role"
	ByPlaceholder Strategy = "placeholder"
	ByText        Strategy = "text"
	ByLabel       Strategy = "label"
)

// Pick narrows a multi-element match.
type Pick int

const (
	PickAll Pick = iota
	PickFirst
	PickLast
)

// Selector is a declarative element query. Selectors are plain data so the
// target application's markup can live in fixture tables; a driver turns
// them into live locators.
//
// Text-like values (role names, placeholders, text and labels) are
// case-insensitive regular expressions unless Exact is set.
type Selector struct {
	Strategy Strategy
	Value    string // css selector, aria role, or text pattern
	Name     string // accessible-name pattern for ByRole
	Exact    bool

	Scope *Selector // resolve inside this element
	Alt   *Selector // union with another query
	Pick  Pick
}

// CSS selects by css selector.
func CSS(selector string) Selector {
	return Selector{Strategy: ByCSS, Value: selector}
}

// Role selects by aria role and accessible name pattern.
func Role(role, name string) Selector {
	return Selector{Strategy: ByRole, Value: role, Name: name}
}

// Placeholder selects inputs by placeholder pattern.
func Placeholder(pattern string) Selector {
	return Selector{Strategy: ByPlaceholder, Value: pattern}
}

// Text selects by visible text pattern.
func Text(pattern string) Selector {
	return Selector{Strategy: ByText, Value: pattern}
}

// Label selects form controls by their label pattern.
func Label(pattern string) Selector {
	return Selector{Strategy: ByLabel, Value: pattern}
}

// LiteralText selects by a literal substring of visible text.
func LiteralText(text string) Selector {
	return Selector{Strategy: ByText, Value: regexp.QuoteMeta(text)}
}

// In returns a copy of s scoped to the element matched by scope. An
// alternative is scoped too.
func (s Selector) In(scope Selector) Selector {
	s.Scope = &scope
	if s.Alt != nil {
		alt := s.Alt.In(scope)
		s.Alt = &alt
	}
	return s
}

// Or returns a selector matching either s or alt.
func (s Selector) Or(alt Selector) Selector {
	s.Alt = &alt
	return s
}

// First returns a copy of s narrowed to the first match.
func (s Selector) First() Selector {
	s.Pick = PickFirst
	return s
}

// Last returns a copy of s narrowed to the last match.
func (s Selector) Last() Selector {
	s.Pick = PickLast
	return s
}

// Pattern compiles a text-like value into the case-insensitive regexp a
// driver should match against.
func Pattern(value string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?i)" + value)
	if err != nil {
		return nil, fmt.Errorf("invalid selector pattern %q: %w", value, err)
	}
	return re, nil
}

// String renders s in a stable form. The fake driver keys its elements by
// this value, so two equal selectors always render the same string.
func (s Selector) String() string {
	var b strings.Builder
	if s.Scope != nil {
		b.WriteString(s.Scope.String())
		b.WriteString(" >> ")
	}
	switch s.Strategy {
	case ByRole:
		fmt.Fprintf(&b, "role=%s[name=/%s/i]", s.Value, s.Name)
	case ByCSS:
		b.WriteString(s.Value)
	default:
		fmt.Fprintf(&b, "%s=/%s/i", s.Strategy, s.Value)
	}
	if s.Exact {
		b.WriteString("[exact]")
	}
	if s.Alt != nil {
		b.WriteString(" || ")
		b.WriteString(s.Alt.String())
	}
	switch s.Pick {
	case PickFirst:
		b.WriteString(" >> first")
	case PickLast:
		b.WriteString(" >> last")
	}
	return b.String()
}
