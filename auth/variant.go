package auth

import "github.com/hairizuanbinnoorazman/security-e2e/pagedriver"

// Variant is the identity-provider form the login page turned out to be.
type Variant int

const (
	// Legacy is the identifier-first form.
	Legacy Variant = iota
	// Redirecting is the form served while the provider carries a return URI.
	Redirecting
)

func (v Variant) String() string {
	switch v {
	case Redirecting:
		return "redirecting"
	default:
		return "legacy"
	}
}

// FormFields are the controls one variant submits through, in order.
type FormFields struct {
	Identity pagedriver.Selector
	Advance  pagedriver.Selector
	Secret   pagedriver.Selector
	Verify   pagedriver.Selector
}

// Layout holds the selectors of the identity provider and of the
// application's signed-in chrome.
type Layout struct {
	Legacy      FormFields
	Redirecting FormFields

	ErrorPanel   pagedriver.Selector
	AccessDenied pagedriver.Selector
	UserMenu     pagedriver.Selector
	Logout       pagedriver.Selector
}

// Fields looks up the form of v.
func (l Layout) Fields(v Variant) FormFields {
	if v == Redirecting {
		return l.Redirecting
	}
	return l.Legacy
}
