// Package browser defines the browsing-session abstraction the page readers
// are written against. A Session is one authenticated browsing context bound
// to an account; element queries return an explicit present/absent result so
// callers can treat legitimately-missing UI as data rather than as an error.
package browser

import "time"

// By selects the element query strategy.
type By string

const (
	ByXPath By = "xpath"
	ByCSS   By = "css selector"
)

// Selector pairs a query strategy with its expression.
type Selector struct {
	By    By
	Value string
}

// XPath builds an XPath selector.
func XPath(expr string) Selector { return Selector{By: ByXPath, Value: expr} }

// CSS builds a CSS selector.
func CSS(expr string) Selector { return Selector{By: ByCSS, Value: expr} }

// Element is one rendered DOM node. Find/FindAll query within the element's
// subtree.
type Element interface {
	Click() error
	Type(text string) error
	Text() (string, error)
	// Attr returns the attribute value and whether the attribute exists.
	Attr(name string) (string, bool, error)
	Find(sel Selector) (Element, bool, error)
	FindAll(sel Selector) ([]Element, error)
	ScrollIntoView() error
}

// Cookie is one browser cookie, round-tripped through the account's opaque
// cookie blob.
type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain,omitempty"`
	Path     string `json:"path,omitempty"`
	Expiry   int64  `json:"expiry,omitempty"`
	Secure   bool   `json:"secure,omitempty"`
	HTTPOnly bool   `json:"httpOnly,omitempty"`
}

// Session is one browsing context. All operations block; the only bounded
// suspension is WaitUntil, whose timeout is data, not failure.
type Session interface {
	Navigate(url string) error
	// Find returns the first match, or found=false when the selector
	// matches nothing. An error means the session itself failed.
	Find(sel Selector) (Element, bool, error)
	FindAll(sel Selector) ([]Element, error)
	ExecuteScript(js string, args ...interface{}) error
	// WaitUntil polls pred until it reports true or the timeout elapses.
	// The return value distinguishes satisfied from timed out.
	WaitUntil(pred func() (bool, error), timeout time.Duration) (bool, error)
	Cookies() ([]Cookie, error)
	AddCookie(c Cookie) error
	Close() error
}

// Poll is the shared WaitUntil loop: check pred every interval until it
// reports true or the timeout elapses.
func Poll(pred func() (bool, error), timeout, interval time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := pred()
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		time.Sleep(interval)
	}
}
