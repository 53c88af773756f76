package browser

import (
	"fmt"
	"sync"
	"time"
)

// FakeElement is an in-memory DOM node for tests.
type FakeElement struct {
	TextValue string
	Attrs     map[string]string
	// Children maps selector expressions to nodes found within this
	// element's subtree.
	Children map[string][]*FakeElement
	// OnClick, when set, runs on every click. Lets tests mutate the fake
	// page, e.g. advancing a carousel.
	OnClick func() error

	Clicks int
	Typed  []string
}

func (e *FakeElement) Click() error {
	e.Clicks++
	if e.OnClick != nil {
		return e.OnClick()
	}
	return nil
}

func (e *FakeElement) Type(text string) error {
	e.Typed = append(e.Typed, text)
	return nil
}

func (e *FakeElement) Text() (string, error) { return e.TextValue, nil }

func (e *FakeElement) Attr(name string) (string, bool, error) {
	v, ok := e.Attrs[name]
	return v, ok, nil
}

func (e *FakeElement) Find(sel Selector) (Element, bool, error) {
	nodes := e.Children[sel.Value]
	if len(nodes) == 0 {
		return nil, false, nil
	}
	return nodes[0], true, nil
}

func (e *FakeElement) FindAll(sel Selector) ([]Element, error) {
	nodes := e.Children[sel.Value]
	out := make([]Element, len(nodes))
	for i, n := range nodes {
		out[i] = n
	}
	return out, nil
}

func (e *FakeElement) ScrollIntoView() error { return nil }

// FakeSession is an in-memory Session for tests. Nodes maps selector
// expressions to the elements currently "rendered"; tests mutate it (directly
// or from OnScript hooks) to simulate async page changes.
type FakeSession struct {
	mu sync.Mutex

	Nodes       map[string][]*FakeElement
	CookieJar   []Cookie
	Navigations []string
	Scripts     []string
	// OnScript, when set, runs for every executed script. Simulates the
	// page reacting to scrolls.
	OnScript func(js string)
	// OnNavigate, when set, runs after every navigation. Lets a test swap
	// the rendered nodes per URL.
	OnNavigate func(url string)
	// PollInterval defaults to a millisecond so WaitUntil timeouts stay
	// cheap in tests.
	PollInterval time.Duration

	Closed bool
}

// NewFakeSession creates an empty fake session.
func NewFakeSession() *FakeSession {
	return &FakeSession{
		Nodes:        make(map[string][]*FakeElement),
		PollInterval: time.Millisecond,
	}
}

// SetNodes replaces the rendered elements for a selector expression.
func (s *FakeSession) SetNodes(sel string, nodes ...*FakeElement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Nodes[sel] = nodes
}

// AppendNode adds a rendered element for a selector expression.
func (s *FakeSession) AppendNode(sel string, node *FakeElement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Nodes[sel] = append(s.Nodes[sel], node)
}

// RemoveNodes clears the rendered elements for a selector expression.
func (s *FakeSession) RemoveNodes(sel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Nodes, sel)
}

func (s *FakeSession) Navigate(url string) error {
	s.mu.Lock()
	if s.Closed {
		s.mu.Unlock()
		return fmt.Errorf("session closed")
	}
	s.Navigations = append(s.Navigations, url)
	hook := s.OnNavigate
	s.mu.Unlock()
	if hook != nil {
		hook(url)
	}
	return nil
}

func (s *FakeSession) Find(sel Selector) (Element, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nodes := s.Nodes[sel.Value]
	if len(nodes) == 0 {
		return nil, false, nil
	}
	return nodes[0], true, nil
}

func (s *FakeSession) FindAll(sel Selector) ([]Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nodes := s.Nodes[sel.Value]
	out := make([]Element, len(nodes))
	for i, n := range nodes {
		out[i] = n
	}
	return out, nil
}

func (s *FakeSession) ExecuteScript(js string, args ...interface{}) error {
	s.mu.Lock()
	s.Scripts = append(s.Scripts, js)
	hook := s.OnScript
	s.mu.Unlock()
	if hook != nil {
		hook(js)
	}
	return nil
}

func (s *FakeSession) WaitUntil(pred func() (bool, error), timeout time.Duration) (bool, error) {
	interval := s.PollInterval
	if interval <= 0 {
		interval = time.Millisecond
	}
	return Poll(pred, timeout, interval)
}

func (s *FakeSession) Cookies() ([]Cookie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Cookie, len(s.CookieJar))
	copy(out, s.CookieJar)
	return out, nil
}

// AddCookie mirrors real driver behavior: the initial blank document is
// cookie-averse, so cookies are only accepted once a page has been visited.
func (s *FakeSession) AddCookie(c Cookie) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Navigations) == 0 {
		return fmt.Errorf("invalid cookie domain: no document loaded")
	}
	s.CookieJar = append(s.CookieJar, c)
	return nil
}

func (s *FakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}
