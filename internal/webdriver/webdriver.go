// Package webdriver drives a real browser over the W3C WebDriver protocol
// (chromedriver and friends). It is the production implementation of
// browser.Session.
package webdriver

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"igmirror/pkg/browser"
	"igmirror/pkg/config"
	"igmirror/pkg/errors"
	"igmirror/pkg/logger"
)

// webElementID is the W3C element identifier key in wire payloads.
const webElementID = "element-6066-11e4-a52e-4f735466cecf"

// defaultPollInterval paces WaitUntil predicate checks.
const defaultPollInterval = 500 * time.Millisecond

// Client creates sessions against one WebDriver endpoint.
type Client struct {
	http *resty.Client
	cfg  config.WebDriverConfig
	log  logger.Logger
}

// New returns a Client for the configured WebDriver endpoint.
func New(cfg config.WebDriverConfig, log logger.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(60 * time.Second).
		SetHeader("Content-Type", "application/json")
	return &Client{http: httpClient, cfg: cfg, log: log}
}

type rpcValue struct {
	Value json.RawMessage `json:"value"`
}

type rpcError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NewSession starts a browser with the configured launch arguments and
// implicit wait, and returns it as a browser.Session.
func (c *Client) NewSession() (browser.Session, error) {
	args := append([]string{}, c.cfg.BrowserArgs...)
	if c.cfg.Language != "" {
		args = append(args, "--lang="+c.cfg.Language)
	}
	body := map[string]interface{}{
		"capabilities": map[string]interface{}{
			"alwaysMatch": map[string]interface{}{
				"browserName": "chrome",
				"goog:chromeOptions": map[string]interface{}{
					"args": args,
				},
			},
		},
	}

	resp, err := c.http.R().SetBody(body).Post("/session")
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeNetwork, "creating webdriver session", err)
	}
	if resp.IsError() {
		return nil, errors.New(errors.ErrorTypeSession,
			fmt.Sprintf("webdriver session refused: %s", wireMessage(resp)))
	}

	var payload struct {
		Value struct {
			SessionID string `json:"sessionId"`
		} `json:"value"`
	}
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, errors.Wrap(errors.ErrorTypeParse, "decoding session response", err)
	}
	if payload.Value.SessionID == "" {
		return nil, errors.New(errors.ErrorTypeSession, "webdriver returned empty session id")
	}

	s := &Session{
		http:         c.http,
		id:           payload.Value.SessionID,
		pollInterval: defaultPollInterval,
		log:          c.log,
	}
	if c.cfg.ImplicitWait > 0 {
		if err := s.setImplicitWait(c.cfg.ImplicitWait.Std()); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	c.log.DebugWithFields("webdriver session created", map[string]interface{}{
		"session_id": s.id,
	})
	return s, nil
}

// Session is one live browser, bound to a WebDriver session id.
type Session struct {
	http         *resty.Client
	id           string
	pollInterval time.Duration
	log          logger.Logger
}

func (s *Session) setImplicitWait(wait time.Duration) error {
	_, err := s.command("POST", "/timeouts", map[string]interface{}{
		"implicit": wait.Milliseconds(),
	})
	return err
}

func (s *Session) Navigate(url string) error {
	_, err := s.command("POST", "/url", map[string]string{"url": url})
	return err
}

func (s *Session) Find(sel browser.Selector) (browser.Element, bool, error) {
	return s.findFrom("/element", sel)
}

func (s *Session) FindAll(sel browser.Selector) ([]browser.Element, error) {
	return s.findAllFrom("/elements", sel)
}

// findFrom posts a locator to the given endpoint. A "no such element" reply
// is the Absent result, not an error.
func (s *Session) findFrom(path string, sel browser.Selector) (browser.Element, bool, error) {
	raw, err := s.commandAbsent("POST", path, locator(sel))
	if err != nil {
		return nil, false, err
	}
	if raw == nil {
		return nil, false, nil
	}
	id, err := decodeElementID(raw)
	if err != nil {
		return nil, false, err
	}
	return &element{session: s, id: id}, true, nil
}

func (s *Session) findAllFrom(path string, sel browser.Selector) ([]browser.Element, error) {
	raw, err := s.command("POST", path, locator(sel))
	if err != nil {
		return nil, err
	}
	var refs []map[string]string
	if err := json.Unmarshal(raw, &refs); err != nil {
		return nil, errors.Wrap(errors.ErrorTypeParse, "decoding element list", err)
	}
	out := make([]browser.Element, 0, len(refs))
	for _, ref := range refs {
		id, ok := ref[webElementID]
		if !ok {
			return nil, errors.New(errors.ErrorTypeParse, "element reference missing id key")
		}
		out = append(out, &element{session: s, id: id})
	}
	return out, nil
}

func (s *Session) ExecuteScript(js string, args ...interface{}) error {
	if args == nil {
		args = []interface{}{}
	}
	_, err := s.command("POST", "/execute/sync", map[string]interface{}{
		"script": js,
		"args":   args,
	})
	return err
}

// WaitUntil polls the predicate until it holds or the timeout lapses. A false
// return is a timeout, which callers may treat as data.
func (s *Session) WaitUntil(pred func() (bool, error), timeout time.Duration) (bool, error) {
	return browser.Poll(pred, timeout, s.pollInterval)
}

func (s *Session) Cookies() ([]browser.Cookie, error) {
	raw, err := s.command("GET", "/cookie", nil)
	if err != nil {
		return nil, err
	}
	var cookies []browser.Cookie
	if err := json.Unmarshal(raw, &cookies); err != nil {
		return nil, errors.Wrap(errors.ErrorTypeParse, "decoding cookies", err)
	}
	return cookies, nil
}

func (s *Session) AddCookie(c browser.Cookie) error {
	_, err := s.command("POST", "/cookie", map[string]interface{}{"cookie": c})
	return err
}

func (s *Session) Close() error {
	resp, err := s.http.R().Delete("/session/" + s.id)
	if err != nil {
		return errors.Wrap(errors.ErrorTypeNetwork, "deleting webdriver session", err)
	}
	if resp.IsError() {
		return errors.New(errors.ErrorTypeSession,
			fmt.Sprintf("deleting webdriver session: %s", wireMessage(resp)))
	}
	return nil
}

// command issues one session-scoped request and returns the raw value.
func (s *Session) command(method, path string, body interface{}) (json.RawMessage, error) {
	return s.request(method, "/session/"+s.id+path, body, false)
}

// commandAbsent is command with "no such element" mapped to a nil value.
func (s *Session) commandAbsent(method, path string, body interface{}) (json.RawMessage, error) {
	return s.request(method, "/session/"+s.id+path, body, true)
}

func (s *Session) request(method, url string, body interface{}, absentOK bool) (json.RawMessage, error) {
	req := s.http.R()
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, url)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeNetwork, "webdriver request", err)
	}
	if resp.IsError() {
		var failure rpcValue
		var details rpcError
		if json.Unmarshal(resp.Body(), &failure) == nil {
			_ = json.Unmarshal(failure.Value, &details)
		}
		if absentOK && details.Error == "no such element" {
			return nil, nil
		}
		return nil, errors.New(errors.ErrorTypeSession,
			fmt.Sprintf("webdriver %s %s: %s", method, url, wireMessage(resp)))
	}
	var value rpcValue
	if err := json.Unmarshal(resp.Body(), &value); err != nil {
		return nil, errors.Wrap(errors.ErrorTypeParse, "decoding webdriver response", err)
	}
	return value.Value, nil
}

func locator(sel browser.Selector) map[string]string {
	return map[string]string{"using": string(sel.By), "value": sel.Value}
}

func decodeElementID(raw json.RawMessage) (string, error) {
	var ref map[string]string
	if err := json.Unmarshal(raw, &ref); err != nil {
		return "", errors.Wrap(errors.ErrorTypeParse, "decoding element reference", err)
	}
	id, ok := ref[webElementID]
	if !ok {
		return "", errors.New(errors.ErrorTypeParse, "element reference missing id key")
	}
	return id, nil
}

func wireMessage(resp *resty.Response) string {
	var failure rpcValue
	var details rpcError
	if json.Unmarshal(resp.Body(), &failure) == nil && json.Unmarshal(failure.Value, &details) == nil && details.Message != "" {
		return fmt.Sprintf("%s (%s)", details.Message, details.Error)
	}
	return fmt.Sprintf("status %d", resp.StatusCode())
}

// element is one W3C web element handle.
type element struct {
	session *Session
	id      string
}

func (e *element) path(suffix string) string {
	return "/element/" + e.id + suffix
}

func (e *element) Click() error {
	_, err := e.session.command("POST", e.path("/click"), map[string]interface{}{})
	return err
}

func (e *element) Type(text string) error {
	_, err := e.session.command("POST", e.path("/value"), map[string]string{"text": text})
	return err
}

func (e *element) Text() (string, error) {
	raw, err := e.session.command("GET", e.path("/text"), nil)
	if err != nil {
		return "", err
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return "", errors.Wrap(errors.ErrorTypeParse, "decoding element text", err)
	}
	return text, nil
}

// Attr returns the attribute value; a null wire value is the Absent result.
func (e *element) Attr(name string) (string, bool, error) {
	raw, err := e.session.command("GET", e.path("/attribute/"+name), nil)
	if err != nil {
		return "", false, err
	}
	var value *string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", false, errors.Wrap(errors.ErrorTypeParse, "decoding attribute value", err)
	}
	if value == nil {
		return "", false, nil
	}
	return *value, true, nil
}

func (e *element) Find(sel browser.Selector) (browser.Element, bool, error) {
	return e.session.findFrom(e.path("/element"), sel)
}

func (e *element) FindAll(sel browser.Selector) ([]browser.Element, error) {
	return e.session.findAllFrom(e.path("/elements"), sel)
}

func (e *element) ScrollIntoView() error {
	return e.session.ExecuteScript("arguments[0].scrollIntoView(true);",
		map[string]string{webElementID: e.id})
}
