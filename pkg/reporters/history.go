package reporters

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/google/uuid"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/getmockd/netclient/pkg/client"
	"github.com/getmockd/netclient/pkg/stub"
)

// DefaultHistorySize is used when NewHistoryReporter gets a non-positive size.
const DefaultHistorySize = 1000

// maxBodySize caps the response body kept per entry.
const maxBodySize = 10 * 1024

// Entry is one recorded request outcome.
type Entry struct {
	ID        string    `json:"id"`
	RequestID string    `json:"requestId"`
	Timestamp time.Time `json:"timestamp"`

	Method string      `json:"method"`
	URL    string      `json:"url"`
	Params stub.Params `json:"params,omitempty"`

	StatusCode   int    `json:"statusCode,omitempty"`
	ContentType  string `json:"contentType,omitempty"`
	ResponseBody string `json:"responseBody,omitempty"`
	BodySize     int    `json:"bodySize"`

	Stubbed    bool   `json:"stubbed"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"durationMs"`
}

// Filter selects history entries. Zero fields match everything.
type Filter struct {
	// Method matches exactly.
	Method string
	// URLPrefix matches the start of the request URL.
	URLPrefix string
	// StatusCode matches exactly.
	StatusCode int
	Stubbed    *bool
	HasError   *bool

	// BodyPath is a JSONPath evaluated against the response body. With a nil
	// BodyValue the path only has to exist; otherwise one of its results must
	// equal BodyValue.
	BodyPath  string
	BodyValue any

	// Where is a boolean expr-lang expression over the Entry fields, for
	// example `StatusCode >= 500 || DurationMs > 250`.
	Where string

	Limit  int
	Offset int
}

// Validate reports a malformed BodyPath or Where expression.
func (f *Filter) Validate() error {
	if f == nil {
		return nil
	}
	var errs []error
	if f.BodyPath != "" {
		if _, err := jp.ParseString(f.BodyPath); err != nil {
			errs = append(errs, fmt.Errorf("invalid body path %q: %w", f.BodyPath, err))
		}
	}
	if f.Where != "" {
		if _, err := compileWhere(f.Where); err != nil {
			errs = append(errs, fmt.Errorf("invalid where expression %q: %w", f.Where, err))
		}
	}
	return errors.Join(errs...)
}

func compileWhere(expression string) (*vm.Program, error) {
	return expr.Compile(expression, expr.Env(Entry{}), expr.AsBool())
}

// ErrUnknownEntry is returned by Get for an ID not in the history.
var ErrUnknownEntry = errors.New("history entry not found")

// Subscriber receives entries as they are recorded.
type Subscriber chan *Entry

// HistoryReporter records request outcomes in a bounded FIFO buffer.
type HistoryReporter struct {
	mu         sync.RWMutex
	entries    []*Entry
	maxEntries int

	subMu       sync.RWMutex
	subscribers map[Subscriber]struct{}
}

// NewHistoryReporter keeps at most maxEntries entries, evicting the oldest.
func NewHistoryReporter(maxEntries int) *HistoryReporter {
	if maxEntries <= 0 {
		maxEntries = DefaultHistorySize
	}
	return &HistoryReporter{
		entries:     make([]*Entry, 0, min(maxEntries, 64)),
		maxEntries:  maxEntries,
		subscribers: make(map[Subscriber]struct{}),
	}
}

// BeforeSend implements client.Reporter.
func (h *HistoryReporter) BeforeSend(*client.Request) {}

// AfterReceive implements client.Reporter.
func (h *HistoryReporter) AfterReceive(req *client.Request, rc *client.Context) {
	e := &Entry{
		RequestID:  rc.ID,
		Timestamp:  rc.Started,
		Stubbed:    rc.Stubbed,
		DurationMs: rc.Duration.Milliseconds(),
	}
	if req != nil {
		e.Method = string(req.Method)
		e.URL = req.URL
		e.Params = copyParams(req.Params)
	}
	if resp := rc.Response; resp != nil {
		e.StatusCode = resp.StatusCode
		e.ContentType = resp.Header.Get("Content-Type")
		e.BodySize = len(resp.Body)
		body := resp.Body
		if len(body) > maxBodySize {
			body = body[:maxBodySize]
		}
		e.ResponseBody = string(body)
	}
	if rc.Err != nil {
		e.Error = rc.Err.Error()
	}
	h.Record(e)
}

// copyParams returns a deep copy of params so later changes to the request do
// not leak into recorded history.
func copyParams(params stub.Params) stub.Params {
	if params == nil {
		return nil
	}
	if v, err := stub.NormalizeValue(params); err == nil {
		if m, ok := v.(map[string]any); ok {
			return m
		}
	}
	return maps.Clone(params)
}

// Record appends e, assigning an ID and timestamp when missing, and notifies
// subscribers without blocking.
func (h *HistoryReporter) Record(e *Entry) {
	if e == nil {
		return
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	h.mu.Lock()
	if len(h.entries) >= h.maxEntries {
		h.entries[0] = nil
		h.entries = h.entries[1:]
	}
	h.entries = append(h.entries, e)
	h.mu.Unlock()

	h.subMu.RLock()
	defer h.subMu.RUnlock()
	for sub := range h.subscribers {
		select {
		case sub <- e:
		default:
			// slow subscriber, drop
		}
	}
}

// Get returns the entry with the given ID.
func (h *HistoryReporter) Get(id string) (*Entry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, e := range h.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownEntry, id)
}

// List returns matching entries, newest first.
func (h *HistoryReporter) List(filter *Filter) []*Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var (
		path  jp.Expr
		where *vm.Program
	)
	if filter != nil && filter.BodyPath != "" {
		x, err := jp.ParseString(filter.BodyPath)
		if err != nil {
			return []*Entry{}
		}
		path = x
	}
	if filter != nil && filter.Where != "" {
		program, err := compileWhere(filter.Where)
		if err != nil {
			return []*Entry{}
		}
		where = program
	}

	result := make([]*Entry, 0, len(h.entries))
	for i := len(h.entries) - 1; i >= 0; i-- {
		e := h.entries[i]
		if filter != nil && !matches(e, filter, path) {
			continue
		}
		if where != nil && !evalWhere(where, e) {
			continue
		}
		result = append(result, e)
	}

	if filter != nil {
		if filter.Offset > 0 {
			if filter.Offset >= len(result) {
				return []*Entry{}
			}
			result = result[filter.Offset:]
		}
		if filter.Limit > 0 && filter.Limit < len(result) {
			result = result[:filter.Limit]
		}
	}
	return result
}

func matches(e *Entry, f *Filter, path jp.Expr) bool {
	if f.Method != "" && e.Method != f.Method {
		return false
	}
	if f.URLPrefix != "" && !strings.HasPrefix(e.URL, f.URLPrefix) {
		return false
	}
	if f.StatusCode != 0 && e.StatusCode != f.StatusCode {
		return false
	}
	if f.Stubbed != nil && e.Stubbed != *f.Stubbed {
		return false
	}
	if f.HasError != nil && (e.Error != "") != *f.HasError {
		return false
	}
	if path != nil {
		return matchesBody(e.ResponseBody, path, f.BodyValue)
	}
	return true
}

func evalWhere(program *vm.Program, e *Entry) bool {
	out, err := expr.Run(program, *e)
	if err != nil {
		return false
	}
	ok, _ := out.(bool)
	return ok
}

func matchesBody(body string, path jp.Expr, want any) bool {
	if body == "" {
		return false
	}
	doc, err := oj.ParseString(body)
	if err != nil {
		return false
	}
	results := path.Get(doc)
	if want == nil {
		return len(results) > 0
	}
	for _, got := range results {
		if stub.EqualValues(got, want) {
			return true
		}
	}
	return false
}

// Count returns the number of retained entries.
func (h *HistoryReporter) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Clear drops every entry.
func (h *HistoryReporter) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	clear(h.entries)
	h.entries = h.entries[:0]
}

// Subscribe returns a channel receiving new entries and a function that
// unsubscribes and closes it. Entries are dropped for a full channel.
func (h *HistoryReporter) Subscribe() (Subscriber, func()) {
	ch := make(Subscriber, 100)
	h.subMu.Lock()
	h.subscribers[ch] = struct{}{}
	h.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.subMu.Lock()
			delete(h.subscribers, ch)
			h.subMu.Unlock()
			close(ch)
		})
	}
}

var _ client.Reporter = (*HistoryReporter)(nil)
