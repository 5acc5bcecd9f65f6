package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/getmockd/netclient/pkg/logging"
	"github.com/getmockd/netclient/pkg/registry"
	"github.com/getmockd/netclient/pkg/stub"
)

// DispatchMode selects how reporter hooks are invoked.
type DispatchMode int

const (
	// DispatchParallel runs every hook on its own goroutine without waiting
	// for it.
	DispatchParallel DispatchMode = iota
	// DispatchSerial runs hooks one after another in registration order and
	// waits for each before moving on.
	DispatchSerial
)

func (m DispatchMode) String() string {
	switch m {
	case DispatchParallel:
		return "parallel"
	case DispatchSerial:
		return "serial"
	default:
		return fmt.Sprintf("DispatchMode(%d)", int(m))
	}
}

// ParseDispatchMode parses "parallel" or "serial", ignoring case. The empty
// string selects DispatchParallel.
func ParseDispatchMode(s string) (DispatchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "parallel":
		return DispatchParallel, nil
	case "serial":
		return DispatchSerial, nil
	default:
		return DispatchParallel, fmt.Errorf("unknown dispatch mode %q (expected parallel or serial)", s)
	}
}

// Transport performs a real HTTP exchange. *http.Client satisfies it.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// Completion receives the outcome of Send. Exactly one of the arguments is
// meaningful except for stub errors, where the response carries the stub's
// status and headers alongside the error.
type Completion func(resp *Response, err error)

// Config configures a Client.
type Config struct {
	// BaseURL is joined with relative request URLs.
	BaseURL string

	// Dispatch selects serial or parallel reporter hooks.
	Dispatch DispatchMode

	// Timeout bounds the default transport. Ignored when Transport is set.
	Timeout time.Duration

	// Transport performs network calls. Defaults to an *http.Client.
	Transport Transport

	// Cookies gives the default transport a cookie jar scoped by the public
	// suffix list, so cookies set by one response are sent on later requests
	// to the same site. Ignored when Transport is set.
	Cookies bool

	// Stubs, when set, answers matching requests without the network.
	Stubs *stub.Store

	// Logger receives debug output. Defaults to a no-op logger.
	Logger *slog.Logger
}

// Client dispatches requests, notifies reporters and consults the stub store.
// It is safe for concurrent use.
type Client struct {
	baseURL   *url.URL
	dispatch  DispatchMode
	transport Transport
	stubs     *stub.Store
	reporters *registry.Registry[Reporter]
	log       *slog.Logger

	inflight sync.WaitGroup
}

// New creates a Client from cfg.
func New(cfg Config) (*Client, error) {
	c := &Client{
		dispatch:  cfg.Dispatch,
		transport: cfg.Transport,
		stubs:     cfg.Stubs,
		reporters: registry.New[Reporter](),
		log:       cfg.Logger,
	}
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid base URL: %w", err)
		}
		c.baseURL = u
	}
	if c.transport == nil {
		hc := &http.Client{Timeout: cfg.Timeout}
		if cfg.Cookies {
			jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
			if err != nil {
				return nil, fmt.Errorf("cookie jar: %w", err)
			}
			hc.Jar = jar
		}
		c.transport = hc
	}
	if c.log == nil {
		c.log = logging.Nop()
	}
	return c, nil
}

// SetLogger replaces the client's logger. Nil selects a no-op logger.
func (c *Client) SetLogger(log *slog.Logger) {
	if log == nil {
		log = logging.Nop()
	}
	c.log = log
}

// AddReporter registers r under policy. Adding the same reporter twice
// notifies it twice.
func (c *Client) AddReporter(r Reporter, policy registry.StoragePolicy) {
	if r == nil {
		return
	}
	c.reporters.Add(r, policy)
}

// RemoveReporter removes every registration of r. Reporters are matched by
// pointer identity or value equality; a non-comparable value reporter cannot
// be removed.
func (c *Client) RemoveReporter(r Reporter) {
	if r == nil {
		return
	}
	c.reporters.Remove(r)
}

// Reporters returns the currently live reporters in registration order.
func (c *Client) Reporters() []Reporter {
	return c.reporters.Snapshot()
}

// Stubs returns the stub store, which may be nil.
func (c *Client) Stubs() *stub.Store {
	return c.stubs
}

// Dispatch returns the configured dispatch mode.
func (c *Client) Dispatch() DispatchMode {
	return c.dispatch
}

// Send starts the request and returns immediately. Reporters registered at
// the moment of the call are notified; later registrations are not.
// Every hook runs on a background goroutine, asynchronously relative to the
// caller, including under DispatchSerial: serial mode orders hooks among
// themselves, and Send may return before any BeforeSend has run.
// completion, when non-nil, is called exactly once from another goroutine.
func (c *Client) Send(ctx context.Context, req *Request, completion Completion) {
	if ctx == nil {
		ctx = context.Background()
	}
	reporters := c.reporters.Snapshot()
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		c.run(ctx, req, reporters, completion)
	}()
}

// Do sends req and waits for its outcome.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	type outcome struct {
		resp *Response
		err  error
	}
	done := make(chan outcome, 1)
	c.Send(ctx, req, func(resp *Response, err error) {
		done <- outcome{resp, err}
	})
	o := <-done
	return o.resp, o.err
}

// Wait blocks until every Send started so far has delivered its completion.
// Hooks running under DispatchParallel are not waited for.
func (c *Client) Wait() {
	c.inflight.Wait()
}
