package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/getmockd/netclient/pkg/stub"
)

// once guards a completion so it runs at most one time.
type once struct {
	fired atomic.Bool
	fn    Completion
}

func (o *once) fire(resp *Response, err error) {
	if o.fn == nil || !o.fired.CompareAndSwap(false, true) {
		return
	}
	o.fn(resp, err)
}

// run executes the five-step protocol for one Send.
func (c *Client) run(ctx context.Context, req *Request, reporters []Reporter, completion Completion) {
	done := &once{fn: completion}
	rc := &Context{
		ID:      uuid.NewString(),
		Request: req,
		Started: time.Now(),
	}
	log := c.log.With("request_id", rc.ID)

	c.fanOut(log, reporters, "BeforeSend", func(r Reporter) { r.BeforeSend(req) })

	c.resolve(ctx, log, req, rc)
	rc.Duration = time.Since(rc.Started)

	c.fanOut(log, reporters, "AfterReceive", func(r Reporter) { r.AfterReceive(req, rc) })

	done.fire(rc.Response, rc.Err)
}

// fanOut invokes hook on every reporter according to the dispatch mode.
// A panicking hook is logged and does not stop the protocol.
func (c *Client) fanOut(log *slog.Logger, reporters []Reporter, name string, hook func(Reporter)) {
	call := func(r Reporter) {
		defer func() {
			if p := recover(); p != nil {
				log.Error("reporter panicked", "hook", name, "reporter", fmt.Sprintf("%T", r), "panic", p)
			}
		}()
		hook(r)
	}
	if c.dispatch == DispatchSerial {
		for _, r := range reporters {
			call(r)
		}
		return
	}
	for _, r := range reporters {
		go call(r)
	}
}

// resolve fills rc with the response or error for req.
func (c *Client) resolve(ctx context.Context, log *slog.Logger, req *Request, rc *Context) {
	key, err := req.Key()
	if err != nil {
		rc.Err = err
		log.Debug("request rejected", "error", err)
		return
	}

	if c.stubs != nil {
		if s, ok := c.stubs.Lookup(key); ok {
			rc.Stubbed = true
			rc.Response = stubResponse(s)
			if s.Error != nil {
				rc.Err = s.Error
			} else {
				rc.Err = validateResponse(req, rc.Response)
			}
			log.Debug("served from stub", "method", key.Method, "url", key.URL, "status", s.StatusCode)
			return
		}
		log.Debug("no stub matched", "method", key.Method, "url", key.URL)
	}

	httpReq, err := c.buildHTTPRequest(ctx, req)
	if err != nil {
		rc.Err = err
		return
	}
	rc.HTTPRequest = httpReq

	httpResp, err := c.transport.Do(httpReq)
	if err != nil {
		log.Debug("transport failed", "error", err)
		rc.Err = err
		return
	}
	if httpResp == nil {
		rc.Err = ErrNoResponse
		return
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		rc.Err = err
		return
	}
	rc.Response = &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
	}
	rc.Err = validateResponse(req, rc.Response)
	log.Debug("response received", "status", httpResp.StatusCode, "bytes", len(body))
}

func (c *Client) buildHTTPRequest(ctx context.Context, req *Request) (*http.Request, error) {
	target, err := c.resolveURL(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, string(req.Method), target.String(), nil)
	if err != nil {
		return nil, invalidRequest(err)
	}
	for name, values := range req.Headers {
		for _, v := range values {
			httpReq.Header.Add(name, v)
		}
	}
	if err := encodeParams(req.Encoder, httpReq, req.Params); err != nil {
		return nil, err
	}
	return httpReq, nil
}

// resolveURL joins the request URL with the per-request or client base URL.
func (c *Client) resolveURL(req *Request) (*url.URL, error) {
	ref, err := url.Parse(req.URL)
	if err != nil {
		return nil, invalidRequest(err)
	}
	base := c.baseURL
	if req.BaseURL != "" {
		if base, err = url.Parse(req.BaseURL); err != nil {
			return nil, invalidRequest(fmt.Errorf("base URL: %w", err))
		}
	}
	if ref.IsAbs() {
		return ref, nil
	}
	if base == nil {
		return nil, invalidRequest(errors.New("relative URL " + req.URL + " without a base URL"))
	}
	// Keep the base path: "/v1" + "users" becomes "/v1/users".
	b := *base
	if !strings.HasSuffix(b.Path, "/") {
		b.Path += "/"
	}
	if b.RawPath != "" && !strings.HasSuffix(b.RawPath, "/") {
		b.RawPath += "/"
	}
	ref.Path = strings.TrimPrefix(ref.Path, "/")
	ref.RawPath = strings.TrimPrefix(ref.RawPath, "/")
	return b.ResolveReference(ref), nil
}

func stubResponse(s stub.ResponseStub) *Response {
	header := make(http.Header, len(s.Headers))
	for k, v := range s.Headers {
		header.Set(k, v)
	}
	resp := &Response{
		StatusCode: s.StatusCode,
		Header:     header,
		FromStub:   true,
	}
	if s.Error == nil {
		resp.Body = s.Body
	}
	return resp
}
