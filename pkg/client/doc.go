// Package client dispatches HTTP requests and broadcasts their lifecycle to
// registered reporters.
//
// Each Send runs a fixed protocol on its own goroutine:
//
//  1. snapshot the live reporters
//  2. call BeforeSend on each reporter
//  3. resolve the request from the stub store, or through the transport
//  4. call AfterReceive on each reporter with the outcome
//  5. call the completion callback exactly once
//
// In DispatchSerial mode reporter hooks run one at a time in registration
// order and each returns before the protocol moves on. In DispatchParallel
// mode every hook runs on its own goroutine and the protocol does not wait
// for it.
//
// Failures never abort the protocol. Transport errors are passed through
// unchanged; everything else is one of ErrInvalidRequest,
// *ParametersEncodingError, *ResponseValidationError, ErrNoResponse or a
// stub-defined *stub.Error.
//
//	c, err := client.New(client.Config{BaseURL: "https://api.example.com/"})
//	if err != nil {
//	    return err
//	}
//	c.AddReporter(reporters.NewLoggingReporter(logger), registry.Strong)
//	c.Send(ctx, &client.Request{URL: "users", Method: stub.MethodGet},
//	    func(resp *client.Response, err error) {
//	        // ...
//	    })
package client
