package client

// Reporter observes the lifecycle of every request sent through a Client.
// Hooks must not retain or mutate the request beyond the call.
type Reporter interface {
	// BeforeSend is called before the request is resolved.
	BeforeSend(req *Request)
	// AfterReceive is called with the resolved outcome.
	AfterReceive(req *Request, ctx *Context)
}

// ReporterFuncs adapts plain functions to Reporter. Nil fields are skipped.
// Register it by pointer so it can be removed and held weakly.
type ReporterFuncs struct {
	Before func(req *Request)
	After  func(req *Request, ctx *Context)
}

// BeforeSend implements Reporter.
func (f *ReporterFuncs) BeforeSend(req *Request) {
	if f.Before != nil {
		f.Before(req)
	}
}

// AfterReceive implements Reporter.
func (f *ReporterFuncs) AfterReceive(req *Request, ctx *Context) {
	if f.After != nil {
		f.After(req, ctx)
	}
}

var _ Reporter = (*ReporterFuncs)(nil)
