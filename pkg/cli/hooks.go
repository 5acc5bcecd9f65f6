package cli

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/getmockd/netclient/pkg/client"
	"github.com/getmockd/netclient/pkg/registry"
	"github.com/getmockd/netclient/pkg/tracing"
)

// hookSet registers the reporters of one send and lets the command wait for
// their AfterReceive hooks, which run asynchronously under parallel dispatch.
type hookSet struct {
	client *client.Client
	policy registry.StoragePolicy
	done   sync.WaitGroup
	// held keeps weakly registered reporters reachable for the whole send.
	held []*awaited
}

func (h *hookSet) add(r client.Reporter) {
	a := &awaited{Reporter: r, done: &h.done}
	h.done.Add(1)
	h.held = append(h.held, a)
	h.client.AddReporter(a, h.policy)
}

// wait reports whether every hook finished within timeout.
func (h *hookSet) wait(timeout time.Duration) bool {
	finished := make(chan struct{})
	go func() {
		h.done.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return true
	case <-time.After(timeout):
		return false
	}
}

// awaited signals done once its reporter's AfterReceive returns, even if it
// panics.
type awaited struct {
	client.Reporter
	done *sync.WaitGroup
	once sync.Once
}

func (a *awaited) AfterReceive(req *client.Request, rc *client.Context) {
	defer a.once.Do(a.done.Done)
	a.Reporter.AfterReceive(req, rc)
}

// multiExporter fans spans out to several exporters.
type multiExporter []tracing.Exporter

func (m multiExporter) Export(ctx context.Context, spans []*tracing.Span) error {
	var errs []error
	for _, e := range m {
		errs = append(errs, e.Export(ctx, spans))
	}
	return errors.Join(errs...)
}

func (m multiExporter) Shutdown(ctx context.Context) error {
	var errs []error
	for _, e := range m {
		errs = append(errs, e.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
