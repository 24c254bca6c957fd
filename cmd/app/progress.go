package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"vfi-client/internal/client"
	"vfi-client/internal/domain"
	"vfi-client/internal/jobs"
)

const progressInterval = 150 * time.Millisecond

// follow prints the job's events until it ends and returns its outcome.
// Interrupting the command context cancels the job through the session.
func (c *cli) follow(h *client.Handle) (domain.JobResult, error) {
	p := newPrinter(os.Stdout)

	ctx, stop := context.WithCancel(context.Background())
	go func() {
		<-h.Done()
		stop()
	}()

	var since int64
	for {
		events, err := c.app.WaitJobEvents(ctx, since)
		for _, event := range events {
			since = event.Seq
			if event.JobID == h.ID() {
				p.event(event)
			}
		}
		if err != nil {
			break
		}
	}
	p.flush()
	return h.Result(), h.Err()
}

// printer renders job events as lines. Progress is coalesced so fast
// servers do not flood the terminal.
type printer struct {
	out      io.Writer
	schedule func(func())

	mu      sync.Mutex
	title   cases.Caser
	percent float64
	pending bool
	frames  int
}

func newPrinter(out io.Writer) *printer {
	return &printer{
		out:      out,
		schedule: debounce.New(progressInterval),
		title:    cases.Title(language.English),
	}
}

func (p *printer) event(event jobs.Event) {
	switch event.Type {
	case jobs.EventTypeProgress:
		p.mu.Lock()
		p.percent = event.Progress
		p.pending = true
		p.mu.Unlock()
		p.schedule(p.flush)
		return
	case jobs.EventTypeFrame:
		p.mu.Lock()
		p.frames++
		p.mu.Unlock()
		return
	}

	p.flush()
	p.mu.Lock()
	defer p.mu.Unlock()
	switch event.Type {
	case jobs.EventTypeState:
		fmt.Fprintf(p.out, "%s\n", p.label(event.State))
	case jobs.EventTypeResult:
		fmt.Fprintf(p.out, "%d frames received, stored at %s\n", p.frames, event.RemotePath)
	case jobs.EventTypeError:
		fmt.Fprintf(p.out, "error: %s\n", event.Message)
	}
}

// flush prints the latest pending progress value, if any.
func (p *printer) flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.pending {
		return
	}
	fmt.Fprintf(p.out, "progress %3.0f%% (%d frames)\n", p.percent, p.frames)
	p.pending = false
}

// label turns awaiting_processing into "Awaiting Processing". Callers hold p.mu.
func (p *printer) label(state domain.JobState) string {
	return p.title.String(strings.ReplaceAll(string(state), "_", " "))
}
