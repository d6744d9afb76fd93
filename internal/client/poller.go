package client

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/yiyebaofu0518/typix/internal/chat"
)

const defaultPollInterval = 3 * time.Second

// StatusFunc queries the current generation record. A nil view with nil error
// means the record is not visible to the caller yet.
type StatusFunc func(ctx context.Context, generationID string) (*chat.GenerationView, error)

// Poller maintains exactly one polling loop per in-flight generation id and
// pushes each observed status into the owning conversation.
type Poller struct {
	conv     *Conversation
	fetch    StatusFunc
	interval time.Duration
	logger   zerolog.Logger

	mu    sync.Mutex
	loops map[string]*Handle
}

// NewPoller builds a poller over the conversation. A non-positive interval
// selects the default of 3 seconds.
func NewPoller(conv *Conversation, fetch StatusFunc, interval time.Duration, logger zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Poller{
		conv:     conv,
		fetch:    fetch,
		interval: interval,
		logger:   logger,
		loops:    make(map[string]*Handle),
	}
}

// Handle controls one polling loop. Stop is idempotent and safe to call after
// the loop has already terminated.
type Handle struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// Stop cancels the polling loop. It never aborts server-side work.
func (h *Handle) Stop() {
	h.once.Do(func() { close(h.stop) })
}

// Done is closed when the loop has fully terminated.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Track starts a polling loop for generationID, or returns the existing
// handle when one is already running. The first poll fires immediately; the
// loop then polls at the configured interval until it observes a terminal
// status or is stopped.
func (p *Poller) Track(generationID string) *Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	if h, ok := p.loops[generationID]; ok {
		return h
	}
	h := &Handle{stop: make(chan struct{}), done: make(chan struct{})}
	p.loops[generationID] = h
	go p.loop(generationID, h)
	return h
}

// TrackInFlight starts loops for every in-flight generation currently in the
// conversation.
func (p *Poller) TrackInFlight() {
	for _, id := range p.conv.InFlight() {
		p.Track(id)
	}
}

// Stop tears down all polling loops and waits for them to terminate.
func (p *Poller) Stop() {
	p.mu.Lock()
	handles := make([]*Handle, 0, len(p.loops))
	for _, h := range p.loops {
		handles = append(handles, h)
	}
	p.mu.Unlock()
	for _, h := range handles {
		h.Stop()
		<-h.done
	}
}

func (p *Poller) loop(generationID string, h *Handle) {
	defer close(h.done)
	defer p.untrack(generationID)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if p.pollOnce(generationID) {
			return
		}
		select {
		case <-h.stop:
			return
		case <-ticker.C:
		}
	}
}

// pollOnce queries the status once and reports whether the loop should stop.
// Transient errors keep the loop alive.
func (p *Poller) pollOnce(generationID string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), p.interval*2)
	defer cancel()

	status, err := p.fetch(ctx, generationID)
	if err != nil {
		p.logger.Warn().Err(err).Str("generation_id", generationID).Msg("poller: status query failed")
		return false
	}
	if status == nil {
		return false
	}
	p.conv.ApplyGeneration(generationID, status)
	return status.Status.Terminal()
}

func (p *Poller) untrack(generationID string) {
	p.mu.Lock()
	delete(p.loops, generationID)
	p.mu.Unlock()
}
