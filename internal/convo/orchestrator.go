package convo

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/antoniostano/recall/internal/genai"
	"github.com/antoniostano/recall/internal/history"
	"github.com/antoniostano/recall/internal/observability"
)

// ErrEmptyPrompt rejects a converse request before any store mutation.
var ErrEmptyPrompt = errors.New("prompt must not be empty")

// MissingKeyReply is stored as the AI turn when no generation credential is
// configured, so the failure stays visible in the conversation itself.
const MissingKeyReply = "Missing generation API key"

// Generator is the outbound generation capability.
type Generator interface {
	Configured() bool
	Generate(ctx context.Context, contents []genai.Content) ([]byte, error)
}

// Orchestrator serves one full chat turn: append the user turn, build the
// context window from post-append history, call the provider, normalize,
// append the reply.
//
// The provider call runs outside any store lock: the user turn is appended
// and flushed first, then the store is re-entered only to append the reply.
// Concurrent mutations of the same client's history in that window are
// possible but each store mutation stays atomic.
type Orchestrator struct {
	store   history.Store
	gen     Generator
	metrics *observability.Metrics
	window  int
}

func NewOrchestrator(store history.Store, gen Generator, metrics *observability.Metrics, contextWindow int) *Orchestrator {
	if contextWindow <= 0 {
		contextWindow = 60
	}
	return &Orchestrator{
		store:   store,
		gen:     gen,
		metrics: metrics,
		window:  contextWindow,
	}
}

// Converse runs one prompt through the provider and returns the reply text.
// Every outcome except an empty prompt ends with both turns recorded.
func (o *Orchestrator) Converse(ctx context.Context, clientID, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}

	o.appendTurn(ctx, clientID, history.Turn{Sender: history.SenderUser, Text: prompt})
	reply := o.generateReply(ctx, clientID, prompt)
	o.appendTurn(ctx, clientID, history.Turn{Sender: history.SenderAI, Text: reply})

	return reply, nil
}

func (o *Orchestrator) generateReply(ctx context.Context, clientID, prompt string) string {
	if !o.gen.Configured() {
		return MissingKeyReply
	}

	turns, err := o.store.Get(ctx, clientID)
	if err != nil {
		log.Printf("convo: read history for %q: %v", clientID, err)
	}
	contents := BuildWindow(turns, prompt, o.window)

	start := time.Now()
	raw, err := o.gen.Generate(ctx, contents)
	o.metrics.ObserveGenerateLatency(time.Since(start))
	if err != nil {
		o.metrics.ProviderErrors.WithLabelValues("transport").Inc()
		log.Printf("convo: generate for %q failed: %v", clientID, err)
		return fmt.Sprintf("Error contacting AI API: %v", err)
	}

	reply := genai.Normalize(raw)
	if reply == genai.NoReply {
		o.metrics.ProviderErrors.WithLabelValues("no_reply").Inc()
	}
	return reply
}

// appendTurn records a turn; a failing backend is logged and counted, the
// conversation continues on the in-memory state.
func (o *Orchestrator) appendTurn(ctx context.Context, clientID string, turn history.Turn) {
	if err := o.store.Append(ctx, clientID, turn); err != nil {
		o.metrics.PersistFailures.Inc()
		log.Printf("convo: append %s turn for %q: %v", turn.Sender, clientID, err)
		return
	}
	o.metrics.TurnsAppended.WithLabelValues(turn.Sender).Inc()
}

// History returns the stored turns for one client, verbatim.
func (o *Orchestrator) History(ctx context.Context, clientID string) ([]history.Turn, error) {
	return o.store.Get(ctx, clientID)
}

// ClearHistory resets one client's history to empty.
func (o *Orchestrator) ClearHistory(ctx context.Context, clientID string) error {
	return o.store.Clear(ctx, clientID)
}

// ImportHistory replaces one client's history with an externally supplied
// one. Malformed records are rejected without mutation.
func (o *Orchestrator) ImportHistory(ctx context.Context, clientID string, turns []history.Turn) error {
	return o.store.Replace(ctx, clientID, turns)
}

// SnapshotAll returns a point-in-time copy of the whole store.
func (o *Orchestrator) SnapshotAll(ctx context.Context) (map[string][]history.Turn, error) {
	return o.store.Snapshot(ctx)
}

// StoreMode reports which backend is active, for readiness reporting.
func (o *Orchestrator) StoreMode() string {
	return o.store.Mode()
}
