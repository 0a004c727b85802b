// Package autocapture implements C10: the auto-capture pipeline that
// runs at the end of an agent turn, extracting durable facts from the
// conversation and persisting them through the slot store and vector
// gateway. See spec §4.9.
package autocapture

import (
	"context"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/agentmem/memcore/internal/idgen"
	"github.com/agentmem/memcore/internal/scope"
	"github.com/agentmem/memcore/pkg/contextwindow"
	"github.com/agentmem/memcore/pkg/dedupe"
	"github.com/agentmem/memcore/pkg/embedgateway"
	"github.com/agentmem/memcore/pkg/llmextractor"
	"github.com/agentmem/memcore/pkg/noisefilter"
	"github.com/agentmem/memcore/pkg/slotstore"
	"github.com/agentmem/memcore/pkg/vectorgateway"
)

// internalMarkers identify AutoCapture's own synthetic messages so a
// captured turn that merely echoes a previous capture's confirmation
// text never re-triggers extraction (spec §4.9 step 3).
var internalMarkers = []string{"[AutoCapture]", "Memory stored", "Memory updated"}

// Deps are the components AutoCapture orchestrates. All fields except
// WindowConfig are required.
type Deps struct {
	Slots         slotstore.Store
	Vectors       vectorgateway.Gateway
	Embedder      *embedgateway.Gateway
	Extractor     *llmextractor.Extractor
	MinConfidence float64
	DupThreshold  float64

	// WindowConfig tunes the message window fed to Extractor.Extract.
	// Zero value falls back to contextwindow's own defaults.
	WindowConfig contextwindow.Config
}

// Event is one agent-turn capture request.
type Event struct {
	SessionUserID string
	AgentID       string
	Messages      []contextwindow.Message
}

// guard is the process-wide re-entrancy flag from spec §4.9 step 1 and
// §5's "Re-entrancy" note.
var guard int32

// Run executes the AutoCapture state machine for one event. It never
// returns an error the host must act on: every failure path is logged
// and swallowed, per spec §4.9's closing paragraph.
func Run(ctx context.Context, deps Deps, event Event) {
	if !atomic.CompareAndSwapInt32(&guard, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&guard, 0)

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[autocapture] recovered from panic: %v", r)
		}
	}()

	sc := scope.Resolve(event.SessionUserID, event.AgentID)
	filter := noisefilter.New(event.AgentID)
	if filter.IsBlocked() {
		return
	}

	flattened := flattenAll(event.Messages)
	if containsInternalMarker(flattened) {
		return
	}
	if filter.ShouldSkip(flattened) {
		return
	}

	selected, _ := contextwindow.SelectMessagesWithinBudget(event.Messages, deps.WindowConfig)
	conversationText := renderConversation(selected)

	currentSlots, err := deps.Slots.GetCurrentState(ctx, sc.User, sc.Agent)
	if err != nil {
		log.Printf("[autocapture] failed to load current slots, aborting: %v", err)
		return
	}

	result := deps.Extractor.Extract(ctx, conversationText, currentSlots)

	for _, removal := range result.SlotRemovals {
		if _, err := deps.Slots.Delete(ctx, sc.User, sc.Agent, removal.Key); err != nil {
			log.Printf("[autocapture] slot removal %q failed, continuing: %v", removal.Key, err)
		}
	}

	minConfidence := deps.MinConfidence
	for _, update := range result.SlotUpdates {
		if update.Confidence < minConfidence {
			continue
		}
		_, err := deps.Slots.Set(ctx, sc.User, sc.Agent, slotstore.SetInput{
			Key:        update.Key,
			Value:      update.Value,
			Category:   slotstore.Category(update.Category),
			Source:     slotstore.SourceAutoCapture,
			Confidence: update.Confidence,
		})
		if err != nil {
			log.Printf("[autocapture] slot update %q failed, continuing: %v", update.Key, err)
		}
	}

	namespace := filter.GetTargetNamespace()
	for _, mem := range result.Memories {
		if err := applyMemory(ctx, deps, sc, event.AgentID, namespace, mem); err != nil {
			log.Printf("[autocapture] memory apply failed, continuing: %v", err)
		}
	}
}

func applyMemory(ctx context.Context, deps Deps, sc scope.Key, agentID, namespace string, mem llmextractor.Memory) error {
	ns := mem.Namespace
	if ns == "" {
		ns = namespace
	}

	vector := deps.Embedder.Embed(ctx, mem.Text)

	hits, err := deps.Vectors.Search(ctx, vector, vectorgateway.SearchOptions{
		Limit: 5,
		Filter: vectorgateway.Filter{Must: []vectorgateway.Condition{
			vectorgateway.Match("namespace", ns),
			vectorgateway.Match("userId", sc.User),
		}},
	})
	if err != nil {
		return err
	}

	candidates := make([]dedupe.Candidate, 0, len(hits))
	byID := make(map[string]vectorgateway.SearchHit, len(hits))
	for _, h := range hits {
		candidates = append(candidates, dedupe.Candidate{ID: h.ID, Score: h.Score, Text: h.Payload.Text})
		byID[h.ID] = h
	}

	now := time.Now()
	payload := vectorgateway.Payload{
		Text:        mem.Text,
		Namespace:   ns,
		SourceAgent: agentID,
		SourceType:  "auto_capture",
		UserID:      sc.User,
		Timestamp:   now,
		UpdatedAt:   now,
		Confidence:  mem.Confidence,
	}

	id := dedupe.FindDuplicate(candidates, deps.DupThreshold)
	if id == "" {
		id = idgen.New()
	} else if existing, ok := byID[id]; ok {
		// spec §4.9 step 9: a duplicate refreshes text/vector/updatedAt
		// only, preserving the original creation timestamp.
		payload = existing.Payload
		payload.Text = mem.Text
		payload.UpdatedAt = now
	}

	return deps.Vectors.Upsert(ctx, []vectorgateway.Point{{ID: id, Vector: vector, Payload: payload}})
}

func flattenAll(messages []contextwindow.Message) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(contextwindow.ExtractMessageText(m.Content))
		b.WriteString(" ")
	}
	return b.String()
}

func containsInternalMarker(text string) bool {
	for _, marker := range internalMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

func renderConversation(messages []contextwindow.Message) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(contextwindow.ExtractMessageText(m.Content))
		b.WriteString("\n")
	}
	return b.String()
}
