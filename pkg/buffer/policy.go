// Package buffer bounds how much conversation history is replayed to
// the model. Policies never mutate the history they are given; they
// return a fresh slice each call.
package buffer

import (
	"strings"

	"github.com/sidlabs/docchat/pkg/providers"
)

// Policy selects the window of history sent on the next request.
type Policy interface {
	Name() string
	Trim(history []providers.Message) []providers.Message
}

// CountPolicy keeps the most recent N messages.
type CountPolicy struct {
	N int
}

func (p CountPolicy) Name() string { return "count" }

func (p CountPolicy) Trim(history []providers.Message) []providers.Message {
	n := p.N
	if n < 0 {
		n = 0
	}
	if n > len(history) {
		n = len(history)
	}
	out := make([]providers.Message, n)
	copy(out, history[len(history)-n:])
	return out
}

// Counter reports the token cost of a piece of text.
type Counter interface {
	Count(text string) int
}

// TokenPolicy keeps the longest suffix of history whose total token
// count fits Budget. Messages are admitted newest-first, so the first
// message that would exceed the budget cuts the window there.
type TokenPolicy struct {
	Budget  int
	Counter Counter
}

func (p TokenPolicy) Name() string { return "tokens" }

func (p TokenPolicy) Trim(history []providers.Message) []providers.Message {
	if p.Budget <= 0 || p.Counter == nil {
		return []providers.Message{}
	}

	total := 0
	cut := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		cost := p.Counter.Count(history[i].Content)
		if total+cost > p.Budget {
			break
		}
		total += cost
		cut = i
	}

	out := make([]providers.Message, len(history)-cut)
	copy(out, history[cut:])
	return out
}

// Used reports the token total of the window Trim would return, for
// surfacing usage alongside the reply.
func (p TokenPolicy) Used(history []providers.Message) int {
	total := 0
	for _, m := range p.Trim(history) {
		total += p.Counter.Count(m.Content)
	}
	return total
}

// SummaryPolicy replaces everything before the last Tail messages with
// a single system message carrying the running summary. An empty
// summary behaves like CountPolicy{Tail}.
type SummaryPolicy struct {
	Tail    int
	Summary string
}

func (p SummaryPolicy) Name() string { return "summary" }

func (p SummaryPolicy) Trim(history []providers.Message) []providers.Message {
	tail := CountPolicy{N: p.Tail}.Trim(history)

	summary := strings.TrimSpace(p.Summary)
	if summary == "" || len(tail) == len(history) {
		return tail
	}

	out := make([]providers.Message, 0, len(tail)+1)
	out = append(out, providers.Message{
		Role:    "system",
		Content: "Summary of the conversation so far: " + summary,
	})
	out = append(out, tail...)
	return out
}
