package agent

import (
	"github.com/cloudwego/eino/schema"
)

type Trimmer interface {
	Trim(history []*schema.Message) []*schema.Message
}

// KeepSystemLastNTrimmer keeps all system messages and the last N non-system messages.
// When N <= 0, it keeps only system messages.
type KeepSystemLastNTrimmer struct {
	N int
}

func (t KeepSystemLastNTrimmer) Trim(history []*schema.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(history))
	kept := 0
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		if m == nil {
			continue
		}
		if m.Role != schema.System {
			if kept >= t.N {
				continue
			}
			kept++
		}
		out = append(out, m)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// appendHistory appends msgs, skipping nils and exact repeats of the previous message.
func appendHistory(history []*schema.Message, msgs ...*schema.Message) []*schema.Message {
	out := history
	for _, msg := range msgs {
		if msg == nil {
			continue
		}
		if len(out) > 0 {
			last := out[len(out)-1]
			if last != nil && last.Role == msg.Role && last.Content == msg.Content {
				continue
			}
		}
		out = append(out, msg)
	}
	return out
}

// undoTail removes the last exchange: an assistant reply together with the
// user message before it, or a single trailing message otherwise.
func undoTail(history []*schema.Message) ([]*schema.Message, int) {
	n := len(history)
	if n == 0 {
		return history, 0
	}
	if n >= 2 && history[n-1].Role == schema.Assistant && history[n-2].Role == schema.User {
		return history[:n-2], 2
	}
	return history[:n-1], 1
}

func toTurns(history []*schema.Message) []Turn {
	out := make([]Turn, 0, len(history))
	for _, m := range history {
		if m == nil {
			continue
		}
		out = append(out, Turn{Role: string(m.Role), Text: m.Content})
	}
	return out
}
