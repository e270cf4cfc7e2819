// Package transcript merges streamed transcript events into display-ready turns.
package transcript

import "github.com/satriahrh/mockmaster-client/domain/entities"

// Event is either a TranscriptEvent or a TurnComplete
type Event interface {
	isEvent()
}

// TranscriptEvent is one increment of recognized or generated speech
type TranscriptEvent struct {
	Role    entities.Role
	Content string
	Partial bool
}

// TurnComplete freezes the last in-progress entry for Role
type TurnComplete struct {
	Role entities.Role
}

func (TranscriptEvent) isEvent() {}
func (TurnComplete) isEvent()    {}

// Apply returns the transcript after ev. The input slice and its elements are
// never modified, so earlier snapshots stay valid.
//
// Only the last entry may be amended, and only when it has the same role and
// is still partial. Anything else appends.
func Apply(entries []entities.TranscriptEntry, ev Event) []entities.TranscriptEntry {
	switch e := ev.(type) {
	case TranscriptEvent:
		return applyTranscript(entries, e)
	case TurnComplete:
		return applyTurnComplete(entries, e)
	default:
		return entries
	}
}

func applyTranscript(entries []entities.TranscriptEntry, e TranscriptEvent) []entities.TranscriptEntry {
	if last, ok := openLast(entries, e.Role); ok {
		updated := last
		updated.Content += e.Content
		updated.Partial = e.Partial
		return replaceLast(entries, updated)
	}

	// A bare completion signal with nothing to freeze adds nothing.
	if !e.Partial && e.Content == "" {
		return entries
	}

	out := make([]entities.TranscriptEntry, len(entries), len(entries)+1)
	copy(out, entries)
	return append(out, entities.TranscriptEntry{
		Role:    e.Role,
		Content: e.Content,
		Partial: e.Partial,
	})
}

func applyTurnComplete(entries []entities.TranscriptEntry, e TurnComplete) []entities.TranscriptEntry {
	last, ok := openLast(entries, e.Role)
	if !ok {
		return entries
	}
	last.Partial = false
	return replaceLast(entries, last)
}

// openLast returns the last entry when it is partial and spoken by role
func openLast(entries []entities.TranscriptEntry, role entities.Role) (entities.TranscriptEntry, bool) {
	if len(entries) == 0 {
		return entities.TranscriptEntry{}, false
	}
	last := entries[len(entries)-1]
	if last.Role != role || !last.Partial {
		return entities.TranscriptEntry{}, false
	}
	return last, true
}

func replaceLast(entries []entities.TranscriptEntry, entry entities.TranscriptEntry) []entities.TranscriptEntry {
	out := make([]entities.TranscriptEntry, len(entries))
	copy(out, entries)
	out[len(out)-1] = entry
	return out
}
