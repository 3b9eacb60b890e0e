package perflog

import (
	"encoding/json"
	"io"
	"sort"
	"time"
)

// traceEvent is one entry of the chrome://tracing JSON array.
type traceEvent struct {
	Name string  `json:"name"`
	Cat  string  `json:"cat"`
	Ph   string  `json:"ph"`
	Pid  int     `json:"pid"`
	Tid  int     `json:"tid"`
	Ts   float64 `json:"ts"`
}

// DumpTrace writes the recorded chunks and instant events as a JSON
// array readable by chrome://tracing (and compatible viewers such as
// Perfetto). Timestamps are microseconds relative to the recorder's
// start.
func (r *Recorder) DumpTrace(w io.Writer) error {
	events := make([]traceEvent, 0, len(r.operations)*2+len(r.instants))

	micros := func(t time.Time) float64 {
		return float64(t.Sub(r.startTime)) / float64(time.Microsecond)
	}

	for i := range r.operations {
		op := &r.operations[i]
		name := op.KernelName + "@" + op.LinkName
		for j := range op.Chunks {
			chunk := &op.Chunks[j]
			events = append(events, traceEvent{
				Name: name,
				Cat:  "op",
				Ph:   "B",
				Tid:  chunk.Thread,
				Ts:   micros(chunk.Start),
			})
			if chunk.Finished {
				events = append(events, traceEvent{
					Name: name,
					Cat:  "op",
					Ph:   "E",
					Tid:  chunk.Thread,
					Ts:   micros(chunk.End),
				})
			}
		}
	}
	for i := range r.instants {
		ev := &r.instants[i]
		events = append(events, traceEvent{
			Name: ev.Name,
			Cat:  "broadcast",
			Ph:   "i",
			Tid:  ev.Thread,
			Ts:   micros(ev.Time),
		})
	}

	// Trace viewers require begin/end pairs per tid to nest properly,
	// which a chronological ordering guarantees.
	sort.SliceStable(events, func(a, b int) bool {
		return events[a].Ts < events[b].Ts
	})

	enc := json.NewEncoder(w)
	return enc.Encode(events)
}
