// Package timeline holds the output-side data model: the ordered sequence of
// audio control events the pipeline emits for one document.
package timeline

import "encoding/json"

// Event is one audio control tuple placed on the timeline. All times are
// seconds from timeline start; pitch is Hz; TempoFactor multiplies the
// renderer's base tempo; Intensity is 0..1; TimbreIndex selects an entry of
// the configured timbre palette.
type Event struct {
	Index       int     `json:"index"`
	Pitch       float64 `json:"pitch"`
	TempoFactor float64 `json:"tempo_factor"`
	TimbreIndex int     `json:"timbre_index"`
	Intensity   float64 `json:"intensity"`
	StartTime   float64 `json:"start_time"`
	Duration    float64 `json:"duration"`
	SourceStart int     `json:"source_start"`
	SourceEnd   int     `json:"source_end"`
}

// End returns the event's end time.
func (e Event) End() float64 { return e.StartTime + e.Duration }

// Timeline is the pipeline's sole durable output. Events are ordered by
// StartTime (non-decreasing) and overlap at most by the configured tolerance.
type Timeline struct {
	Events []Event `json:"events"`
}

// Len returns the number of events.
func (t Timeline) Len() int { return len(t.Events) }

// Span returns the end time of the last-ending event, 0 for an empty timeline.
func (t Timeline) Span() float64 {
	var span float64
	for _, e := range t.Events {
		if end := e.End(); end > span {
			span = end
		}
	}
	return span
}

// Marshal encodes the timeline as JSON. Field order is fixed by the struct,
// so identical timelines encode to identical bytes.
func (t Timeline) Marshal() ([]byte, error) {
	return json.Marshal(t)
}

// Unmarshal decodes a timeline previously produced by Marshal.
func Unmarshal(data []byte) (Timeline, error) {
	var t Timeline
	if err := json.Unmarshal(data, &t); err != nil {
		return Timeline{}, err
	}
	return t, nil
}
