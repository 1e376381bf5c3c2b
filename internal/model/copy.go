package model

// Payloads are plain data: nested maps, slices, and scalars as produced by
// the config decoders and handler outputs. The copy helpers walk that shape.
// Pointer-bearing values a handler smuggles in are shared, not copied; the
// handler contract forbids them.

// CopyPayload returns an independent deep copy of a payload map.
func CopyPayload(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CopyValue(v)
	}
	return out
}

// CopyValue deep-copies a single payload value.
func CopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CopyPayload(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CopyValue(e)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}

// DeepCopy returns a fully independent copy of the state. Mutating the copy
// never affects the original, and vice versa.
func (s *PipelineState) DeepCopy() *PipelineState {
	if s == nil {
		return nil
	}
	cp := &PipelineState{
		SignalID:          s.SignalID,
		RawSignal:         CopyPayload(s.RawSignal),
		EnrichmentResults: make(map[string]map[string]any, len(s.EnrichmentResults)),
		ResultOrder:       make([]string, len(s.ResultOrder)),
		Metadata: RunMetadata{
			Trace:     make([]ExecutionTraceEntry, len(s.Metadata.Trace)),
			StartTime: s.Metadata.StartTime,
		},
	}
	copy(cp.ResultOrder, s.ResultOrder)
	copy(cp.Metadata.Trace, s.Metadata.Trace)
	for id, res := range s.EnrichmentResults {
		cp.EnrichmentResults[id] = CopyPayload(res)
	}
	return cp
}
