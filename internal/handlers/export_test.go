package handlers

import "github.com/tmaxmax/go-sse"

// UseSSEProvider swaps the provider behind the SSE server. It must be called before the first request.
func (m Main) UseSSEProvider(p sse.Provider) {
	m.sseSrv.Provider = p
}

// WidgetCount returns the number of live widgets.
func (m Main) WidgetCount() int {
	return m.widgets.Len()
}
