package handlers

const (
	defaultRunPageSize = 20
	maxRunPageSize     = 100
	midiContentType    = "audio/midi"
)
