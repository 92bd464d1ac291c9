package ports

// TranscriptReader recovers the last assistant reply from an agent
// transcript. Lookups are best-effort: failures yield nil.
type TranscriptReader interface {
	LastAssistantText(path string) *string
}
