// Package translate implements the compliance-aware translation pipeline:
// validate input, enforce the session policy, run the external improvement
// and translation collaborators, and leave an audit event on every branch.
package translate

// Request is the ephemeral per-request input. It is never persisted beyond
// one request/response cycle.
type Request struct {
	Text       string `json:"text"`
	SourceLang string `json:"sourceLang"`
	TargetLang string `json:"targetLang"`
}

// Result carries the translated text back to the transport layer.
type Result struct {
	TranslatedText string `json:"translatedText"`
}
