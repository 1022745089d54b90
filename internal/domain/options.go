package domain

// GlobalOptions holds the process-wide flags resolved once per invocation.
// Handlers receive it by value and never modify it.
type GlobalOptions struct {
	// Interactive enables prompts and human-readable output. When false every
	// command prints exactly one JSON line on stdout.
	Interactive bool
	// APIKey, when set, authenticates requests instead of the stored session.
	APIKey string
}

// UsesAPIKey reports whether requests should carry the API key.
func (o GlobalOptions) UsesAPIKey() bool {
	return o.APIKey != ""
}
