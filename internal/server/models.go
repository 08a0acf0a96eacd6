package server

// HTTPError is the generic error envelope returned by the server.
type HTTPError struct {
	Error string `json:"error"`
}

// AuthSignupRequest represents the signup payload.
type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthLoginRequest represents the login payload.
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries a bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// NoteCreateRequest is the payload for note generation.
type NoteCreateRequest struct {
	Title   string `json:"title"`
	Subject string `json:"subject"`
	Topic   string `json:"topic"`
	Prompt  string `json:"prompt"`
}

// PracticeCreateRequest is the payload for practice paper generation.
type PracticeCreateRequest struct {
	Title      string `json:"title"`
	Subject    string `json:"subject"`
	Topic      string `json:"topic"`
	Difficulty string `json:"difficulty"`
	Questions  int    `json:"questions"`
	Prompt     string `json:"prompt"`
	UserID     string `json:"userId"`
}

// SummarizeRequest is the payload for text summarization.
type SummarizeRequest struct {
	Text   string `json:"text"`
	Length string `json:"length"`
	Style  string `json:"style"`
	UserID string `json:"userId"`
}

// UserBootstrapRequest registers an externally-issued identity.
type UserBootstrapRequest struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}
