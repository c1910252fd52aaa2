package server

// ErrorResponse represents a standardized error response format
type ErrorResponse struct {
	Error   string `json:"error"`             // Human-readable error message
	Code    int    `json:"code"`              // HTTP status code
	Details any    `json:"details,omitempty"` // Additional error details (dev mode only)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	OK bool `json:"ok"` // Service health status
}

// TokenUpsertRequest represents a request to create or update a token registry entry
type TokenUpsertRequest struct {
	Mint   string `json:"mint"`   // Mint address (base58, 32 bytes)
	Symbol string `json:"symbol"` // Display symbol for the mint
}

// TokenUpdateRequest represents a request to update an existing registry entry
type TokenUpdateRequest struct {
	Symbol string `json:"symbol"` // New display symbol
}

// AIAskRequest represents a natural language query request
type AIAskRequest struct {
	Question string `json:"question"` // Natural language question about donation data
	Model    string `json:"model"`    // Optional AI model override
}

// AIAskResponse represents the response from an AI query
type AIAskResponse struct {
	SQL    string `json:"sql"`     // Generated SQL query
	Answer string `json:"answer"`  // Natural language answer
	TookMs int64  `json:"took_ms"` // Execution time in milliseconds
}
