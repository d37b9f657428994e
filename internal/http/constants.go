package http

const (
	HeaderAuthorization  = "Authorization"
	HeaderContentType    = "Content-Type"
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderRequestID      = "X-Request-Id"
	HeaderSessionID      = "X-Session-Id"
	HeaderValueJson      = "application/json"
	BearerPrefix         = "Bearer "
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)
