package log

const (
	KeyAppName       = "app"
	KeyRequestID     = "requestId"
	KeyProcess       = "process"
	KeyTag           = "tag"
	KeyTraceID       = "traceId"
	KeySpanID        = "spanId"
	KeyRequest       = "request"
	KeyRequestBody   = "requestBody"
	KeyRequestHeader = "requestHeader"
	KeyRequestHost   = "host"
	KeyRequestIp     = "requesterIP"
	KeyRequestMethod = "requestMethod"
	KeyRequestURI    = "requestURI"
	KeyRequestURL    = "requestURL"
	KeyConfig        = "config"
	KeyCacheKey      = "cacheKey"
	KeyStorage       = "storage"
	KeySessionID     = "sessionId"
	KeyRevision      = "revision"
	KeyProductID     = "productId"
	KeyQuantity      = "quantity"
	KeySize          = "size"
	KeyColor         = "color"
	KeyCartLines     = "cartLines"
	KeyCartTotal     = "cartTotal"
	KeyCartItemCount = "cartItemCount"
	KeyCheckoutKey   = "checkoutKey"
	KeyOrderID       = "orderId"
	KeyShipping      = "shipping"
	KeySubject       = "subject"
	KeyStatusCode    = "statusCode"
	KeyResponseBody  = "responseBody"
	KeyPathValues    = "pathValues"
)
