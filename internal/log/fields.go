package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldReferer    = "referer"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldTextCode   = "text_code"
	FieldOperation  = "operation"
	FieldProvider   = "provider"
	FieldLinkMode   = "link_mode"
	FieldSessionID  = "link_session_id"
	FieldOutcome    = "outcome"
	FieldTxCount    = "transaction_count"
	FieldSheetsRef  = "sheets_ref"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentLinking    = "linking"
	ComponentRelay      = "relay"
	ComponentSpending   = "spending"
	ComponentAggregator = "aggregator"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentSheets     = "sheets"
	ComponentCache      = "cache"
	ComponentSecurity   = "security"
	ComponentTrace      = "trace"
	ComponentTemplate   = "template"
)

// Operations defines standard operation names
const (
	OpBeginLink = "begin_link"
	OpCallback  = "callback"
	OpExchange  = "exchange"
	OpUnlink    = "unlink"
	OpSummarize = "summarize"
	OpAppend    = "append"
	OpRender    = "render"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds the error and, when present, its text code.
func (f LogFields) WithError(err error, textCode string) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	if textCode != "" {
		f[FieldTextCode] = textCode
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithLink adds handshake fields. Never pass state, nonce or token values.
func (f LogFields) WithLink(provider, mode, sessionID string) LogFields {
	f[FieldProvider] = provider
	f[FieldLinkMode] = mode
	if sessionID != "" {
		f[FieldSessionID] = sessionID
	}
	return f
}

func (f LogFields) WithHTTPRequest(method, path, userAgent, referer string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldUserAgent] = userAgent
	f[FieldReferer] = referer
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
