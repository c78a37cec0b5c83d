package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeTimeout represents a fetch that exceeded its deadline
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeTransport represents connection or protocol failures
	ErrorTypeTransport ErrorType = "transport"
	// ErrorTypeStatus represents a non-success HTTP status
	ErrorTypeStatus ErrorType = "status"
	// ErrorTypeRateLimit represents rate limiting errors
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeParsing represents HTML parsing errors
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypePersistence represents store errors
	ErrorTypePersistence ErrorType = "persistence"
	// ErrorTypeQueue represents queue publish/consume errors
	ErrorTypeQueue ErrorType = "queue"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeUnknown is reported for errors that are not CrawlerErrors
	ErrorTypeUnknown ErrorType = "unknown"
)

// CrawlerError represents a crawler-specific error
type CrawlerError struct {
	Type       ErrorType
	URL        string
	Message    string
	StatusCode int
	Err        error
	Time       time.Time
}

// Error implements the error interface
func (e *CrawlerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.URL, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.URL, e.Message)
}

// Unwrap returns the underlying error
func (e *CrawlerError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether a later attempt could succeed. The crawl session
// never retries; the queue consumer uses this to decide whether to ack.
func (e *CrawlerError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeTimeout, ErrorTypeTransport, ErrorTypeRateLimit:
		return true
	case ErrorTypeStatus:
		return e.StatusCode >= http.StatusInternalServerError
	default:
		return false
	}
}

// IsFetchFailure reports whether the error came from the fetch boundary.
func (e *CrawlerError) IsFetchFailure() bool {
	switch e.Type {
	case ErrorTypeTimeout, ErrorTypeTransport, ErrorTypeStatus, ErrorTypeRateLimit:
		return true
	}
	return false
}

// New creates a new CrawlerError
func New(errType ErrorType, url, message string, err error) *CrawlerError {
	return &CrawlerError{
		Type:    errType,
		URL:     url,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewTimeout creates a new timeout error
func NewTimeout(url string, err error) *CrawlerError {
	return New(ErrorTypeTimeout, url, "request timed out", err)
}

// NewTransport creates a new transport error
func NewTransport(url string, err error) *CrawlerError {
	return New(ErrorTypeTransport, url, "transport failure", err)
}

// NewStatus creates a new non-success status error
func NewStatus(url string, statusCode int) *CrawlerError {
	e := New(ErrorTypeStatus, url, fmt.Sprintf("unexpected status code: %d", statusCode), nil)
	e.StatusCode = statusCode
	return e
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(url string, retryAfter string) *CrawlerError {
	message := "rate limited"
	if retryAfter != "" {
		message = fmt.Sprintf("rate limited; retry after %s", retryAfter)
	}
	e := New(ErrorTypeRateLimit, url, message, nil)
	e.StatusCode = http.StatusTooManyRequests
	return e
}

// NewParsing creates a new parsing error
func NewParsing(url, message string, err error) *CrawlerError {
	return New(ErrorTypeParsing, url, message, err)
}

// NewPersistence creates a new store error
func NewPersistence(url, message string, err error) *CrawlerError {
	return New(ErrorTypePersistence, url, message, err)
}

// NewQueue creates a new queue error
func NewQueue(message string, err error) *CrawlerError {
	return New(ErrorTypeQueue, "", message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *CrawlerError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// ClassifyFetchError maps a raw client error to the fetch taxonomy.
func ClassifyFetchError(url string, err error) *CrawlerError {
	if err == nil {
		return nil
	}
	var ce *CrawlerError
	if stderrors.As(err, &ce) {
		return ce
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return NewTimeout(url, err)
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return NewTimeout(url, err)
	}
	return NewTransport(url, err)
}

// TypeOf returns the ErrorType label of err, for logging and metrics.
func TypeOf(err error) ErrorType {
	if err == nil {
		return ErrorTypeUnknown
	}
	var ce *CrawlerError
	if stderrors.As(err, &ce) {
		return ce.Type
	}
	return ErrorTypeUnknown
}

// IsRetryable reports whether err is a CrawlerError a later attempt could fix.
func IsRetryable(err error) bool {
	var ce *CrawlerError
	return stderrors.As(err, &ce) && ce.IsRetryable()
}

// Is reports whether err has the given ErrorType.
func Is(err error, errType ErrorType) bool {
	return TypeOf(err) == errType
}
