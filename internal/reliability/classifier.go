package reliability

// IsRetryableHTTPStatus classifies retryable HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// IsRetryableRecognitionError classifies browser speech-recognition error codes. Permission
// and capability failures need user action; transient ones succeed when the learner
// re-triggers listening.
func IsRetryableRecognitionError(code string) bool {
	switch code {
	case "network", "aborted", "no-speech":
		return true
	default:
		return false
	}
}
