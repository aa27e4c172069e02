package notify

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/restnotify/restnotify/internal/metrics"
)

// Disposition is the class of an HTTP response status.
type Disposition string

const (
	Success     Disposition = metrics.DispositionSuccess
	ClientError Disposition = metrics.DispositionClientError
	ServerError Disposition = metrics.DispositionServerError
	Other       Disposition = metrics.DispositionOther
)

// Classify maps a status code to its disposition.
func Classify(code int) Disposition {
	switch {
	case code >= http.StatusInternalServerError && code < 600:
		return ServerError
	case code >= http.StatusBadRequest && code < http.StatusInternalServerError:
		return ClientError
	case code >= http.StatusOK && code < http.StatusMultipleChoices:
		return Success
	default:
		return Other
	}
}

// Outcome records the response to one dispatched notification.
type Outcome struct {
	StatusCode  int
	Reason      string
	Disposition Disposition
}

func newOutcome(resp *http.Response) Outcome {
	reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if reason == "" {
		reason = http.StatusText(resp.StatusCode)
	}
	return Outcome{
		StatusCode:  resp.StatusCode,
		Reason:      reason,
		Disposition: Classify(resp.StatusCode),
	}
}

// log records the outcome; error statuses are logged, never returned.
func (o Outcome) log(log zerolog.Logger, body []byte) {
	switch o.Disposition {
	case ServerError:
		log.Error().Int("status", o.StatusCode).Str("reason", o.Reason).Msg("Server error")
	case ClientError:
		log.Error().Int("status", o.StatusCode).Str("reason", o.Reason).Msg("Client error")
	case Success:
		log.Debug().Int("status", o.StatusCode).Str("reason", o.Reason).Msg("Success")
		log.Debug().Bytes("body", body).Msg("response body")
	default:
		log.Debug().Int("status", o.StatusCode).Str("reason", o.Reason).Msg("Response")
	}
}
