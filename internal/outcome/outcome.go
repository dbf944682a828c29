package outcome

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/teemow/calgate/internal/backend"
)

// Kind tags the result of a gateway operation.
type Kind int

const (
	Success Kind = iota
	Unauthorized
	ValidationError
	BackendUnreachable
	BackendRejected
	ApplicationFailure
	UpstreamError
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Unauthorized:
		return "unauthorized"
	case ValidationError:
		return "validation_error"
	case BackendUnreachable:
		return "backend_unreachable"
	case BackendRejected:
		return "backend_rejected"
	case ApplicationFailure:
		return "application_failure"
	case UpstreamError:
		return "upstream_error"
	default:
		return "unknown"
	}
}

// Failure markers the chat backend uses in otherwise successful replies.
var (
	failurePrefixes = []string{
		"Failed to schedule:",
		"Failed to summarize email:",
	}
	failureSubstrings = []string{
		"Authorization error:",
	}
)

// DefaultRejectedMessage is used when the backend rejects a request without a message.
const DefaultRejectedMessage = "Backend API error"

// ClassifyReply decides whether a 2xx reply text reports a completed action.
func ClassifyReply(text string) Kind {
	for _, p := range failurePrefixes {
		if strings.HasPrefix(text, p) {
			return ApplicationFailure
		}
	}
	for _, s := range failureSubstrings {
		if strings.Contains(text, s) {
			return ApplicationFailure
		}
	}
	return Success
}

// Outcome is the classified result of a backend call.
type Outcome struct {
	Kind    Kind
	Status  int
	Message string

	// Reply is set for Success and ApplicationFailure.
	Reply *backend.ChatReply

	cause error
}

// Classify maps a chat backend result to an Outcome.
func Classify(reply *backend.ChatReply, err error) Outcome {
	if err != nil {
		var rerr *backend.RejectedError
		if errors.As(err, &rerr) {
			msg := rerr.Message
			if msg == "" {
				msg = DefaultRejectedMessage
			}
			return Outcome{Kind: BackendRejected, Status: rerr.Status, Message: msg, cause: err}
		}

		var uerr *backend.UnreachableError
		if errors.As(err, &uerr) {
			return Outcome{Kind: BackendUnreachable, Status: http.StatusInternalServerError, Message: UnreachableMessage(uerr.URL), cause: err}
		}

		return Outcome{Kind: BackendUnreachable, Status: http.StatusInternalServerError, Message: UnreachableMessage(""), cause: err}
	}

	if reply == nil {
		return Outcome{Kind: BackendRejected, Status: http.StatusBadGateway, Message: DefaultRejectedMessage}
	}

	if ClassifyReply(reply.Reply) == ApplicationFailure {
		return Outcome{Kind: ApplicationFailure, Status: http.StatusBadRequest, Message: reply.Reply, Reply: reply}
	}

	return Outcome{Kind: Success, Status: http.StatusOK, Reply: reply}
}

// UnreachableMessage is the client-facing message for an unreachable backend.
func UnreachableMessage(url string) string {
	if url == "" {
		return "Failed to connect to backend service."
	}
	return fmt.Sprintf("Failed to connect to backend service at %s.", url)
}

// HTTPStatus returns the status to answer the caller with.
func (o Outcome) HTTPStatus() int {
	if o.Status != 0 {
		return o.Status
	}
	return o.Kind.DefaultStatus()
}

// Err returns nil on success, otherwise an *Error describing the outcome.
func (o Outcome) Err() error {
	if o.Kind == Success {
		return nil
	}
	return &Error{Kind: o.Kind, Status: o.HTTPStatus(), Message: o.Message, Err: o.cause}
}

// DefaultStatus is the HTTP status for kinds that do not carry their own.
func (k Kind) DefaultStatus() int {
	switch k {
	case Success:
		return http.StatusOK
	case Unauthorized:
		return http.StatusUnauthorized
	case ValidationError, ApplicationFailure:
		return http.StatusBadRequest
	case BackendUnreachable:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}
