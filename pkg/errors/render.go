package errors

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/render"
)

// ErrorResponse is the JSON body of every body-class error
type ErrorResponse struct {
	Error       Code   `json:"error"`
	Description string `json:"description"`
}

// SetNoStore marks a response as uncacheable, RFC 6749 section 5.1.
func SetNoStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

// Render writes err as an HTTP response. It is the only place where protocol
// errors become status codes, headers and bodies.
func Render(w http.ResponseWriter, r *http.Request, err error) {
	e, ok := As(err)
	if !ok {
		e = Internal(err)
	}

	switch e.Kind {
	case KindRedirect:
		if target, ok := redirectTarget(e); ok {
			slog.Info("Redirecting with authorization error", "error", e.Code, "redirect_uri", e.RedirectURI)
			http.Redirect(w, r, target, http.StatusFound)
			return
		}
		// Without a redirect target the error can only go back to the user agent.
		writeBody(w, r, http.StatusBadRequest, e)
	case KindToken:
		SetNoStore(w)
		if e.Code == CodeInvalidClient {
			w.Header().Set("WWW-Authenticate", `Basic realm="token"`)
		}
		writeBody(w, r, e.HTTPStatus(), e)
	case KindBody, KindNotFound:
		writeBody(w, r, e.HTTPStatus(), e)
	case KindConflict:
		if e.Location != "" {
			w.Header().Set("Location", e.Location)
		}
		writeBody(w, r, http.StatusConflict, e)
	default:
		slog.Error("Unhandled error", "error", e.Err, "path", r.URL.Path)
		writeBody(w, r, http.StatusInternalServerError, e)
	}
}

func writeBody(w http.ResponseWriter, r *http.Request, status int, e *Error) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{
		Error:       e.Code,
		Description: e.Description,
	})
}

func redirectTarget(e *Error) (string, bool) {
	if e.RedirectURI == "" {
		return "", false
	}
	u, err := url.Parse(e.RedirectURI)
	if err != nil || !u.IsAbs() {
		return "", false
	}
	q := u.Query()
	q.Set("error", string(e.Code))
	q.Set("description", e.Description)
	if e.State != "" {
		q.Set("state", e.State)
	}
	u.RawQuery = q.Encode()
	return u.String(), true
}
