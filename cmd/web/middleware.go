package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/justinas/nosurf"
	"github.com/myrjola/cdms/internal/contexthelpers"
	"github.com/myrjola/cdms/internal/errors"
	"github.com/myrjola/cdms/internal/random"
)

func (app *application) secureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nonce, err := random.Letters(24) //nolint:mnd // 24 letters
		if err != nil {
			app.serverError(w, r, errors.Wrap(err, "generate CSP nonce"))
			return
		}
		r = contexthelpers.SetCSPNonce(r, nonce)

		w.Header().Set("Content-Security-Policy",
			fmt.Sprintf("default-src 'self'; script-src 'nonce-%s' 'strict-dynamic'; object-src 'none'; "+
				"base-uri 'none'; form-action 'self'; frame-ancestors 'none'", nonce))
		w.Header().Set("Referrer-Policy", "origin-when-cross-origin")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "deny")
		w.Header().Set("X-XSS-Protection", "0")

		next.ServeHTTP(w, r)
	})
}

func cacheForeverHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")

		next.ServeHTTP(w, r)
	})
}

func (app *application) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		app.logger.LogAttrs(r.Context(), slog.LevelDebug, "received request",
			slog.String("proto", r.Proto),
			slog.String("method", r.Method),
			slog.String("uri", r.URL.RequestURI()))

		next.ServeHTTP(w, r)
	})
}

func (app *application) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler { //nolint:errorlint // sentinel panic value
					panic(err)
				}
				w.Header().Set("Connection", "close")
				app.serverError(w, r, errors.New("panic", slog.Any("recovered", err)))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// timeout bounds the handler with the application's handler timeout.
func (app *application) timeout(next http.Handler) http.Handler {
	return timeoutHandler(next, app.handlerTimeout)
}

// limitUpload rejects request bodies larger than the upload limit. Declared lengths are rejected up front,
// chunked bodies once reading crosses the limit.
func (app *application) limitUpload(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > app.maxUploadBytes {
			app.clientError(w, r, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		// Multipart framing needs some room on top of the file itself.
		r.Body = &limitedBody{ReadCloser: http.MaxBytesReader(w, r.Body, app.maxUploadBytes+multipartOverhead)}
		next.ServeHTTP(w, r)
	})
}

const multipartOverhead = 1 << 20

// limitedBody remembers whether a read hit the limit of the wrapped [http.MaxBytesReader].
type limitedBody struct {
	io.ReadCloser
	exceeded bool
}

func (b *limitedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		b.exceeded = true
	}
	return n, err //nolint:wrapcheck // io.Reader errors are passed through as is.
}

// bodyTooLarge reports whether reading the request body crossed the upload limit.
func bodyTooLarge(r *http.Request) bool {
	body, ok := r.Body.(*limitedBody)
	return ok && body.exceeded
}

func commonContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = contexthelpers.SetCurrentPath(r, r.URL.Path)
		r = contexthelpers.SetCSRFToken(r, nosurf.Token(r))
		next.ServeHTTP(w, r)
	})
}

// noSurf implements CSRF protection using https://github.com/justinas/nosurf
func (app *application) noSurf(next http.Handler) http.Handler {
	csrfHandler := nosurf.New(next)
	csrfHandler.SetBaseCookie(http.Cookie{
		HttpOnly: true,
		Path:     "/",
		Secure:   app.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
	csrfHandler.SetFailureHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = contexthelpers.SetCSRFToken(r, nosurf.Token(r))
		// The token is read from the form, so an oversized upload fails here before its handler runs.
		if bodyTooLarge(r) {
			app.clientError(w, r, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		app.logger.LogAttrs(r.Context(), slog.LevelWarn, "CSRF check failed",
			slog.String("uri", r.URL.RequestURI()), errors.SlogError(nosurf.Reason(r)))
		app.clientError(w, r, http.StatusBadRequest, "Invalid CSRF token")
	}))

	return csrfHandler
}
