package i18n

import "net/http"

// Middleware injects a localizer negotiated from the request's
// Accept-Language header into every request context.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tag := Negotiate(r.Header.Get("Accept-Language"))
			w.Header().Set("Content-Language", tag.String())
			ctx := WithLocalizer(r.Context(), NewLocalizer(tag.String()))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
