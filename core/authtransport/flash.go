package authtransport

import (
	"net/http"
	"net/url"
)

// Flash cookie names read by the login page on its next render.
const (
	flashMessageCookie = "flash_message"
	flashTypeCookie    = "flash_type"

	flashTypeError = "error"

	// flashMaxAge keeps the flash alive across one navigation.
	flashMaxAge = 60
)

// setFlash leaves a one-shot message for the next page render. Flash
// cookies carry display hints only, so they are not signed. The message is
// URL-escaped to stay within the cookie value alphabet.
func setFlash(w http.ResponseWriter, message, kind string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashMessageCookie,
		Value:    url.QueryEscape(message),
		Path:     "/",
		MaxAge:   flashMaxAge,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     flashTypeCookie,
		Value:    kind,
		Path:     "/",
		MaxAge:   flashMaxAge,
		SameSite: http.SameSiteLaxMode,
	})
}
