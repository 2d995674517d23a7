// Package api is the HTTP client for the platform backend. It covers the
// session endpoints (current user, login, logout) and the federated-login
// endpoints (provider status, initiation, code exchange) consumed by the
// session and flow packages.
//
// Non-2xx responses with a decodable JSON body become *Error values carrying
// the backend's status, error code, and message. Transport failures and
// undecodable bodies stay ordinary errors, which downstream code treats as
// transient — only an *Error with a valid body can prove a session invalid.
//
//	client := api.New("https://api.example.com",
//		api.WithTokenSource(store.Token),
//	)
//	user, err := client.CurrentUser(ctx)
package api
