package domain

// IdentityResult is the identity service's answer to a phone exchange,
// kept verbatim so the gateway can pass it through to the client.
type IdentityResult struct {
	Status      int
	ContentType string
	Body        []byte
	Cookies     []string // raw Set-Cookie values
	IsNewUser   bool
}
