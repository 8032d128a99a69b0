// Package auth provides signed identity tokens for naval duel.
//
// HMACVerifier turns a token into the identity it was issued for and
// satisfies service.Verifier. Tokens are HS256 JWTs with the identity as
// subject and a required expiry, so nothing is stored server-side. The token command of the CLI issues them for local
// play and testing.
//
// Usage:
//
//	verifier, err := auth.NewHMACVerifier(secret)
//	token, _ := verifier.Issue("alice", 24*time.Hour)
//	identity, err := verifier.Verify(token)
package auth
