// Package auth provides authentication for the darzi API.
//
// # Authentication Flow
//
// Accounts sign up and log in with email and password (bcrypt hashed).
// A successful login issues an HS256-signed JWT whose "sub" claim is the
// account's opaque user ID. Every API request carries the token as a
// bearer header; the middleware verifies it, checks the account still
// exists, and attaches a UserContext to the request context.
//
// The user ID carried in the context is the partition key for every
// store operation: handlers never trust a user ID from a request body.
//
// # Token Management
//
//	verifier := auth.NewJWTVerifier(secret)
//	token, err := verifier.Generate(userID, ttl)
//	userID, err := verifier.Verify(token)
//
// # Password Recovery
//
// GenerateResetCode produces the 6-digit one-time code sent by email;
// only its SHA-256 hash is persisted (see store.ResetCodeStore).
package auth
