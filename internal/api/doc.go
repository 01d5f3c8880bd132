// Package api serves the darzi HTTP JSON API.
//
// # Routes
//
// Public:
//
//	GET  /healthz
//	POST /api/signup
//	POST /api/login
//	POST /api/password/forgot
//	POST /api/password/reset
//
// Bearer-token authenticated:
//
//	GET    /api/measurements           (optional ?q= name/phone filter)
//	GET    /api/measurements/fields    (default field set for a new form)
//	POST   /api/measurements
//	GET    /api/measurements/{id}
//	PUT    /api/measurements/{id}
//	DELETE /api/measurements/{id}
//
// Every measurement operation is scoped by the user ID the middleware
// extracted from the token; request bodies never carry an owner.
//
// # Errors
//
// All errors are JSON bodies of the form {"error": "..."}. Store errors
// map to statuses: validation failures 400, missing/unowned rows 404,
// duplicate emails 409, everything else 500.
package api
