// Package config handles configuration loading for darzi.
//
// Configuration is loaded from a YAML file with environment variable
// expansion: values can reference ${VAR_NAME}, which is replaced with
// the environment variable's value (empty string if unset) before
// parsing. Duration fields ("token_ttl") accept Go duration strings.
//
// Example configuration:
//
//	server:
//	  http_addr: ":8080"
//
//	database:
//	  path: ~/.local/share/darzi/darzi.db
//
//	auth:
//	  jwt_secret: "${DARZI_JWT_SECRET}"
//	  token_ttl: "168h"
//
//	smtp:
//	  enabled: true
//	  host: smtp.example.com
//	  port: 587
//	  username: mailer
//	  password: "${DARZI_SMTP_PASSWORD}"
//	  from: noreply@example.com
//
//	logging:
//	  level: info
//	  format: text
//
// Load validates required fields and returns a descriptive error for
// the first failure it finds.
package config
