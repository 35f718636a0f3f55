// Package secrets redacts secret values from session records before pattern
// extraction, so that templates, descriptions and history entries never carry
// credentials. Rules that capture a value group redact only the value, which
// keeps variable names such as DATABASE_PASSWORD visible to the extractors.
package secrets
