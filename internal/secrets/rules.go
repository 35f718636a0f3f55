package secrets

// DefaultRules returns the built-in detection rules. Prefix-identified tokens
// are redacted whole; assignment-style rules redact the value group only.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "aws-access-key-id",
			Description: "AWS Access Key ID",
			Pattern:     `\b(?:A3T[A-Z0-9]|AKIA|AGPA|AIDA|AROA|AIPA|ANPA|ANVA|ASIA)[A-Z0-9]{16}\b`,
		},
		{
			ID:          "private-key",
			Description: "PEM private key block",
			Pattern:     `-----BEGIN (?:RSA |DSA |EC |OPENSSH |PGP )?PRIVATE KEY-----[\s\S]*?(?:-----END (?:RSA |DSA |EC |OPENSSH |PGP )?PRIVATE KEY-----|$)`,
		},
		{
			ID:          "github-token",
			Description: "GitHub token",
			Pattern:     `\b(?:gh[pousr]_[A-Za-z0-9]{36}|github_pat_[A-Za-z0-9_]{22,})`,
		},
		{
			ID:          "gitlab-token",
			Description: "GitLab personal access token",
			Pattern:     `glpat-[A-Za-z0-9\-]{20,}`,
		},
		{
			ID:          "slack-token",
			Description: "Slack token",
			Pattern:     `xox[baprs]-[A-Za-z0-9\-]{10,}`,
		},
		{
			ID:          "stripe-key",
			Description: "Stripe API key",
			Pattern:     `(?:sk|pk|rk)_(?:live|test)_[A-Za-z0-9]{24,}`,
		},
		{
			ID:          "provider-api-key",
			Description: "Anthropic or OpenAI API key",
			Pattern:     `sk-(?:ant-)?[A-Za-z0-9_\-]{40,}`,
		},
		{
			ID:          "google-api-key",
			Description: "Google API key",
			Pattern:     `AIza[A-Za-z0-9_\-]{35}`,
		},
		{
			ID:          "jwt",
			Description: "JSON Web Token",
			Pattern:     `eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*`,
		},
		{
			ID:          "connection-string-password",
			Description: "Password embedded in a connection URL",
			Pattern:     `(?i)(?:postgres(?:ql)?|mysql|mongodb(?:\+srv)?|redis|amqps?)://[^:/\s@]+:([^@\s]+)@`,
		},
		{
			ID:          "bearer-token",
			Description: "Bearer token in an Authorization header",
			Pattern:     `(?i)bearer\s+([A-Za-z0-9_\-\.=]{20,})`,
			Keywords:    []string{"bearer"},
		},
		{
			ID:          "credential-assignment",
			Description: "Credential-named variable assigned a value",
			Pattern:     `\b[A-Z][A-Z0-9_]*(?:KEY|SECRET|TOKEN|PASSWORD|PASSWD)\s*[:=]\s*['"]?([^\s'"]{8,})`,
		},
		{
			ID:          "generic-secret",
			Description: "Generic secret or password assignment",
			Pattern:     `(?i)(?:api[_-]?key|secret|password|passwd|pwd)["']?\s*[:=]\s*['"]?([^\s'",]{8,})`,
			Keywords:    []string{"key", "secret", "pass", "pwd"},
		},
	}
}
