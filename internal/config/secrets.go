package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)
	redact(&out.Redis.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	// API tokens are credentials; keep the account ids visible.
	if len(cfg.Auth.Tokens) > 0 {
		tokens := make(map[string]string, len(cfg.Auth.Tokens))
		for _, account := range cfg.Auth.Tokens {
			tokens["***"] = account
		}
		out.Auth.Tokens = tokens
	}

	return out
}

func redact(field *string) {
	if *field != "" {
		*field = "***"
	}
}
