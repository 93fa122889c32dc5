/*
Package config loads MediGraph runtime settings.

# Documents

Config wraps a decoded YAML or JSON document and exposes typed accessors
that return a caller-supplied default when a key is missing or mistyped.
Sections nest with Sub:

	cfg, err := config.FromFile("medigraph.yaml")
	if err != nil {
	    return err
	}
	ttl := cfg.Sub("cache").Duration("ttl", time.Hour)

Durations accept Go syntax ("30s", "1h") or a bare number of seconds.

# Settings

Settings is the typed view used by the command and the service:

	s, err := config.Load(path) // defaults, then file, then environment
	if err != nil {
	    return err
	}
	if err := s.Validate(); err != nil {
	    return err
	}

Defaults: gpt-4o at temperature 0, a 100-entry evidence cache with a one
hour TTL, five search results, a 60 second stage timeout, in-memory
checkpoints and the "unverified" verification policy.

Environment overrides: OPENAI_API_KEY, TAVILY_API_KEY and the
MEDIGRAPH_* variables listed as Env constants.
*/
package config
