// Package config loads the agentproxy configuration from a YAML file
// (AGENTPROXY_CONFIG, default config/agentproxy.yaml) with ${VAR} expansion,
// then applies environment overrides such as PORT and OPENAI_API_KEY.
package config
