// Package config handles loading and validating the robovac service configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (ROBOVAC_*)
//   - Validation of required fields
//   - Default value handling, including the polling and availability policy
//
// Security Considerations:
//   - Device access tokens and broker passwords should be set via environment
//     variables or a file with restricted permissions (0600)
//   - VacuumConfig and MQTTAuthConfig redact secrets when formatted
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, v := range cfg.Vacuums {
//	    policy := v.EffectivePolling(cfg.Polling)
//	    _ = policy
//	}
package config
