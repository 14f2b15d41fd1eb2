// Package config handles loading and validating Hearth Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (JWT secret, vault master secret, broker passwords)
//     should be set via environment variables
//   - The config file should have restricted permissions (0600)
//   - Startup fails when the vault master secret is absent: a vault running
//     without its key material cannot decrypt anything and must not pretend
//     otherwise
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.App.Name)
package config
