// Package config handles loading and validating edge link configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (EDGELINK_*)
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (token secret, broker password) should be set via
//     environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/edgelink.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Link.Host)
package config
