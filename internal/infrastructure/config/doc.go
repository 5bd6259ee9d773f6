// Package config handles loading and validating the wsn-deviceutils settings file.
//
// This package manages:
//   - Loading settings from an optional YAML file
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// The settings file covers the ambient parts of the tools (logging, MQTT,
// InfluxDB, metrics, driver tables, poll and shutdown timings). Device
// connection parameters and reference-to-MAC maps are NOT part of it; those
// are flat key=value files handed to the driver and the reference package.
//
// Security Considerations:
//   - Sensitive values (passwords, tokens) should be set via environment variables
//   - The settings file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load(os.Getenv("WSN_SETTINGS"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Observer.PollInterval)
package config
