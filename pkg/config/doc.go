// Package config loads the progset configuration file.
//
// The file is YAML. Fields absent from the file keep their defaults, unknown
// fields are rejected, and the result is checked with struct tag validation.
// A handful of environment variables override the file:
//
//	LOG_LEVEL             telemetry.log_level
//	PROGSET_ENTRY_POINT   script.entry_point
//	PROGSET_MAX_STEPS     script.max_steps
//	PROGSET_HISTORY       history.enabled
//	PROGSET_HISTORY_PATH  history.path
//	PROGSET_OUTPUT        output.format
//
// Example file:
//
//	script:
//	  entry_point: build_configuration
//	  vehicle_env: VEHICLE_NAME
//	  max_steps: 1000000
//	  globals:
//	    fleet: north
//	output:
//	  format: text
//	  color: auto
//	history:
//	  enabled: true
//	  path: .progset/history.db
//	telemetry:
//	  log_level: debug
package config
