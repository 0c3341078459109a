// Package config loads supervisor configuration from YAML.
//
// A configuration file describes one supervised peer: its identity,
// how to reach it (a direct address or mDNS discovery), retry pacing,
// and event logging. Build turns a validated configuration into a
// ready-to-start supervisor.
package config
