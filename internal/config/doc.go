// Package config loads the nodekit configuration file and the
// environment-driven timeouts.
//
// The YAML file selects the provider and the ambient services (credential
// store, event bus, logging, metrics). Timeouts are read from NODEKIT_*
// environment variables so that they can be tuned per invocation without
// editing the file.
package config
