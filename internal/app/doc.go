// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the run lifecycle of loading a model,
// stepping it, and reporting its outputs, decoupled from any specific
// entrypoint like a CLI.
package app
