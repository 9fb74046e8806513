// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the primary execution lifecycle: load a
// model, evaluate the requested cells over a range and print the results,
// decoupled from any specific entrypoint like a CLI.
package app
