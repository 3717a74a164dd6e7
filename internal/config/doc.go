// Package config loads, normalizes, and validates captioner configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// CLOUDINARY_URL and OPENAI_API_KEY. The Config type centralizes every knob the
// server and CLI need so scratch directories, stage timeouts, and external
// service credentials are discovered in one pass.
package config
