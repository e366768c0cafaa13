// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// A .env file in the working directory is loaded first (see LoadEnvFiles), so secrets
// such as the Finnhub token can live outside the YAML file.
package config
