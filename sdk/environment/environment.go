// Package environment provides utilities for loading configuration from
// environment variables, with support for namespacing and defaults.
package environment

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// LoadEnv loads variables from a .env file in the working directory.
// A missing file is not an error.
func LoadEnv() error {
	return LoadPath("")
}

// LoadPath loads variables from the .env file at p, or ".env" when p is empty.
// Variables already present in the process environment win.
func LoadPath(p string) error {
	var err error
	if p != "" {
		err = godotenv.Load(p)
	} else {
		err = godotenv.Load()
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// GetEnvOrDefault retrieves an environment variable value, returning fallback
// if the variable is not set.
//
//	port := GetEnvOrDefault("PORT", "8080")
func GetEnvOrDefault(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GetNamespaceEnvKey joins a namespace prefix and key with an underscore.
// An empty namespace returns the key unchanged.
//
//	GetNamespaceEnvKey("HABITSYNC", "STORE_BACKEND") // "HABITSYNC_STORE_BACKEND"
func GetNamespaceEnvKey(namespace, key string) string {
	if namespace == "" {
		return key
	}
	return fmt.Sprintf("%s_%s", namespace, key)
}

// GetNamespaceEnvOrDefault combines GetNamespaceEnvKey and GetEnvOrDefault.
func GetNamespaceEnvOrDefault(namespace, key, fallback string) string {
	return GetEnvOrDefault(GetNamespaceEnvKey(namespace, key), fallback)
}
