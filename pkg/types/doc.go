// Package types defines the record model, the LocalStore and remote
// collaborator interfaces, metadata entity types, and the standard errors
// shared by the fieldsurvey cache and sync engine.
package types
