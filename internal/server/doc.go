// Package server implements the HTTP front end: an upload form, a JSON
// prediction endpoint and the health, configuration, statistics and
// Prometheus endpoints.
//
// Uploads are staged under a random name in the staging directory, passed
// to a Predictor and removed once the request completes.
package server
