// Package server hosts the HTTP surface: a chi router with security headers,
// request logging and the greeting route.
package server
