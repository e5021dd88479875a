// Package testutil contains helper builders and utilities used across tests
// to reduce boilerplate when constructing conversations, messages and
// function calls. They are not intended for production usage.
package testutil
