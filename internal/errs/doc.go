// Package errs defines the coded error taxonomy shared by the pairing and
// session engines. Every error carries a Code; validation failures also carry
// a Reason and the Subject (namespace key, chain, method, event or account)
// that failed.
package errs
