// Package keygen generates and inspects SSH key pairs for node logins.
//
// Keys are produced in PEM format (private) and OpenSSH authorized_keys
// format (public), ready to be imported into a provider as a key pair.
package keygen
