// Package auth implements the optional guard protecting the authenticated
// test routes. The only guard is "jwt": HMAC-SHA256 signed bearer tokens
// issued for a host user. When no guard is configured the authenticated
// routes are not registered at all.
package auth
