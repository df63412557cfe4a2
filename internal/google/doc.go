// Package google wraps the Google OAuth, Drive and Sheets APIs used to
// provision a tenant's spreadsheet and append lead rows to it.
//
// Nothing here caches tokens or API services: every call builds its service
// from the token source it is handed, so a re-provisioned grant is picked up
// on the next call.
package google
