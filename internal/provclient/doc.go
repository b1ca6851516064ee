// Package provclient is the phone-side client for a device's SoftAP
// provisioning session. It reads the session status, submits a network
// credential and follows the session event stream.
//
// Requests that fail with a transport error or a 5xx status are retried
// with exponential backoff; PoP, validation and conflict errors are not.
// Every failure is an *Error; GetTroubleshootingHint turns one into
// advice for the command line.
package provclient
