// Package httpapi exposes the CRM webhook endpoints, the customer export
// listing and operational routes over chi.
package httpapi
