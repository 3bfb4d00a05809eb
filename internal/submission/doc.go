// Package submission uploads captured artifacts to the remote verification
// service. Local state is cleared only after the backend confirms acceptance,
// so any failure leaves a retryable attempt behind.
package submission
