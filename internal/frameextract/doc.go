// Package frameextract turns recorded clips and live devices into still
// frames. Midpoint seeks fall back to a near-start grab, and frames darker
// than the configured luminance threshold are rejected as blank.
package frameextract
