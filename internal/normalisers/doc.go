// Package normalisers groups the readers that turn uploaded files into
// plain text for the ingestion pipeline. Only PDF is supported; see the
// pdf subpackage.
package normalisers
