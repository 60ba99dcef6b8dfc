// Package connectors holds sources that feed documents into the
// ingestion pipeline. The filesystem connector watches a local folder
// for PDF files.
package connectors
